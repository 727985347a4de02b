// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package sheets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.astrophena.name/prodbot/internal/catalog"
)

// Table is a worksheet read as a [catalog.Source].
//
// The spreadsheet is addressed either by ID or by name; the worksheet by
// title, or the first worksheet if Sheet is empty. The resolved spreadsheet
// ID and worksheet title are remembered until a fetch reports that they no
// longer exist. Rows are never cached.
type Table struct {
	Client *Client
	// SpreadsheetID of the spreadsheet. If empty, SpreadsheetName is looked up
	// through the Drive API.
	SpreadsheetID   string
	SpreadsheetName string
	// Sheet is the worksheet title.
	Sheet string

	mu       sync.Mutex
	resolved struct {
		id    string
		title string
	}
}

var errNoSpreadsheet = errors.New("either spreadsheet ID or name is required")

// FetchAll implements the [catalog.Source] interface.
func (t *Table) FetchAll(ctx context.Context) (catalog.Catalog, error) {
	id, title, err := t.resolve(ctx)
	if err != nil {
		return nil, err
	}

	values, err := t.Client.Values(ctx, id, SheetRange(title))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			t.forget()
		}
		return nil, err
	}
	return Records(values), nil
}

func (t *Table) resolve(ctx context.Context) (id, title string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resolved.id != "" && t.resolved.title != "" {
		return t.resolved.id, t.resolved.title, nil
	}

	id = t.SpreadsheetID
	if id == "" {
		if t.SpreadsheetName == "" {
			return "", "", errNoSpreadsheet
		}
		id, err = t.Client.FindSpreadsheet(ctx, t.SpreadsheetName)
		if err != nil {
			return "", "", err
		}
	}

	title = t.Sheet
	if title == "" {
		titles, err := t.Client.SheetTitles(ctx, id)
		if err != nil {
			return "", "", err
		}
		if len(titles) == 0 {
			return "", "", &Error{Op: "get spreadsheet", Kind: catalog.ErrNotFound, Err: fmt.Errorf("spreadsheet %s has no worksheets", id)}
		}
		title = titles[0]
	}

	t.resolved.id, t.resolved.title = id, title
	return id, title, nil
}

func (t *Table) forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolved.id, t.resolved.title = "", ""
}

var _ catalog.Source = (*Table)(nil)
