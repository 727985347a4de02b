// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package sheets reads Google Sheets worksheets as lists of records.
//
// See https://developers.google.com/sheets/api/reference/rest and
// https://developers.google.com/drive/api/reference/rest/v3/files/list.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.astrophena.name/prodbot/internal/catalog"
	"go.astrophena.name/prodbot/internal/request"
)

const (
	sheetsAPI = "https://sheets.googleapis.com/v4/spreadsheets"
	driveAPI  = "https://www.googleapis.com/drive/v3/files"
)

// Scopes are the OAuth scopes needed to read spreadsheets and find them by
// name.
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets.readonly",
	"https://www.googleapis.com/auth/drive.metadata.readonly",
}

// TokenSource provides OAuth access tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is a minimal Google Sheets and Drive API client.
type Client struct {
	// Tokens provides access tokens for requests.
	Tokens TokenSource
	// HTTPClient is an optional custom HTTP client object to use for requests.
	// If not provided, request.DefaultClient will be used.
	HTTPClient *http.Client
	// Scrubber is used to scrub sensitive information from errors.
	Scrubber *strings.Replacer
}

// Error is returned by Client methods. It wraps both the underlying error
// and one of catalog.ErrAuth, catalog.ErrNetwork or catalog.ErrNotFound when
// the failure could be classified.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string { return "sheets: " + e.Op + ": " + e.Err.Error() }

// Unwrap returns the kind and the underlying error.
func (e *Error) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

func wrapErr(op string, err error) error {
	e := &Error{Op: op, Err: err}

	var (
		statusErr *request.StatusError
		netErr    net.Error
	)
	switch {
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			e.Kind = catalog.ErrAuth
		case statusErr.StatusCode == http.StatusNotFound:
			e.Kind = catalog.ErrNotFound
		case statusErr.StatusCode == http.StatusBadRequest && strings.Contains(string(statusErr.Body), "Unable to parse range"):
			// Returned when the worksheet doesn't exist.
			e.Kind = catalog.ErrNotFound
		case statusErr.StatusCode >= 500:
			e.Kind = catalog.ErrNetwork
		}
	case errors.As(err, &netErr):
		e.Kind = catalog.ErrNetwork
	}
	return e
}

func get[Response any](ctx context.Context, c *Client, op, u string) (Response, error) {
	var resp Response

	tok, err := c.Tokens.Token(ctx)
	if err != nil {
		kind := catalog.ErrAuth
		var netErr net.Error
		if errors.As(err, &netErr) {
			kind = catalog.ErrNetwork
		}
		return resp, &Error{Op: op, Kind: kind, Err: fmt.Errorf("getting access token: %w", err)}
	}

	resp, err = request.Make[Response](ctx, request.Params{
		Method: http.MethodGet,
		URL:    u,
		Headers: map[string]string{
			"Authorization": "Bearer " + tok,
		},
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return resp, wrapErr(op, err)
	}
	return resp, nil
}

// FindSpreadsheet returns the ID of the first spreadsheet named name that the
// service account can see.
func (c *Client) FindSpreadsheet(ctx context.Context, name string) (string, error) {
	const op = "find spreadsheet"

	q := url.Values{}
	q.Set("q", fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false", escapeQuery(name)))
	q.Set("fields", "files(id,name)")
	q.Set("pageSize", "10")
	q.Set("supportsAllDrives", "true")
	q.Set("includeItemsFromAllDrives", "true")

	type response struct {
		Files []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"files"`
	}
	resp, err := get[response](ctx, c, op, driveAPI+"?"+q.Encode())
	if err != nil {
		return "", err
	}
	for _, f := range resp.Files {
		if f.Name == name && f.ID != "" {
			return f.ID, nil
		}
	}
	return "", &Error{Op: op, Kind: catalog.ErrNotFound, Err: fmt.Errorf("no spreadsheet named %q", name)}
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// SheetTitles returns the titles of worksheets in the spreadsheet, in order.
func (c *Client) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	type response struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	u := sheetsAPI + "/" + url.PathEscape(spreadsheetID) + "?fields=" + url.QueryEscape("sheets.properties.title")
	resp, err := get[response](ctx, c, "get spreadsheet", u)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		titles = append(titles, s.Properties.Title)
	}
	return titles, nil
}

// Values returns formatted cell values of the range in A1 notation. Trailing
// empty cells and rows are omitted by the API.
func (c *Client) Values(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error) {
	type response struct {
		Values [][]string `json:"values"`
	}
	u := sheetsAPI + "/" + url.PathEscape(spreadsheetID) + "/values/" + url.PathEscape(a1Range) +
		"?majorDimension=ROWS&valueRenderOption=FORMATTED_VALUE"
	resp, err := get[response](ctx, c, "get values", u)
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// SheetRange returns A1 notation covering the whole worksheet title.
func SheetRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// Records converts worksheet values into records keyed by the first row.
//
// Rows shorter than the header are padded with empty values. Columns with an
// empty header are skipped, and if a header repeats, the leftmost column wins.
func Records(values [][]string) catalog.Catalog {
	if len(values) == 0 {
		return catalog.Catalog{}
	}
	header := values[0]
	records := make(catalog.Catalog, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := make(catalog.Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if _, dup := rec[col]; dup {
				continue
			}
			var v string
			if i < len(row) {
				v = row[i]
			}
			rec[col] = v
		}
		records = append(records, rec)
	}
	return records
}
