// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package catalog finds products by number in a table of loosely named
// columns and extracts the product's display name and link.
//
// A [Catalog] is a snapshot of rows fetched from a [Source] for a single
// request. It is never cached or modified. Column names are not fixed: each
// logical field is resolved through an ordered list of accepted header
// spellings (see [Aliases]).
package catalog

import "strings"

// Row is a single product record, mapping column names to values.
type Row map[string]string

// Catalog is an ordered sequence of rows.
type Catalog []Row

// Kind is the outcome of a lookup.
type Kind int

const (
	// NotFound means that no row has the requested product number.
	NotFound Kind = iota
	// Found means that the product was found and has a link.
	Found
	// FoundNoLink means that the product was found, but none of its link
	// columns are populated.
	FoundNoLink
	// SourceUnavailable means that the catalog could not be fetched.
	SourceUnavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Found:
		return "found"
	case FoundNoLink:
		return "found, no link"
	case SourceUnavailable:
		return "source unavailable"
	default:
		return "unknown"
	}
}

// Result is the result of a lookup. Name and Link are set only when Kind is
// Found.
type Result struct {
	Kind Kind
	Name string
	Link string
}

// Lookup returns the first row in c whose product number equals query.
//
// Product numbers are compared exactly after trimming surrounding whitespace
// from the column value; query is expected to be trimmed already. If the
// matching row has no name, the name "Product <query>" is used.
func Lookup(query string, c Catalog, a Aliases) Result {
	for _, row := range c {
		number, ok := Resolve(row, a.Number)
		if !ok || number != query {
			continue
		}

		link, ok := Resolve(row, a.Link)
		if !ok {
			return Result{Kind: FoundNoLink}
		}
		name, ok := Resolve(row, a.Name)
		if !ok {
			name = "Product " + query
		}
		return Result{Kind: Found, Name: name, Link: link}
	}
	return Result{Kind: NotFound}
}

// Aliases holds ordered lists of accepted column names for each logical
// field of a product.
type Aliases struct {
	Number []string
	Link   []string
	Name   []string
}

// DefaultAliases returns the column names recognized when no others are
// configured.
func DefaultAliases() Aliases {
	return Aliases{
		Number: []string{"product_no", "Product No", "product_number", "Product Number"},
		Link:   []string{"product_link", "Product Link", "link", "URL", "url"},
		Name:   []string{"product_name", "Product Name", "name", "Name"},
	}
}

// Resolve returns the trimmed value of the first column from aliases that is
// present in row and not blank.
func Resolve(row Row, aliases []string) (string, bool) {
	for _, alias := range aliases {
		if v := strings.TrimSpace(row[alias]); v != "" {
			return v, true
		}
	}
	return "", false
}
