// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// DefaultTimeout bounds a single catalog fetch when Service.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Errors that a [Source] wraps to tell why a fetch failed.
var (
	ErrAuth     = errors.New("authentication failed")
	ErrNetwork  = errors.New("network failure")
	ErrNotFound = errors.New("table not found")
)

// Source fetches the current catalog.
type Source interface {
	// FetchAll returns all rows of the table, in table order.
	FetchAll(ctx context.Context) (Catalog, error)
}

// SourceFunc is a function type that implements the [Source] interface.
type SourceFunc func(ctx context.Context) (Catalog, error)

// FetchAll calls f(ctx).
func (f SourceFunc) FetchAll(ctx context.Context) (Catalog, error) { return f(ctx) }

// Service looks up products in a catalog fetched from Source on every call.
// It keeps no state between calls and is safe for concurrent use.
type Service struct {
	source  Source
	aliases Aliases
	timeout time.Duration
	logger  *slog.Logger
}

// Opts configures a Service.
type Opts struct {
	// Source is the table to fetch rows from. Required.
	Source Source
	// Aliases overrides DefaultAliases. Empty lists fall back to the defaults
	// for that field.
	Aliases Aliases
	// Timeout bounds each fetch. If zero, DefaultTimeout is used.
	Timeout time.Duration
	// Logger receives fetch failures. If nil, slog.Default is used.
	Logger *slog.Logger
}

// NewService returns a new Service.
func NewService(opts Opts) *Service {
	s := &Service{
		source:  opts.Source,
		aliases: mergeAliases(opts.Aliases, DefaultAliases()),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func mergeAliases(a, def Aliases) Aliases {
	or := func(l, d []string) []string {
		if len(l) == 0 {
			return d
		}
		return l
	}
	return Aliases{
		Number: or(a.Number, def.Number),
		Link:   or(a.Link, def.Link),
		Name:   or(a.Name, def.Name),
	}
}

// Aliases returns column names the Service resolves.
func (s *Service) Aliases() Aliases { return s.aliases }

// Lookup fetches the catalog and looks up the product with number query.
//
// Any fetch failure, including a timeout, results in SourceUnavailable. The
// failure itself is logged, not returned.
func (s *Service) Lookup(ctx context.Context, query string) Result {
	query = strings.TrimSpace(query)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.source.FetchAll(ctx)
	if err != nil {
		s.logger.Error("fetching catalog failed",
			slog.String("cause", Cause(err)),
			slog.String("query", query),
			slog.Any("error", err),
		)
		return Result{Kind: SourceUnavailable}
	}

	res := Lookup(query, c, s.aliases)
	s.logger.Debug("lookup finished",
		slog.String("query", query),
		slog.Int("rows", len(c)),
		slog.String("result", res.Kind.String()),
	)
	return res
}

// Cause returns a short name for the reason of a fetch failure.
func Cause(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "other"
	}
}
