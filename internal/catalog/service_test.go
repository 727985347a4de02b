// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.astrophena.name/prodbot/internal/testutil"
)

func testService(t *testing.T, src Source, opts Opts) (*Service, *bytes.Buffer) {
	t.Helper()
	var buf syncBuffer
	opts.Source = src
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	return NewService(opts), &buf.buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func staticSource(c Catalog) Source {
	return SourceFunc(func(context.Context) (Catalog, error) { return c, nil })
}

func TestServiceLookup(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t, staticSource(Catalog{
		{"product_no": "101", "product_link": "http://x/1"},
	}), Opts{})

	testutil.AssertEqual(t, svc.Lookup(t.Context(), "101"), Result{Kind: Found, Name: "Product 101", Link: "http://x/1"})
	testutil.AssertEqual(t, svc.Lookup(t.Context(), "  101\n"), Result{Kind: Found, Name: "Product 101", Link: "http://x/1"})
	testutil.AssertEqual(t, svc.Lookup(t.Context(), "102"), Result{Kind: NotFound})
}

func TestServiceFetchesEveryTime(t *testing.T) {
	t.Parallel()

	var calls int
	svc, _ := testService(t, SourceFunc(func(context.Context) (Catalog, error) {
		calls++
		return Catalog{{"product_no": "1", "product_link": fmt.Sprintf("http://x/%d", calls)}}, nil
	}), Opts{})

	testutil.AssertEqual(t, svc.Lookup(t.Context(), "1").Link, "http://x/1")
	testutil.AssertEqual(t, svc.Lookup(t.Context(), "1").Link, "http://x/2")
	testutil.AssertEqual(t, calls, 2)
}

func TestServiceSourceUnavailable(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err       error
		wantCause string
	}{
		"auth":      {err: fmt.Errorf("getting token: %w", ErrAuth), wantCause: "auth"},
		"network":   {err: fmt.Errorf("dial tcp: %w", ErrNetwork), wantCause: "network"},
		"not found": {err: fmt.Errorf("spreadsheet %q: %w", "product_list", ErrNotFound), wantCause: "not found"},
		"other":     {err: errors.New("malformed response"), wantCause: "other"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			svc, logs := testService(t, SourceFunc(func(context.Context) (Catalog, error) {
				return nil, tc.err
			}), Opts{})

			for _, q := range []string{"1", "", "anything"} {
				testutil.AssertEqual(t, svc.Lookup(t.Context(), q), Result{Kind: SourceUnavailable})
			}
			if !strings.Contains(logs.String(), fmt.Sprintf("cause=%q", tc.wantCause)) && !strings.Contains(logs.String(), "cause="+tc.wantCause) {
				t.Fatalf("logs must mention cause %q, got:\n%s", tc.wantCause, logs)
			}
		})
	}
}

func TestServiceTimeout(t *testing.T) {
	t.Parallel()

	svc, logs := testService(t, SourceFunc(func(ctx context.Context) (Catalog, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), Opts{Timeout: 10 * time.Millisecond})

	testutil.AssertEqual(t, svc.Lookup(t.Context(), "1"), Result{Kind: SourceUnavailable})
	if !strings.Contains(logs.String(), "cause=timeout") {
		t.Fatalf("logs must mention timeout, got:\n%s", logs)
	}
}

func TestServiceAliases(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t, staticSource(Catalog{
		{"SKU": "A-1", "product_link": "http://x/a1", "Title": "Anvil"},
	}), Opts{
		Aliases: Aliases{Number: []string{"SKU"}, Name: []string{"Title"}},
	})

	testutil.AssertEqual(t, svc.Aliases().Link, DefaultAliases().Link)
	testutil.AssertEqual(t, svc.Lookup(t.Context(), "A-1"), Result{Kind: Found, Name: "Anvil", Link: "http://x/a1"})
}

func TestServiceConcurrentLookups(t *testing.T) {
	t.Parallel()

	svc, _ := testService(t, staticSource(Catalog{
		{"product_no": "1", "product_link": "http://x/1"},
		{"product_no": "2"},
	}), Opts{})

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			want := Result{Kind: Found, Name: "Product 1", Link: "http://x/1"}
			q := "1"
			if i%2 == 1 {
				want, q = Result{Kind: FoundNoLink}, "2"
			}
			if got := svc.Lookup(context.Background(), q); got != want {
				t.Errorf("Lookup(%q) = %+v, want %+v", q, got, want)
			}
		}()
	}
	wg.Wait()
}
