// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"testing"

	"go.astrophena.name/prodbot/internal/testutil"
)

func TestIsPrintableError(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		want bool
	}{
		"plain":           {err: errors.New("boom"), want: true},
		"invalid args":    {err: fmt.Errorf("%w: no", ErrInvalidArgs), want: true},
		"help":            {err: flag.ErrHelp, want: false},
		"wrapped help":    {err: &unprintableError{flag.ErrHelp}, want: false},
		"version exit":    {err: ErrExitVersion, want: false},
		"wrapped version": {err: fmt.Errorf("exit: %w", ErrExitVersion), want: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, isPrintableError(tc.err), tc.want)
		})
	}
}

func TestParseDocComment(t *testing.T) {
	docSrc = []byte("/*\nHello.\n\nWorld.\n*/\npackage main\n")
	t.Cleanup(func() { docSrc = nil })
	testutil.AssertEqual(t, parseDocComment(), "Hello.\n\nWorld.\n")
}

func TestGetEnvDefault(t *testing.T) {
	t.Parallel()

	if GetEnv(context.Background()).Getenv == nil {
		t.Fatal("GetEnv without environment in context must return OS environment")
	}
}
