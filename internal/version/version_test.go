// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"go.astrophena.name/prodbot/internal/testutil"
)

func TestLoadInfo(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		bi   *debug.BuildInfo
		ok   bool
		want Info
	}{
		"release": {
			bi: &debug.BuildInfo{
				Path: "go.astrophena.name/prodbot/cmd/prodbot",
				Main: debug.Module{Version: "v1.2.0"},
			},
			ok:   true,
			want: Info{Name: "prodbot", Version: "v1.2.0"},
		},
		"devel with vcs": {
			bi: &debug.BuildInfo{
				Path: "go.astrophena.name/prodbot/cmd/prodbot",
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abcdef"},
					{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
					{Key: "vcs.modified", Value: "true"},
				},
			},
			ok: true,
			want: Info{
				Name:    "prodbot",
				Version: "devel",
				Commit:  "abcdef",
				BuiltAt: "2026-01-02T03:04:05Z",
				Dirty:   true,
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := loadInfo(func() (*debug.BuildInfo, bool) { return tc.bi, tc.ok })
			tc.want.Go = runtime.Version()
			tc.want.OS = runtime.GOOS
			tc.want.Arch = runtime.GOARCH
			testutil.AssertEqual(t, got, tc.want)
		})
	}
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	testutil.AssertEqual(t, userAgent(Info{Name: "prodbot", Version: "v1.0.0"}), "prodbot/v1.0.0")
	testutil.AssertEqual(t, userAgent(Info{Name: "prodbot", Version: "devel", Commit: "abc"}), "prodbot/abc")
	testutil.AssertEqual(t, userAgent(Info{Name: "prodbot", Version: "devel"}), "prodbot/devel")
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	i := Info{
		Name:    "prodbot",
		Version: "devel",
		Commit:  "abc",
		BuiltAt: "today",
		Go:      "go1.24.0",
		OS:      "linux",
		Arch:    "amd64",
	}
	testutil.AssertEqual(t, i.String(), "prodbot devel (go1.24.0, linux/amd64)\ncommit abc\nbuilt at today\n")
}
