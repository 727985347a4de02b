// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package syncx

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.astrophena.name/prodbot/internal/testutil"
)

func TestProtected(t *testing.T) {
	t.Parallel()

	t.Run("read access", func(t *testing.T) {
		p := Protect(42)
		var result int
		p.ReadAccess(func(val int) { result = val })
		testutil.AssertEqual(t, result, 42)
	})

	t.Run("write access", func(t *testing.T) {
		p := Protect("old")
		p.WriteAccess(func(val *string) { *val = "new" })
		testutil.AssertEqual(t, p.Load(), "new")
	})

	t.Run("concurrent access", func(t *testing.T) {
		p := Protect(0)
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.WriteAccess(func(val *int) { *val++ })
			}()
		}
		wg.Wait()
		testutil.AssertEqual(t, p.Load(), 100)
	})
}

func TestLazy(t *testing.T) {
	t.Parallel()

	var (
		l     Lazy[int]
		count int
	)
	f := func() int {
		count++
		return count
	}
	testutil.AssertEqual(t, l.Get(f), 1)
	testutil.AssertEqual(t, l.Get(f), 1)
	testutil.AssertEqual(t, count, 1)

	var l2 Lazy[string]
	wantErr := errors.New("something went wrong")
	for range 2 {
		v, err := l2.GetErr(func() (string, error) { return "", wantErr })
		testutil.AssertEqual(t, v, "")
		if !errors.Is(err, wantErr) {
			t.Fatalf("GetErr() error = %v, want %v", err, wantErr)
		}
	}
}

func TestLimitedWaitGroup(t *testing.T) {
	t.Parallel()

	const concurrency = 5

	var (
		lwg                    = NewLimitedWaitGroup(concurrency)
		running, maxConcurrent atomic.Int32
		done                   atomic.Int32
	)
	for range 20 {
		lwg.Go(func() {
			cur := running.Add(1)
			defer running.Add(-1)
			for {
				old := maxConcurrent.Load()
				if cur <= old || maxConcurrent.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
		})
	}
	lwg.Wait()

	testutil.AssertEqual(t, done.Load(), int32(20))
	if got := maxConcurrent.Load(); got > concurrency {
		t.Fatalf("max concurrent goroutines = %d, want <= %d", got, concurrency)
	}
}
