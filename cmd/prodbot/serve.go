// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.astrophena.name/prodbot/internal/syncx"
	"go.astrophena.name/prodbot/internal/systemd"
	"go.astrophena.name/prodbot/internal/telegram"
	"go.astrophena.name/prodbot/internal/web"

	"golang.org/x/sync/errgroup"
)

const pollRetryDelay = 5 * time.Second

func (b *bot) webhookMode() bool { return b.host != "" }

// serve starts the HTTP server and receives updates either through the
// webhook or by long polling.
func (b *bot) serve(ctx context.Context) error {
	me, err := b.tg.GetMe(ctx)
	if err != nil {
		return err
	}
	b.logf("Authorized as @%s.", me.Username)

	mux := http.NewServeMux()
	health := web.Health(mux)
	health.RegisterFunc("telegram", func() (string, bool) { return b.telegramStatus.Load().health() })
	health.RegisterFunc("catalog", func() (string, bool) { return b.catalogStatus.Load().health() })
	dbg := web.Debugger(mux)
	dbg.Handle("logs", "Logs", b.logStream)
	if b.spreadsheetID != "" {
		dbg.KV("Spreadsheet", b.spreadsheetID)
	} else {
		dbg.KV("Spreadsheet", b.spreadsheetName)
	}
	dbg.KV("Bot", "@"+me.Username)

	srvConfig := &web.ListenAndServeConfig{
		Addr:       b.addr,
		Mux:        mux,
		Logf:       b.logf,
		Debuggable: true,
		DebugAuth:  b.debugAuth,
		Ready: func(addr string) {
			b.notifier.Notify(systemd.Ready)
			go b.notifier.WatchdogLoop(ctx)
			if b.ready != nil {
				b.ready(addr)
			}
		},
	}
	defer b.notifier.Notify(systemd.Stopping)

	if b.webhookMode() {
		mux.Handle("POST /telegram", telegram.WebhookHandler(b.tgSecret, func(r *http.Request, u telegram.Update) {
			b.handleUpdate(r.Context(), u)
		}))
		u := &url.URL{Scheme: "https", Host: b.host, Path: "/telegram"}
		if err := b.tg.SetWebhook(ctx, u.String(), b.tgSecret); err != nil {
			return err
		}
		b.logf("Receiving updates through webhook at %s.", u)
		return web.ListenAndServe(ctx, srvConfig)
	}

	if err := b.tg.DeleteWebhook(ctx); err != nil {
		return err
	}
	b.logf("Receiving updates through long polling.")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return web.ListenAndServe(ctx, srvConfig) })
	g.Go(func() error { return b.poll(ctx) })
	return g.Wait()
}

// debugAuth allows access to the debug interface from loopback addresses, or
// from anywhere when prodbot runs with -debug.
func (b *bot) debugAuth(r *http.Request) bool {
	return b.debug || web.AllowLoopback(r)
}

// poll receives updates until ctx is canceled, handling up to b.workers
// updates at once.
func (b *bot) poll(ctx context.Context) error {
	wg := syncx.NewLimitedWaitGroup(b.workers)
	defer wg.Wait()

	var offset int64
	for {
		updates, err := b.tg.GetUpdates(ctx, offset, b.pollTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			record(b.telegramStatus, err)
			b.slog.Warn("getting updates failed", slog.Any("error", err), slog.Duration("retry_in", pollRetryDelay))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = max(offset, u.UpdateID+1)
			wg.Go(func() { b.handleUpdate(ctx, u) })
		}
	}
}
