// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"log/slog"
	"strings"

	"go.astrophena.name/prodbot/internal/telegram"
	"go.astrophena.name/prodbot/internal/tgmarkup"
)

// handleUpdate replies to a message. Each text message gets exactly one
// reply; other updates and unknown commands are ignored.
func (b *bot) handleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil || msg.Text == "" {
		b.slog.Debug("ignoring update", slog.Int64("update_id", u.UpdateID))
		return
	}

	var reply tgmarkup.Message
	switch cmd := msg.Command(); cmd {
	case "start", "help":
		reply = tgmarkup.FromMarkdown(b.cfg.replies.welcome)
	case "":
		reply = b.answer(ctx, msg.Text)
	default:
		b.slog.Debug("ignoring command", slog.Int64("update_id", u.UpdateID), slog.String("command", cmd))
		return
	}

	err := b.tg.SendMessage(ctx, msg.Chat.ID, reply)
	record(b.telegramStatus, err)
	if err != nil {
		b.slog.Error("sending reply failed",
			slog.Int64("update_id", u.UpdateID),
			slog.Int64("chat_id", msg.Chat.ID),
			slog.Any("error", err),
		)
	}
}

func (b *bot) answer(ctx context.Context, text string) tgmarkup.Message {
	query := strings.TrimSpace(text)
	res := b.svc.Lookup(ctx, query)
	reply, err := b.cfg.replies.reply(query, res)
	if err != nil {
		b.slog.Error("rendering reply failed", slog.String("query", query), slog.Any("error", err))
		return tgmarkup.FromMarkdown(b.cfg.replies.unavailable)
	}
	b.slog.Info("answered", slog.String("query", query), slog.String("result", res.Kind.String()))
	return reply
}
