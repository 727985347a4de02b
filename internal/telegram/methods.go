// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode"
	"unicode/utf16"

	"go.astrophena.name/prodbot/internal/request"
	"go.astrophena.name/prodbot/internal/tgmarkup"
)

const (
	sendRetryLimit = 5    // N attempts to retry message sending
	maxMessageLen  = 4096 // in runes
)

func call[Result any](ctx context.Context, c *Client, method string, args any) (Result, error) {
	httpMethod := http.MethodGet
	if args != nil {
		httpMethod = http.MethodPost
	}
	resp, err := request.Make[response[Result]](ctx, request.Params{
		Method:     httpMethod,
		URL:        c.api + "/bot" + c.token + "/" + method,
		Body:       args,
		HTTPClient: c.httpc,
		Scrubber:   c.scrubber,
	})
	if err != nil {
		return resp.Result, err
	}
	if !resp.OK {
		return resp.Result, &APIError{Method: method, Code: resp.ErrorCode, Description: resp.Description}
	}
	return resp.Result, nil
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	return call[User](ctx, c, "getMe", nil)
}

// GetUpdates long polls for updates with IDs not less than offset, waiting up
// to timeout for at least one to arrive.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	return call[[]Update](ctx, c, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	})
}

// SetWebhook makes Telegram deliver updates to url, passing secret in the
// X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	_, err := call[bool](ctx, c, "setWebhook", map[string]any{
		"url":             url,
		"secret_token":    secret,
		"allowed_updates": []string{"message"},
	})
	return err
}

// DeleteWebhook removes the webhook so that updates can be polled.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", map[string]any{})
	return err
}

type sendMessageArgs struct {
	ChatID             int64 `json:"chat_id"`
	LinkPreviewOptions struct {
		IsDisabled bool `json:"is_disabled"`
	} `json:"link_preview_options"`
	tgmarkup.Message
}

// SendMessage sends m to a chat. A message longer than a single message
// allows is split into several. Rate limited requests are retried after the
// delay Telegram asks for.
func (c *Client) SendMessage(ctx context.Context, chatID int64, m tgmarkup.Message) error {
	args := &sendMessageArgs{ChatID: chatID}
	args.LinkPreviewOptions.IsDisabled = true

	for _, chunk := range splitMessage(m) {
		args.Message = chunk

		var err error
		for range sendRetryLimit {
			_, err = call[json.RawMessage](ctx, c, "sendMessage", args)
			if err == nil {
				break
			}

			retryable, wait := isRateLimited(err)
			if !retryable {
				break
			}

			c.slog.Warn("sending rate limited, waiting", slog.Int64("chat_id", chatID), slog.Duration("wait", wait))
			if !c.sleep(ctx, wait) {
				return ctx.Err()
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// splitMessage splits m into messages of at most maxMessageLen runes,
// preferring to break at newlines, then at other whitespace. Entities are
// clipped to the chunks they overlap.
func splitMessage(m tgmarkup.Message) []tgmarkup.Message {
	runes := []rune(m.Text)
	// u16[i] is the offset of runes[i] in UTF-16 code units.
	u16 := make([]int, len(runes)+1)
	for i, r := range runes {
		u16[i+1] = u16[i] + utf16.RuneLen(r)
	}

	var chunks []tgmarkup.Message
	start := 0
	for {
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
		if start == len(runes) {
			break
		}

		end := len(runes)
		if end-start > maxMessageLen {
			end = start + maxMessageLen
			lastNewline, lastWhitespace := -1, -1
			for i := start + 1; i < end; i++ {
				switch {
				case runes[i] == '\n':
					lastNewline = i
				case unicode.IsSpace(runes[i]):
					lastWhitespace = i
				}
			}
			switch {
			case lastNewline > 0:
				end = lastNewline
			case lastWhitespace > 0:
				end = lastWhitespace
			}
		}

		next := end
		for end > start && unicode.IsSpace(runes[end-1]) {
			end--
		}
		chunks = append(chunks, clip(m.Entities, string(runes[start:end]), u16[start], u16[end]))
		start = next
	}
	return chunks
}

// clip returns text with the parts of entities that fall into [lo, hi).
func clip(entities []tgmarkup.Entity, text string, lo, hi int) tgmarkup.Message {
	chunk := tgmarkup.Message{Text: text}
	for _, e := range entities {
		from, to := max(e.Offset, lo), min(e.Offset+e.Length, hi)
		if to <= from {
			continue
		}
		e.Offset, e.Length = from-lo, to-from
		chunk.Entities = append(chunk.Entities, e)
	}
	return chunk
}

func isRateLimited(err error) (bool, time.Duration) {
	var statusErr *request.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		return false, 0
	}

	var errorResponse struct {
		Parameters struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(statusErr.Body, &errorResponse); err != nil {
		return false, 0
	}
	return true, time.Duration(errorResponse.Parameters.RetryAfter) * time.Second
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
