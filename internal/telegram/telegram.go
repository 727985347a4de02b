// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram is a small client for the Telegram Bot API.
//
// See https://core.telegram.org/bots/api.
package telegram

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultAPI is the Telegram Bot API server.
const DefaultAPI = "https://api.telegram.org"

// ErrNoToken is returned by [New] when no bot token is configured.
var ErrNoToken = errors.New("telegram: no bot token")

// Config configures a [Client].
type Config struct {
	// Token is the bot token obtained from @BotFather.
	Token string
	// API is the Bot API server. Defaults to DefaultAPI.
	API string
	// HTTPClient is used for making requests. Its timeout must exceed the
	// long polling timeout passed to GetUpdates.
	HTTPClient *http.Client
	// Scrubber masks secrets in returned errors.
	Scrubber *strings.Replacer
	Logger   *slog.Logger
}

// Client calls the Telegram Bot API.
type Client struct {
	api      string
	token    string
	httpc    *http.Client
	scrubber *strings.Replacer
	slog     *slog.Logger
	sleep    func(context.Context, time.Duration) bool
}

var defaultHTTPClient = &http.Client{Timeout: time.Minute}

// New returns a new Client.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	c := &Client{
		api:      strings.TrimSuffix(cmp.Or(cfg.API, DefaultAPI), "/"),
		token:    cfg.Token,
		httpc:    cfg.HTTPClient,
		scrubber: cfg.Scrubber,
		slog:     cfg.Logger,
		sleep:    sleep,
	}
	if c.httpc == nil {
		c.httpc = defaultHTTPClient
	}
	if c.slog == nil {
		c.slog = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// Chat is a Telegram chat.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an incoming message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// Command returns the bot command the message starts with, without the
// leading slash and the "@botname" suffix. It returns an empty string if the
// message is not a command.
func (m *Message) Command() string {
	if !strings.HasPrefix(m.Text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(m.Text[1:], " ")
	cmd, _, _ = strings.Cut(cmd, "\n")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd
}

// Update is an incoming update. Only message updates are decoded.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// APIError is an error reported by the Bot API in a response with "ok" set
// to false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s: %d %s", e.Method, e.Code, e.Description)
}

type response[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}
