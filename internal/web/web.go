// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package web contains the HTTP server used by the bot for webhooks, health
// checks and debugging.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.astrophena.name/prodbot/internal/logger"
)

// StatusErr is a sentinel error type used to represent HTTP status code errors.
type StatusErr int

// Error returns a lowercase representation of the HTTP status text.
func (se StatusErr) Error() string { return strings.ToLower(http.StatusText(int(se))) }

const (
	// ErrNotFound represents a not found error (HTTP 404).
	ErrNotFound StatusErr = http.StatusNotFound
	// ErrMethodNotAllowed represents a method not allowed error (HTTP 405).
	ErrMethodNotAllowed StatusErr = http.StatusMethodNotAllowed
	// ErrBadRequest represents a bad request error (HTTP 400).
	ErrBadRequest StatusErr = http.StatusBadRequest
	// ErrInternalServerError represents an internal server error (HTTP 500).
	ErrInternalServerError StatusErr = http.StatusInternalServerError
)

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// RespondJSON writes response to w as indented JSON.
func RespondJSON(w http.ResponseWriter, response any) {
	b, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		http.Error(w, "JSON marshal error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
	w.Write([]byte("\n"))
}

// RespondJSONError writes err to w as a JSON error response.
//
// If err is a [StatusErr] or wraps it, its status code is used. Otherwise,
// the status code is 500 and the error is logged with the logger from the
// request context.
func RespondJSONError(w http.ResponseWriter, r *http.Request, err error) {
	var se StatusErr
	if !errors.As(err, &se) {
		se = ErrInternalServerError
		logger.Get(r.Context()).Error("internal server error", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	b, _ := json.MarshalIndent(&errorResponse{Status: "error", Error: err.Error()}, "", "  ")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(int(se))
	w.Write(b)
	w.Write([]byte("\n"))
}
