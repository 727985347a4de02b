// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package web

import (
	"net/http"
	"net/url"
	"strconv"

	"go.astrophena.name/prodbot/internal/syncx"
)

// Health returns the handler that serves /health on mux, registering it on
// first use.
func Health(mux *http.ServeMux) *HealthHandler {
	if h, pat := mux.Handler(&http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/health"}}); pat == "/health" {
		if hh, ok := h.(*HealthHandler); ok {
			return hh
		}
	}
	hh := &HealthHandler{checks: syncx.Protect(make(map[string]HealthFunc))}
	mux.Handle("/health", hh)
	return hh
}

// HealthHandler reports whether the upstreams the bot depends on answered
// their most recent request. It responds with 503 Service Unavailable while
// any of them is failing, so monitors can act on the status code alone.
type HealthHandler struct {
	checks *syncx.Protected[map[string]HealthFunc]
}

// HealthFunc reports the state of one upstream as a short status line and
// whether it is healthy. It must be safe for concurrent use.
type HealthFunc func() (status string, ok bool)

// RegisterFunc adds the check for the upstream name. It panics if a check
// with this name is already registered.
func (h *HealthHandler) RegisterFunc(name string, f HealthFunc) {
	h.checks.WriteAccess(func(checks *map[string]HealthFunc) {
		if _, dup := (*checks)[name]; dup {
			panic("web: duplicate health check " + strconv.Quote(name))
		}
		(*checks)[name] = f
	})
}

// HealthResponse is the body of a /health response.
type HealthResponse struct {
	OK     bool                     `json:"ok"`
	Checks map[string]CheckResponse `json:"checks"`
}

// CheckResponse is the state of one upstream.
type CheckResponse struct {
	Status string `json:"status"`
	OK     bool   `json:"ok"`
}

// ServeHTTP implements the [http.Handler] interface.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		RespondJSONError(w, r, ErrMethodNotAllowed)
		return
	}

	resp := HealthResponse{OK: true, Checks: make(map[string]CheckResponse)}
	h.checks.ReadAccess(func(checks map[string]HealthFunc) {
		for name, check := range checks {
			status, ok := check()
			resp.OK = resp.OK && ok
			resp.Checks[name] = CheckResponse{Status: status, OK: ok}
		}
	})

	w.Header().Set("Content-Type", "application/json")
	if !resp.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if r.Method == http.MethodHead {
		return
	}
	RespondJSON(w, resp)
}
