package server

import (
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusNoTokens     = "no token sources"
)

// HealthChecker serves the liveness and readiness probes and a detailed
// report of how the gateway resolves tokens and reaches its backends.
type HealthChecker struct {
	version string
	ready   atomic.Bool
	sc      *ServerContext
	started time.Time
}

// NewHealthChecker creates a HealthChecker for sc. A nil sc is allowed and
// only reports the ready flag.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	return NewHealthCheckerWithVersion(sc, "")
}

// NewHealthCheckerWithVersion creates a HealthChecker that reports version.
// It starts ready.
func NewHealthCheckerWithVersion(sc *ServerContext, version string) *HealthChecker {
	h := &HealthChecker{version: version, sc: sc, started: time.Now()}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server accepts traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse is the body of /healthz/detailed.
type DetailedHealthResponse struct {
	Status           string            `json:"status"`
	Version          string            `json:"version,omitempty"`
	Uptime           string            `json:"uptime"`
	Checks           map[string]string `json:"checks"`
	TokenSources     []string          `json:"token_sources"`
	SessionStore     bool              `json:"session_store"`
	WritesEnabled    bool              `json:"writes_enabled"`
	FetchConcurrency int               `json:"fetch_concurrency,omitempty"`
	DigestBackend    string            `json:"digest_backend,omitempty"`
}

// routeRegistrar is satisfied by *http.ServeMux and chi.Router.
type routeRegistrar interface {
	Handle(pattern string, handler http.Handler)
}

// RegisterHealthEndpoints mounts /healthz, /readyz and /healthz/detailed.
func (h *HealthChecker) RegisterHealthEndpoints(mux routeRegistrar) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

// checks evaluates the readiness conditions. The token check fails when no
// provider could ever resolve a token, since every gateway call would 401.
func (h *HealthChecker) checks() (map[string]string, bool) {
	checks := map[string]string{
		"ready":       healthStatusOK,
		"shutdown":    healthStatusOK,
		"token_chain": healthStatusOK,
	}
	ok := true

	if !h.ready.Load() {
		checks["ready"] = healthStatusNotReady
		ok = false
	}
	if h.sc == nil {
		delete(checks, "token_chain")
		return checks, ok
	}
	if h.sc.IsShutdown() {
		checks["shutdown"] = healthStatusShuttingDown
		ok = false
	}
	if len(h.sc.Tokens().Sources()) == 0 {
		checks["token_chain"] = healthStatusNoTokens
		ok = false
	}
	return checks, ok
}

// LivenessHandler answers 200 while the process runs.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler answers 503 while the server is not ready, shutting down
// or unable to resolve tokens.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.checks()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: checks})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: checks})
	})
}

// DetailedHealthHandler reports the readiness checks together with the
// token sources, session store, write mode and digest backend in use.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		checks, ok := h.checks()
		resp := DetailedHealthResponse{
			Status:       healthStatusOK,
			Version:      h.version,
			Uptime:       time.Since(h.started).Truncate(time.Second).String(),
			Checks:       checks,
			TokenSources: []string{},
		}
		if sc := h.sc; sc != nil {
			resp.TokenSources = sc.Tokens().Sources()
			resp.SessionStore = sc.Sessions() != nil
			resp.WritesEnabled = sc.WritesEnabled()
			resp.FetchConcurrency = sc.Gateway().FetchConcurrency()
			resp.DigestBackend = sc.Digest().BaseURL()
		}

		code := http.StatusOK
		switch {
		case checks["shutdown"] == healthStatusShuttingDown:
			resp.Status = healthStatusShuttingDown
			code = http.StatusServiceUnavailable
		case !ok:
			resp.Status = healthStatusNotReady
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
}
