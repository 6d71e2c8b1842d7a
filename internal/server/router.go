package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultAPIPrefix is where the gateway API is mounted.
const DefaultAPIPrefix = "/api"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// APIPrefix is the mount point of the gateway API. Defaults to /api.
	APIPrefix string

	// MCPHandler serves /mcp when set.
	MCPHandler http.Handler

	// Health serves the probe endpoints. A default checker is used when nil.
	Health *HealthChecker

	// RateLimiter limits gateway API requests per client when set.
	RateLimiter *RateLimiter

	// CORS enables cross-origin requests on the API.
	CORS bool
}

// NewRouter creates the chi router with all routes.
func NewRouter(sc *ServerContext, cfg RouterConfig) http.Handler {
	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = DefaultAPIPrefix
	}
	health := cfg.Health
	if health == nil {
		health = NewHealthChecker(sc)
	}
	svc := sc.Gateway()
	logger := sc.Logger()

	r := chi.NewRouter()
	r.Use(requestIDHeader)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(instrumentRequests(logger, sc.Metrics()))
	r.Use(middleware.Recoverer)

	health.RegisterHealthEndpoints(r)

	r.Route(prefix, func(r chi.Router) {
		if cfg.CORS {
			r.Use(corsMiddleware)
		}
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		r.Use(resolveToken(sc))

		r.Get("/emails/fetch", handleFetchEmails(svc, logger))
		r.Post("/emails/labels", handleModifyLabels(svc, logger, true))
		r.Delete("/emails/labels", handleModifyLabels(svc, logger, false))

		r.Get("/labels", handleListLabels(svc, logger))
		r.Post("/labels", handleCreateLabel(svc, logger))
		r.Patch("/labels/{id}", handleUpdateLabel(svc, logger))
		r.Put("/labels/{id}", handleUpdateLabel(svc, logger))
		r.Delete("/labels/{id}", handleDeleteLabel(svc, logger))
	})

	if cfg.MCPHandler != nil {
		r.With(resolveToken(sc), requireToken).Handle("/mcp", cfg.MCPHandler)
	}

	return r
}
