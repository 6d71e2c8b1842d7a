package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/logging"
)

// requestIDHeader assigns a UUID request id when the caller sent none and
// echoes the id back. It runs before middleware.RequestID, which picks the
// header up.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(middleware.RequestIDHeader, id)
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// instrumentRequests logs each request and records HTTP metrics against the
// matched route pattern.
func instrumentRequests(logger *slog.Logger, metrics *instrumentation.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			duration := time.Since(start)

			metrics.RecordHTTPRequest(r.Context(), r.Method, route, status, duration)

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"route", instrumentation.RouteLabel(route),
				"status", status,
				"duration", duration,
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// resolveToken resolves the access token once and stores it in the request
// context. It never rejects a request; the gateway decides.
//
// A bearer request that names a session id not already bound to that token
// is given a fresh server-issued session instead. The id is returned in the
// session header and cookie. Existing sessions are never overwritten.
func resolveToken(sc *ServerContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, source := sc.Tokens().Resolve(r)
			if tok == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := google.WithToken(r.Context(), tok)
			if sessionID := google.SessionID(r); sessionID != "" {
				if source == google.SourceBearer && sc.Sessions() != nil {
					sessionID = bindSession(w, r, sc, sessionID, tok)
				}
				if sessionID != "" {
					ctx = google.WithSessionID(ctx, sessionID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bindSession returns the session id the request may use with tok. A
// requested id is kept only when it already holds tok; otherwise a new
// session is issued. It returns "" when no session could be stored.
func bindSession(w http.ResponseWriter, r *http.Request, sc *ServerContext, requested string, tok *oauth2.Token) string {
	if sc.Sessions().Bound(r.Context(), requested, tok) {
		return requested
	}

	id, err := sc.Sessions().Issue(r.Context(), tok)
	if err != nil {
		sc.Logger().Warn("failed to store session token", logging.Err(err))
		return ""
	}
	w.Header().Set(google.SessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     google.SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// requireToken rejects requests without a resolved token.
func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !google.Valid(google.TokenFromContext(r.Context())) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mailbot"`)
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware allows browser clients on other origins to call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+google.SessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", google.SessionHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
