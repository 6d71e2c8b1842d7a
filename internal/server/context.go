package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teemow/mailbot/internal/digest"
	"github.com/teemow/mailbot/internal/gateway"
	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
)

// Options holds the dependencies of a ServerContext.
type Options struct {
	Gateway     *gateway.Service
	Digest      *digest.Client
	Tokens      *google.Chain
	Sessions    *google.SessionProvider
	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
	Logger      *slog.Logger
	AllowWrites bool
}

// ServerContext holds the shared state of a running mailbot server.
type ServerContext struct {
	ctx         context.Context
	cancel      context.CancelFunc
	gateway     *gateway.Service
	digest      *digest.Client
	tokens      *google.Chain
	sessions    *google.SessionProvider
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      *slog.Logger
	allowWrites bool

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context. A gateway is required.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	if opts.Gateway == nil {
		return nil, errors.New("gateway service is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tokens == nil {
		opts.Tokens = google.NewChain(opts.Metrics, nil, google.BearerProvider{})
	}
	if opts.Digest == nil {
		opts.Digest = digest.NewClient("", digest.WithMetrics(opts.Metrics), digest.WithLogger(opts.Logger))
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:         shutdownCtx,
		cancel:      cancel,
		gateway:     opts.Gateway,
		digest:      opts.Digest,
		tokens:      opts.Tokens,
		sessions:    opts.Sessions,
		metrics:     opts.Metrics,
		auditLogger: opts.AuditLogger,
		logger:      opts.Logger,
		allowWrites: opts.AllowWrites,
	}, nil
}

// Context returns the server context. It is cancelled on Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Gateway returns the Gmail gateway.
func (sc *ServerContext) Gateway() *gateway.Service {
	return sc.gateway
}

// Digest returns the digest backend client.
func (sc *ServerContext) Digest() *digest.Client {
	return sc.digest
}

// Tokens returns the token provider chain.
func (sc *ServerContext) Tokens() *google.Chain {
	return sc.tokens
}

// Sessions returns the session token provider, or nil when sessions are disabled.
func (sc *ServerContext) Sessions() *google.SessionProvider {
	return sc.sessions
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// WritesEnabled reports whether mutating MCP tools are registered.
func (sc *ServerContext) WritesEnabled() bool {
	return sc.allowWrites
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
