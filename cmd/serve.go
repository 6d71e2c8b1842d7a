package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"

	"github.com/teemow/mailbot/internal/config"
	"github.com/teemow/mailbot/internal/digest"
	"github.com/teemow/mailbot/internal/gateway"
	"github.com/teemow/mailbot/internal/google"
	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/logging"
	"github.com/teemow/mailbot/internal/server"
	"github.com/teemow/mailbot/internal/tools/digest_tools"
	"github.com/teemow/mailbot/internal/tools/gmail_tools"
)

// serveFlags holds the command-line overrides of `mailbot serve`.
type serveFlags struct {
	debugMode        bool
	transport        string
	httpAddr         string
	yolo             bool
	disableStreaming bool
	cors             bool
	apiPrefix        string
	fetchConcurrency int
	rateLimit        float64
	rateBurst        int
	sessionStore     string
	valkeyURL        string
	metricsEnabled   bool
	metricsAddr      string
	digestURL        string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway and MCP server",
		Long: `Start the mailbot gateway. It serves the Gmail label API under the API
prefix, the Model Context Protocol endpoint at /mcp and health probes.

Supports multiple transport types:
  - streamable-http: JSON API, MCP and probes over HTTP (default)
  - stdio: MCP over standard input/output, authenticated with a static
    access token (GOOGLE_ACCESS_TOKEN or [google] access_token)

Safety Mode:
  By default, MCP tools are read-only. Use --yolo to register the tools that
  create, rename or delete labels and change email labels.

Authentication:
  Callers send "Authorization: Bearer <access token>". To open a session,
  send the token with any X-Mailbot-Session value; the server answers with a
  new session id in the X-Mailbot-Session header and the mailbot_session
  cookie. Later requests may send only that id. The static access token is
  never used for HTTP callers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags.apply(cmd.Flags(), cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cfg)
		},
	}

	flags.register(cmd.Flags())

	return cmd
}

// register binds the serve flags to fs.
func (f *serveFlags) register(fs *pflag.FlagSet) {
	defaults := config.Defaults()
	fs.BoolVar(&f.debugMode, "debug", false, "Enable debug logging")
	fs.StringVar(&f.transport, "transport", defaults.Server.Transport, "Transport type: stdio or streamable-http")
	fs.StringVar(&f.httpAddr, "http-addr", defaults.Server.HTTPAddr, "HTTP server address (for streamable-http transport)")
	fs.BoolVar(&f.yolo, "yolo", false, "Enable write MCP tools (label changes). Default is read-only mode.")
	fs.BoolVar(&f.disableStreaming, "disable-streaming", false, "Disable streaming for the MCP HTTP transport (for compatibility with certain clients)")
	fs.BoolVar(&f.cors, "cors", false, "Allow cross-origin requests on the gateway API")
	fs.StringVar(&f.apiPrefix, "api-prefix", defaults.Server.APIPrefix, "Mount point of the gateway API")
	fs.IntVar(&f.fetchConcurrency, "fetch-concurrency", defaults.Server.FetchConcurrency, "Maximum concurrent message fetches per request")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "Per-client requests per second on the gateway API (0 disables)")
	fs.IntVar(&f.rateBurst, "rate-burst", defaults.Server.RateBurst, "Per-client burst on the gateway API")
	fs.StringVar(&f.sessionStore, "session-store", defaults.Session.Store, "Session token store: memory or valkey. Can also use MAILBOT_SESSION_STORE env var.")
	fs.StringVar(&f.valkeyURL, "valkey-url", "", "Valkey server address (e.g., valkey.namespace.svc:6379). Can also use VALKEY_URL env var.")
	fs.BoolVar(&f.metricsEnabled, "metrics-enabled", defaults.Metrics.Enabled, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	fs.StringVar(&f.metricsAddr, "metrics-addr", defaults.Metrics.Addr, "Metrics server address. Can also use METRICS_ADDR env var.")
	fs.StringVar(&f.digestURL, "digest-url", "", "Digest backend base URL. Can also use MAILBOT_DIGEST_URL env var.")
}

// apply copies every flag the user set onto cfg. Unset flags leave the
// file and environment values in place.
func (f *serveFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("debug") {
		cfg.Log.Debug = f.debugMode
	}
	if fs.Changed("transport") {
		cfg.Server.Transport = f.transport
	}
	if fs.Changed("http-addr") {
		cfg.Server.HTTPAddr = f.httpAddr
	}
	if fs.Changed("yolo") {
		cfg.Server.AllowWrites = f.yolo
	}
	if fs.Changed("disable-streaming") {
		cfg.Server.DisableStreaming = f.disableStreaming
	}
	if fs.Changed("cors") {
		cfg.Server.CORS = f.cors
	}
	if fs.Changed("api-prefix") {
		cfg.Server.APIPrefix = f.apiPrefix
	}
	if fs.Changed("fetch-concurrency") {
		cfg.Server.FetchConcurrency = f.fetchConcurrency
	}
	if fs.Changed("rate-limit") {
		cfg.Server.RateLimit = f.rateLimit
	}
	if fs.Changed("rate-burst") {
		cfg.Server.RateBurst = f.rateBurst
	}
	if fs.Changed("session-store") {
		cfg.Session.Store = f.sessionStore
	}
	if fs.Changed("valkey-url") {
		cfg.Session.Valkey.URL = f.valkeyURL
	}
	if fs.Changed("metrics-enabled") {
		cfg.Metrics.Enabled = f.metricsEnabled
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if fs.Changed("digest-url") {
		cfg.Digest.BaseURL = f.digestURL
	}
}

func runServe(cfg *config.Config) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the MCP stream in stdio mode, so logs always go to stderr.
	logger := logging.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Debug)
	slog.SetDefault(logger)
	stdio := cfg.Server.Transport == config.TransportStdio

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	sessionStore, closeStore, err := newSessionStore(cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()
	sessions := google.NewSessionProvider(sessionStore)

	serverContext, err := newServerContext(shutdownCtx, cfg, logger, metrics, sessions,
		instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging))
	if err != nil {
		return err
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	mcpSrv := mcpserver.NewMCPServer("mailbot", version,
		mcpserver.WithToolCapabilities(true),
	)

	readOnly := !cfg.Server.AllowWrites
	if readOnly {
		logger.Info("MCP tools are read-only (use --yolo to enable write operations)")
	} else {
		logger.Info("MCP write tools enabled (--yolo)")
	}

	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	if stdio {
		return runStdioServer(mcpSrv, google.NewStaticProvider(cfg.Google.AccessToken).StaticToken())
	}

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = startMetricsServer(cfg.Metrics.Addr, provider)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	return runStreamableHTTPServer(shutdownCtx, cfg, serverContext, mcpSrv)
}

// newSessionStore opens the configured session token store. The returned
// func releases it.
// newServerContext wires the gateway, digest client and HTTP token chain.
// The configured static token is not part of the chain: HTTP callers must
// present a bearer token or a session. Only stdio uses the static token.
func newServerContext(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics, sessions *google.SessionProvider, audit *instrumentation.AuditLogger) (*server.ServerContext, error) {
	sc, err := server.NewServerContext(ctx, server.Options{
		Gateway: gateway.NewService(gateway.Config{
			Logger:           logger,
			Metrics:          metrics,
			FetchConcurrency: cfg.Server.FetchConcurrency,
		}),
		Digest:      digest.NewClient(cfg.Digest.BaseURL, digest.WithMetrics(metrics), digest.WithLogger(logger)),
		Tokens:      google.NewChain(metrics, logging.NewSlogAdapter(logger), google.BearerProvider{}, sessions),
		Sessions:    sessions,
		Metrics:     metrics,
		AuditLogger: audit,
		Logger:      logger,
		AllowWrites: cfg.Server.AllowWrites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return sc, nil
}

func newSessionStore(cfg config.SessionConfig) (google.SessionStore, func(), error) {
	switch cfg.Store {
	case config.SessionStoreValkey:
		store, err := google.NewValkeyStore(google.ValkeyConfig{
			URL:        cfg.Valkey.URL,
			Password:   cfg.Valkey.Password,
			TLSEnabled: cfg.Valkey.TLSEnabled,
			KeyPrefix:  cfg.Valkey.KeyPrefix,
			DB:         cfg.Valkey.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open valkey session store: %w", err)
		}
		return store, store.Close, nil
	default:
		store := memory.New()
		return store, store.Stop, nil
	}
}

func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Gmail",
			register: func() error {
				return gmail_tools.RegisterGmailTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Digest",
			register: func() error {
				return digest_tools.RegisterDigestTools(mcpSrv, ctx, readOnly)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer, token *oauth2.Token) error {
	if token == nil {
		slog.Warn("no static access token configured, tool calls will fail with Not authenticated")
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		err := mcpserver.ServeStdio(mcpSrv, mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
			if token == nil {
				return ctx
			}
			return google.WithToken(ctx, token)
		}))
		if err != nil {
			serverDone <- err
		}
	}()

	if err := <-serverDone; err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func startMetricsServer(addr string, provider *instrumentation.Provider) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		Enabled:                 true,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	metricsReady := make(chan string, 1)
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case bound := <-metricsReady:
		slog.Info("metrics server started", "addr", bound)
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, errors.New("metrics server startup timed out")
	}
}

func runStreamableHTTPServer(ctx context.Context, cfg *config.Config, sc *server.ServerContext, mcpSrv *mcpserver.MCPServer) error {
	logger := sc.Logger()

	var limiter *server.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = server.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go limiter.Run(ctx)
	}

	health := server.NewHealthCheckerWithVersion(sc, version)
	router := server.NewRouter(sc, server.RouterConfig{
		APIPrefix:   cfg.Server.APIPrefix,
		MCPHandler:  server.NewMCPHandler(mcpSrv, cfg.Server.DisableStreaming),
		Health:      health,
		RateLimiter: limiter,
		CORS:        cfg.Server.CORS,
	})
	httpServer := server.NewHTTPServer(cfg.Server.HTTPAddr, router)

	logger.Info("mailbot gateway starting",
		"addr", cfg.Server.HTTPAddr,
		"api_prefix", cfg.Server.APIPrefix,
		"mcp_endpoint", server.MCPEndpointPath,
		"session_store", cfg.Session.Store,
	)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()
	health.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
