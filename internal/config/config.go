// Package config loads mailbot settings. Values are layered: built-in
// defaults, then the TOML file, then environment variables. Command-line
// flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Transports accepted by Server.Transport.
const (
	TransportStdio          = "stdio"
	TransportStreamableHTTP = "streamable-http"
)

// Session stores accepted by Session.Store.
const (
	SessionStoreMemory = "memory"
	SessionStoreValkey = "valkey"
)

// Config holds all mailbot configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Metrics MetricsConfig `toml:"metrics"`
	Session SessionConfig `toml:"session"`
	Google  GoogleConfig  `toml:"google"`
	Digest  DigestConfig  `toml:"digest"`
	Client  ClientConfig  `toml:"client"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig holds settings of `mailbot serve`.
type ServerConfig struct {
	HTTPAddr         string `toml:"http_addr"`
	Transport        string `toml:"transport"`
	APIPrefix        string `toml:"api_prefix"`
	AllowWrites      bool   `toml:"yolo"`
	DisableStreaming bool   `toml:"disable_streaming"`
	CORS             bool   `toml:"cors"`
	FetchConcurrency int    `toml:"fetch_concurrency"`

	// RateLimit is the per-client request rate on the gateway API. Zero
	// disables limiting.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// MetricsConfig holds the metrics listener settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// SessionConfig selects where session tokens are kept.
type SessionConfig struct {
	Store  string       `toml:"store"`
	Valkey ValkeyConfig `toml:"valkey"`
}

// ValkeyConfig holds the Valkey session store settings.
type ValkeyConfig struct {
	URL        string `toml:"url"`
	Password   string `toml:"password"`
	TLSEnabled bool   `toml:"tls"`
	KeyPrefix  string `toml:"key_prefix"`
	DB         int    `toml:"db"`
}

// GoogleConfig holds the static access token used in stdio mode.
type GoogleConfig struct {
	AccessToken string `toml:"access_token"`
}

// DigestConfig holds the digest backend settings.
type DigestConfig struct {
	BaseURL string `toml:"base_url"`
}

// ClientConfig holds the settings of the commands that talk to a running
// gateway.
type ClientConfig struct {
	GatewayURL string `toml:"gateway_url"`
	Token      string `toml:"token"`
	SessionID  string `toml:"session_id"`
	EmailCount int    `toml:"email_count"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `toml:"format"`
	Debug  bool   `toml:"debug"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			HTTPAddr:         ":8080",
			Transport:        TransportStreamableHTTP,
			APIPrefix:        "/api",
			FetchConcurrency: 10,
			RateBurst:        20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Session: SessionConfig{
			Store: SessionStoreMemory,
			Valkey: ValkeyConfig{
				KeyPrefix: "mailbot:session:",
			},
		},
		Digest: DigestConfig{
			BaseURL: "https://mailbot.up.railway.app/api",
		},
		Client: ClientConfig{
			GatewayURL: "http://localhost:8080/api",
			EmailCount: 10,
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/mailbot/config.toml.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Dir returns the mailbot config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mailbot")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mailbot")
}

// Load reads defaults, then the file at path, then the environment. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			md, err := toml.Decode(string(data), &cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
			}
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides values from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("MAILBOT_HTTP_ADDR", &c.Server.HTTPAddr)
	str("MAILBOT_TRANSPORT", &c.Server.Transport)
	str("MAILBOT_API_PREFIX", &c.Server.APIPrefix)
	boolean("MAILBOT_YOLO", &c.Server.AllowWrites)
	boolean("MAILBOT_CORS", &c.Server.CORS)
	integer("MAILBOT_FETCH_CONCURRENCY", &c.Server.FetchConcurrency)

	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	str("METRICS_ADDR", &c.Metrics.Addr)

	str("MAILBOT_SESSION_STORE", &c.Session.Store)
	str("VALKEY_URL", &c.Session.Valkey.URL)
	str("VALKEY_PASSWORD", &c.Session.Valkey.Password)
	boolean("VALKEY_TLS_ENABLED", &c.Session.Valkey.TLSEnabled)
	str("VALKEY_KEY_PREFIX", &c.Session.Valkey.KeyPrefix)
	integer("VALKEY_DB", &c.Session.Valkey.DB)

	str("GOOGLE_ACCESS_TOKEN", &c.Google.AccessToken)
	str("MAILBOT_DIGEST_URL", &c.Digest.BaseURL)

	str("MAILBOT_GATEWAY_URL", &c.Client.GatewayURL)
	str("MAILBOT_TOKEN", &c.Client.Token)
	str("MAILBOT_SESSION_ID", &c.Client.SessionID)
	integer("MAILBOT_EMAIL_COUNT", &c.Client.EmailCount)

	str("MAILBOT_LOG_FORMAT", &c.Log.Format)
	boolean("MAILBOT_DEBUG", &c.Log.Debug)

	return errors.Join(errs...)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Server.Transport {
	case TransportStdio, TransportStreamableHTTP:
	default:
		errs = append(errs, fmt.Errorf("invalid transport %q, must be one of: %s, %s", c.Server.Transport, TransportStdio, TransportStreamableHTTP))
	}
	if c.Server.Transport == TransportStreamableHTTP {
		if _, _, err := net.SplitHostPort(c.Server.HTTPAddr); err != nil {
			errs = append(errs, fmt.Errorf("invalid http address %q: %w", c.Server.HTTPAddr, err))
		}
	}
	if c.Server.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("fetch concurrency must be at least 1, got %d", c.Server.FetchConcurrency))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %v", c.Server.RateLimit))
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("invalid metrics address %q: %w", c.Metrics.Addr, err))
		}
	}

	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreValkey:
		if c.Session.Valkey.URL == "" {
			errs = append(errs, errors.New("valkey URL is required when the session store is valkey"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid session store %q, must be one of: %s, %s", c.Session.Store, SessionStoreMemory, SessionStoreValkey))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q, must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}
