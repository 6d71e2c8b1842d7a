package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("http addr = %q, want %q", cfg.Server.HTTPAddr, ":8080")
	}
	if cfg.Server.Transport != TransportStreamableHTTP {
		t.Errorf("transport = %q, want %q", cfg.Server.Transport, TransportStreamableHTTP)
	}
	if cfg.Server.AllowWrites {
		t.Error("writes must be disabled by default")
	}
	if cfg.Client.EmailCount != 10 {
		t.Errorf("email count = %d, want 10", cfg.Client.EmailCount)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
http_addr = "127.0.0.1:9000"
yolo = true
fetch_concurrency = 4

[session]
store = "valkey"

[session.valkey]
url = "valkey:6379"
db = 2

[client]
email_count = 25
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("http addr = %q", cfg.Server.HTTPAddr)
	}
	if !cfg.Server.AllowWrites {
		t.Error("yolo = true should enable writes")
	}
	if cfg.Server.FetchConcurrency != 4 {
		t.Errorf("fetch concurrency = %d, want 4", cfg.Server.FetchConcurrency)
	}
	if cfg.Session.Store != SessionStoreValkey || cfg.Session.Valkey.URL != "valkey:6379" || cfg.Session.Valkey.DB != 2 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Session.Valkey.KeyPrefix != "mailbot:session:" {
		t.Errorf("unset key prefix should keep its default, got %q", cfg.Session.Valkey.KeyPrefix)
	}
	if cfg.Client.EmailCount != 25 {
		t.Errorf("email count = %d, want 25", cfg.Client.EmailCount)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("metrics addr should keep its default, got %q", cfg.Metrics.Addr)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() should return defaults for a missing file, got error: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("http addr = %q, want default", cfg.Server.HTTPAddr)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[server\nhttp_addr = 1", "failed to parse config"},
		{"unknown key", "[server]\nport = 1\n", "unknown config keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server]\nhttp_addr = \"127.0.0.1:9000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAILBOT_HTTP_ADDR", "127.0.0.1:7000")
	t.Setenv("GOOGLE_ACCESS_TOKEN", "ya29.test")
	t.Setenv("MAILBOT_YOLO", "true")
	t.Setenv("MAILBOT_EMAIL_COUNT", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:7000" {
		t.Errorf("http addr = %q, want env value", cfg.Server.HTTPAddr)
	}
	if cfg.Google.AccessToken != "ya29.test" {
		t.Errorf("access token not read from env")
	}
	if !cfg.Server.AllowWrites {
		t.Error("MAILBOT_YOLO=true should enable writes")
	}
	if cfg.Client.EmailCount != 3 {
		t.Errorf("email count = %d, want 3", cfg.Client.EmailCount)
	}
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	env := map[string]string{
		"MAILBOT_YOLO":              "sometimes",
		"MAILBOT_FETCH_CONCURRENCY": "many",
	}
	cfg := Defaults()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{"MAILBOT_YOLO", "MAILBOT_FETCH_CONCURRENCY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
	if cfg.Server.FetchConcurrency != 10 {
		t.Errorf("invalid value must not change the setting, got %d", cfg.Server.FetchConcurrency)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }, "invalid transport"},
		{"bad http addr", func(c *Config) { c.Server.HTTPAddr = "8080" }, "invalid http address"},
		{"stdio ignores http addr", func(c *Config) { c.Server.Transport = TransportStdio; c.Server.HTTPAddr = "" }, ""},
		{"zero concurrency", func(c *Config) { c.Server.FetchConcurrency = 0 }, "fetch concurrency"},
		{"negative rate", func(c *Config) { c.Server.RateLimit = -1 }, "rate limit"},
		{"bad metrics addr", func(c *Config) { c.Metrics.Addr = "metrics" }, "invalid metrics address"},
		{"metrics disabled", func(c *Config) { c.Metrics.Enabled = false; c.Metrics.Addr = "" }, ""},
		{"valkey without url", func(c *Config) { c.Session.Store = SessionStoreValkey }, "valkey URL is required"},
		{"unknown store", func(c *Config) { c.Session.Store = "redis" }, "invalid session store"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestDefaultPath_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got, want := DefaultPath(), filepath.Join("/tmp/xdg", "mailbot", "config.toml"); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
