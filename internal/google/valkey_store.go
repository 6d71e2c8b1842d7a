package google

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
	"golang.org/x/oauth2"
)

const (
	// DefaultValkeyKeyPrefix namespaces session keys.
	DefaultValkeyKeyPrefix = "mailbot:session:"
	// DefaultSessionTTL bounds how long a session token is kept.
	DefaultSessionTTL = 24 * time.Hour
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// ValkeyConfig configures a ValkeyStore.
type ValkeyConfig struct {
	// URL is the server address, e.g. "valkey.namespace.svc:6379".
	URL        string
	Password   string
	TLSEnabled bool
	KeyPrefix  string
	DB         int
	TTL        time.Duration
}

// ValkeyStore is a SessionStore backed by Valkey, for deployments running
// more than one gateway replica.
type ValkeyStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyStore connects to Valkey.
func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("valkey URL is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultValkeyKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}

	opt := valkey.ClientOption{
		InitAddress: []string{cfg.URL},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	}
	if cfg.TLSEnabled {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}
	return &ValkeyStore{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}, nil
}

func (s *ValkeyStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// expiration returns how long tok should be kept: the store TTL, shortened
// to the token's own expiry when that comes first.
func (s *ValkeyStore) expiration(tok *oauth2.Token) time.Duration {
	ttl := s.ttl
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d < ttl {
			ttl = d
		}
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// SaveToken stores tok under sessionID.
func (s *ValkeyStore) SaveToken(ctx context.Context, sessionID string, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("token cannot be nil")
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	cmd := s.client.B().Set().Key(s.key(sessionID)).Value(string(data)).ExSeconds(int64(s.expiration(tok) / time.Second)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to store session token: %w", err)
	}
	return nil
}

// GetToken loads the token stored under sessionID.
func (s *ValkeyStore) GetToken(ctx context.Context, sessionID string) (*oauth2.Token, error) {
	val, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(sessionID)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(val), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode session token: %w", err)
	}
	return &tok, nil
}

// Close closes the connection.
func (s *ValkeyStore) Close() {
	s.client.Close()
}
