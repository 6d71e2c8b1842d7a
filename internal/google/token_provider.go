package google

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/giantswarm/mcp-oauth/storage"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/mailbot/internal/instrumentation"
	"github.com/teemow/mailbot/internal/logging"
)

// Token sources recorded in metrics and logs.
const (
	SourceBearer  = "bearer"
	SourceSession = "session"
	SourceStatic  = "static"
)

const (
	// SessionHeader carries a session id for the session provider.
	SessionHeader = "X-Mailbot-Session"
	// SessionCookie is the cookie alternative to SessionHeader.
	SessionCookie = "mailbot_session"

	sessionLookupTimeout = 5 * time.Second
)

// TokenProvider resolves the access token for an inbound request.
// It returns (nil, nil) when the request carries no token.
type TokenProvider interface {
	Token(r *http.Request) (*oauth2.Token, error)
	Source() string
}

// Valid reports whether tok can be used for a Gmail call.
func Valid(tok *oauth2.Token) bool {
	return tok != nil && tok.AccessToken != ""
}

// BearerProvider reads the token from the Authorization header.
type BearerProvider struct{}

// Token implements TokenProvider.
func (BearerProvider) Token(r *http.Request) (*oauth2.Token, error) {
	raw := BearerToken(r)
	if raw == "" {
		return nil, nil
	}
	return &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}, nil
}

// Source implements TokenProvider.
func (BearerProvider) Source() string { return SourceBearer }

// BearerToken returns the bearer credential of r, or "".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// SessionStore persists tokens by session id.
type SessionStore interface {
	GetToken(ctx context.Context, key string) (*oauth2.Token, error)
	SaveToken(ctx context.Context, key string, token *oauth2.Token) error
}

var _ SessionStore = (storage.TokenStore)(nil)

// SessionProvider resolves tokens stored under a session id.
type SessionProvider struct {
	store SessionStore
}

// NewSessionProvider creates a session provider over store.
func NewSessionProvider(store SessionStore) *SessionProvider {
	return &SessionProvider{store: store}
}

// SessionID returns the session id of r from the header or the cookie.
func SessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// Token implements TokenProvider. An unknown session is not an error.
func (p *SessionProvider) Token(r *http.Request) (*oauth2.Token, error) {
	id := SessionID(r)
	if id == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), sessionLookupTimeout)
	defer cancel()

	tok, err := p.store.GetToken(ctx, id)
	if err != nil || !Valid(tok) {
		return nil, nil
	}
	return tok, nil
}

// Issue stores tok under a new server-generated session id and returns the id.
func (p *SessionProvider) Issue(ctx context.Context, tok *oauth2.Token) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, sessionLookupTimeout)
	defer cancel()

	id := uuid.NewString()
	if err := p.store.SaveToken(ctx, id, tok); err != nil {
		return "", err
	}
	return id, nil
}

// Bound reports whether the session id already holds tok's access token.
func (p *SessionProvider) Bound(ctx context.Context, sessionID string, tok *oauth2.Token) bool {
	if sessionID == "" || !Valid(tok) {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, sessionLookupTimeout)
	defer cancel()

	stored, err := p.store.GetToken(ctx, sessionID)
	return err == nil && Valid(stored) && stored.AccessToken == tok.AccessToken
}

// Source implements TokenProvider.
func (p *SessionProvider) Source() string { return SourceSession }

// StaticProvider always returns the same token.
type StaticProvider struct {
	token *oauth2.Token
}

// NewStaticProvider creates a provider for a fixed access token. An empty
// accessToken yields a provider that never resolves.
func NewStaticProvider(accessToken string) *StaticProvider {
	if accessToken == "" {
		return &StaticProvider{}
	}
	return &StaticProvider{token: &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}}
}

// Token implements TokenProvider.
func (p *StaticProvider) Token(*http.Request) (*oauth2.Token, error) {
	if !Valid(p.token) {
		return nil, nil
	}
	return p.token, nil
}

// StaticToken returns the configured token, or nil.
func (p *StaticProvider) StaticToken() *oauth2.Token {
	return p.token
}

// Source implements TokenProvider.
func (p *StaticProvider) Source() string { return SourceStatic }

// Chain tries providers in order. The first that yields a valid token wins.
type Chain struct {
	providers []TokenProvider
	metrics   *instrumentation.Metrics
	logger    logging.Logger
}

// NewChain creates a chain over providers. Nil providers are skipped.
func NewChain(metrics *instrumentation.Metrics, logger logging.Logger, providers ...TokenProvider) *Chain {
	if logger == nil {
		logger = logging.Discard()
	}
	c := &Chain{metrics: metrics, logger: logger}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Sources returns the sources of the chained providers in order.
func (c *Chain) Sources() []string {
	out := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p.Source())
	}
	return out
}

// Token implements TokenProvider. Provider errors are logged and the next
// provider is tried.
func (c *Chain) Token(r *http.Request) (*oauth2.Token, error) {
	tok, _ := c.Resolve(r)
	return tok, nil
}

// Resolve returns the token and the source that produced it.
func (c *Chain) Resolve(r *http.Request) (*oauth2.Token, string) {
	ctx := r.Context()
	for _, p := range c.providers {
		tok, err := p.Token(r)
		if err != nil {
			c.logger.Warn("token provider failed", "source", p.Source(), "error", err)
			c.metrics.RecordTokenResolution(ctx, p.Source(), instrumentation.TokenResultError)
			continue
		}
		if Valid(tok) {
			c.metrics.RecordTokenResolution(ctx, p.Source(), instrumentation.TokenResultFound)
			return tok, p.Source()
		}
	}
	c.metrics.RecordTokenResolution(ctx, "none", instrumentation.TokenResultMissing)
	return nil, ""
}

// Source implements TokenProvider.
func (c *Chain) Source() string { return "chain" }
