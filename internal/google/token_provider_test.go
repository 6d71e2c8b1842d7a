package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestBearerProvider(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "bearer token", header: "Bearer abc123", want: "abc123"},
		{name: "case insensitive scheme", header: "bearer abc123", want: "abc123"},
		{name: "surrounding space", header: "Bearer   abc123  ", want: "abc123"},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "empty bearer", header: "Bearer ", want: ""},
		{name: "no header", header: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/labels", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			tok, err := BearerProvider{}.Token(req)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, tok)
				return
			}
			require.NotNil(t, tok)
			assert.Equal(t, tt.want, tok.AccessToken)
		})
	}
}

func TestSessionProvider(t *testing.T) {
	store := memory.New()
	defer store.Stop()

	provider := NewSessionProvider(store)
	ctx := context.Background()
	id, err := provider.Issue(ctx, &oauth2.Token{AccessToken: "stored"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SessionHeader, id)
		tok, err := provider.Token(req)
		require.NoError(t, err)
		require.NotNil(t, tok)
		assert.Equal(t, "stored", tok.AccessToken)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
		tok, err := provider.Token(req)
		require.NoError(t, err)
		require.NotNil(t, tok)
		assert.Equal(t, "stored", tok.AccessToken)
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SessionHeader, "nope")
		tok, err := provider.Token(req)
		require.NoError(t, err)
		assert.Nil(t, tok)
	})

	t.Run("no session", func(t *testing.T) {
		tok, err := provider.Token(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Nil(t, tok)
	})
}

func TestSessionProvider_IssueAndBound(t *testing.T) {
	store := memory.New()
	defer store.Stop()

	provider := NewSessionProvider(store)
	ctx := context.Background()
	owner := &oauth2.Token{AccessToken: "owner-token"}

	first, err := provider.Issue(ctx, owner)
	require.NoError(t, err)
	second, err := provider.Issue(ctx, owner)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	tests := []struct {
		name string
		id   string
		tok  *oauth2.Token
		want bool
	}{
		{name: "same token", id: first, tok: owner, want: true},
		{name: "other token", id: first, tok: &oauth2.Token{AccessToken: "other-token"}, want: false},
		{name: "unknown session", id: "guessed", tok: owner, want: false},
		{name: "empty id", id: "", tok: owner, want: false},
		{name: "nil token", id: first, tok: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, provider.Bound(ctx, tt.id, tt.tok))
		})
	}

	stored, err := store.GetToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "owner-token", stored.AccessToken)
}

func TestStaticProvider(t *testing.T) {
	tok, err := NewStaticProvider("").Token(nil)
	require.NoError(t, err)
	assert.Nil(t, tok)

	p := NewStaticProvider("configured")
	tok, err = p.Token(nil)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "configured", tok.AccessToken)
	assert.Same(t, tok, p.StaticToken())
}

type failingProvider struct{}

func (failingProvider) Token(*http.Request) (*oauth2.Token, error) {
	return nil, errors.New("boom")
}

func (failingProvider) Source() string { return "failing" }

func TestChain(t *testing.T) {
	store := memory.New()
	defer store.Stop()
	session := NewSessionProvider(store)
	s1, err := session.Issue(context.Background(), &oauth2.Token{AccessToken: "from-session"})
	require.NoError(t, err)

	chain := NewChain(nil, nil, failingProvider{}, BearerProvider{}, nil, session, NewStaticProvider("fallback"))

	t.Run("bearer wins over session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer from-header")
		req.Header.Set(SessionHeader, s1)
		tok, source := chain.Resolve(req)
		require.NotNil(t, tok)
		assert.Equal(t, "from-header", tok.AccessToken)
		assert.Equal(t, SourceBearer, source)
	})

	t.Run("session before static", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SessionHeader, s1)
		tok, source := chain.Resolve(req)
		require.NotNil(t, tok)
		assert.Equal(t, "from-session", tok.AccessToken)
		assert.Equal(t, SourceSession, source)
	})

	t.Run("static fallback", func(t *testing.T) {
		tok, err := chain.Token(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		require.NotNil(t, tok)
		assert.Equal(t, "fallback", tok.AccessToken)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		empty := NewChain(nil, nil, BearerProvider{})
		tok, source := empty.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Nil(t, tok)
		assert.Empty(t, source)
	})
}

func TestTokenContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, TokenFromContext(ctx))

	tok := &oauth2.Token{AccessToken: "ctx"}
	assert.Same(t, tok, TokenFromContext(WithToken(ctx, tok)))
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(nil))
	assert.False(t, Valid(&oauth2.Token{}))
	assert.True(t, Valid(&oauth2.Token{AccessToken: "x"}))
}
