package google

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenKey struct{}

// WithToken returns a context carrying tok.
func WithToken(ctx context.Context, tok *oauth2.Token) context.Context {
	return context.WithValue(ctx, tokenKey{}, tok)
}

// TokenFromContext returns the token placed by WithToken, or nil.
func TokenFromContext(ctx context.Context) *oauth2.Token {
	tok, _ := ctx.Value(tokenKey{}).(*oauth2.Token)
	return tok
}

type sessionKey struct{}

// WithSessionID returns a context carrying the session id of the request.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionIDFromContext returns the id placed by WithSessionID, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
