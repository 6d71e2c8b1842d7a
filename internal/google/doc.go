// Package google resolves the Google access token a request acts with.
//
// A TokenProvider looks at an inbound *http.Request and yields an
// *oauth2.Token, or nil when the request carries no usable token. Three
// providers are available and are usually combined with Chain:
//
//   - BearerProvider reads "Authorization: Bearer <token>"
//   - SessionProvider looks up a session id in an mcp-oauth token store;
//     ids are issued by the server (Issue) and never chosen by callers
//   - StaticProvider returns a configured token (stdio and CLI use)
//
// Resolved tokens travel through the request context (WithToken,
// TokenFromContext) so HTTP handlers and MCP tools share one lookup.
package google
