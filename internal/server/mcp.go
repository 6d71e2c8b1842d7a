package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailbot/internal/google"
)

// MCPEndpointPath is the streamable HTTP MCP endpoint.
const MCPEndpointPath = "/mcp"

// NewMCPHandler serves mcpSrv over streamable HTTP. The access token resolved
// by the router middleware is carried into every tool call.
func NewMCPHandler(mcpSrv *mcpserver.MCPServer, disableStreaming bool) http.Handler {
	return mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(MCPEndpointPath),
		mcpserver.WithDisableStreaming(disableStreaming),
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return carryRequestContext(ctx, r.Context())
		}),
	)
}

// carryRequestContext copies the token, session id and request id resolved by
// the router middleware from src into ctx.
func carryRequestContext(ctx, src context.Context) context.Context {
	if tok := google.TokenFromContext(src); tok != nil {
		ctx = google.WithToken(ctx, tok)
	}
	if id := google.SessionIDFromContext(src); id != "" {
		ctx = google.WithSessionID(ctx, id)
	}
	if id := middleware.GetReqID(src); id != "" {
		ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
	}
	return ctx
}
