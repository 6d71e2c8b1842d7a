// Package server hosts mailbot's HTTP surface.
//
// # Key Components
//
// ServerContext holds the long-lived dependencies shared by the HTTP handlers
// and the MCP tools: the Gmail gateway, the digest backend client, the token
// provider chain, metrics and the audit logger.
//
// NewRouter builds the chi router:
//   - the Gmail Gateway JSON API under the API prefix (default /api)
//   - the streamable HTTP MCP endpoint at /mcp
//   - /healthz, /readyz and /healthz/detailed
//
// Every request passes through request id, real IP, panic recovery, request
// logging and HTTP metrics middleware. The access token is resolved once per
// request and handed to the gateway explicitly.
//
// MetricsServer exposes Prometheus metrics on a dedicated listener so that
// operational data is never served on the public API port.
package server
