// Package digest_tools exposes the digest backend as MCP tools.
//
// The caller's Google access token doubles as the backend credential. Tools
// that change backend state are only registered when writes are enabled.
package digest_tools
