// Package gateway implements mailbot's Gmail operations.
//
// Every operation takes the caller's access token explicitly and follows the
// same order: the token is checked first, parameters second, and only then is
// Gmail called. Failures are reported as *Error values carrying a Kind and a
// caller-safe message. Upstream causes stay in the error chain for logging
// and never reach callers.
//
// The HTTP handlers in internal/server and the MCP tools in internal/tools
// share one Service.
package gateway
