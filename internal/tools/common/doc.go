// Package common provides shared helpers for MCP tool implementations:
// instrumentation wrappers, argument parsing and result rendering.
package common
