package common

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/mailbot/internal/gateway"
)

// StringArg returns the trimmed string argument name, or "".
func StringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

// IntArg returns the integer argument name. JSON numbers arrive as float64;
// numeric strings are accepted too. Anything else yields def.
func IntArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// BoolArg returns the boolean argument name, or def when absent.
func BoolArg(args map[string]any, name string, def bool) bool {
	switch v := args[name].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// JSONResult renders v as an indented JSON text result.
func JSONResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// GatewayError renders a gateway failure as a tool error carrying the same
// caller-facing message the HTTP API would return.
func GatewayError(err error, fallback string) *mcp.CallToolResult {
	return mcp.NewToolResultError(gateway.PublicMessage(err, fallback))
}
