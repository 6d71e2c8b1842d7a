package gmail_tools

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailbot/internal/server"
)

// RegisterGmailTools registers all Gmail tools with the MCP server. Mutating
// tools are skipped when readOnly is set.
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if err := RegisterLabelTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register label tools: %w", err)
	}
	if err := RegisterEmailTools(s, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register email tools: %w", err)
	}
	return nil
}
