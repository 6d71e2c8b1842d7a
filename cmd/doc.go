// Package cmd implements the command-line interface for mailbot.
//
// This package provides the following commands:
//   - serve: Run the Gmail gateway API, the MCP server and the metrics listener
//   - labels: List, create, rename and delete labels through a running gateway
//   - emails: List recent emails and apply or remove labels through a running gateway
//   - digest: Read the daily digest and manage digest delivery
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
package cmd
