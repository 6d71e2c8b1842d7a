// Package gmail_tools exposes the Gmail gateway as MCP tools.
//
// Read-only tools:
//   - gmail_list_labels: list every label of the mailbox
//   - gmail_fetch_emails: fetch the most recent emails with their labels
//
// Write tools, registered only when writes are enabled:
//   - gmail_create_label, gmail_update_label, gmail_delete_label
//   - gmail_apply_labels, gmail_remove_labels
//
// Every tool calls the same gateway service as the HTTP API, with the access
// token taken from the request context, and reports failures with the same
// caller-facing messages.
package gmail_tools
