// Package workflow implements the email labeling flow: load recent emails,
// select one, stage labels and apply or remove them, then refetch so the
// local view matches the mailbox.
package workflow
