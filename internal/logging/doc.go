// Package logging provides structured logging helpers for mailbot.
//
// All components log through log/slog. This package keeps attribute names
// consistent across the gateway, the tool registry and the client-side
// label store, and it owns the sanitizers that keep access tokens and
// mailbox addresses out of log output.
//
// Create a logger scoped to a gateway operation:
//
//	logger := logging.WithOperation(slog.Default(), "labels.create")
//	logger.Info("label created", logging.LabelID(label.ID), logging.Status(logging.StatusSuccess))
//
// Never log a token directly:
//
//	logger.Debug("resolved token", logging.Token(tok.AccessToken))
package logging
