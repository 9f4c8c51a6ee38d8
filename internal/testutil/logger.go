// Package testutil provides shared testing utilities for the ringan project:
// a deterministic mock model and embedder, a PostgreSQL test container with
// the pgvector extension, and a quiet test logger.
package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output.
// Use it in tests to keep output readable.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
