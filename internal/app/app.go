// Package app wires the application together: configuration, database,
// Genkit, the retrieval pipeline, and the assistant. Commands call Setup
// once and get back a ready App with embedded cleanup.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ringan-ai/ringan/internal/assistant"
	"github.com/ringan-ai/ringan/internal/config"
	"github.com/ringan-ai/ringan/internal/feedback"
	"github.com/ringan-ai/ringan/internal/index"
	"github.com/ringan-ai/ringan/internal/indexer"
	"github.com/ringan-ai/ringan/internal/kb"
	"github.com/ringan-ai/ringan/internal/rag"
	"github.com/ringan-ai/ringan/internal/session"
)

// App is the application container. Fields are populated by Setup.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	KB       *kb.Store
	Index    *index.Store
	Sessions *session.Store

	Condenser *rag.Condenser
	Retriever *rag.Retriever
	Generator *rag.Generator

	Feedback  *feedback.Store
	Analyzer  *feedback.Analyzer
	Assistant *assistant.Assistant
}

// Close releases held resources. Safe to call on a partially built App.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
}

// NewIndexer builds the knowledge base indexer on top of the App's
// embedder and vector index.
func (a *App) NewIndexer(concurrency int) (*indexer.Indexer, error) {
	return indexer.New(indexer.Config{
		Catalog:     a.KB,
		Embedder:    a.Embedder,
		Index:       a.Index,
		Concurrency: concurrency,
		Logger:      a.Logger,
	})
}
