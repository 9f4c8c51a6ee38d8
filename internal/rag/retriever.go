package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/ringan-ai/ringan/internal/index"
)

// Searcher is the slice of the passage index the retriever needs.
// *index.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, vector []float32, opts ...index.SearchOption) ([]index.Result, error)
}

// RetrieverConfig configures a Retriever.
type RetrieverConfig struct {
	Embedder ai.Embedder
	Index    Searcher
	TopK     int
	Timeout  time.Duration
	Logger   *slog.Logger
}

func (c *RetrieverConfig) validate() error {
	if c.Embedder == nil {
		return fmt.Errorf("retriever: embedder is required")
	}
	if c.Index == nil {
		return fmt.Errorf("retriever: index is required")
	}
	if c.TopK < 1 {
		return fmt.Errorf("retriever: topK must be at least 1, got %d", c.TopK)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("retriever: timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Retriever finds the passages most relevant to a standalone query by
// embedding it and running a nearest-neighbor search.
type Retriever struct {
	embedder ai.Embedder
	idx      Searcher
	topK     int
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(cfg RetrieverConfig) (*Retriever, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: cfg.Embedder,
		idx:      cfg.Index,
		topK:     cfg.TopK,
		timeout:  cfg.Timeout,
		logger:   logger,
	}, nil
}

// Retrieve returns up to the configured number of passages ranked by
// similarity to query. An empty index yields an empty slice; "no sources"
// is a valid outcome the caller must handle, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]index.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	embeddingResp, err := r.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(query)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %v: %w", err, ErrRetrievalUnavailable)
	}
	if len(embeddingResp.Embeddings) == 0 || len(embeddingResp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty query embedding: %w", ErrRetrievalUnavailable)
	}

	results, err := r.idx.Search(ctx, embeddingResp.Embeddings[0].Embedding, index.WithTopK(r.topK))
	if err != nil {
		return nil, fmt.Errorf("searching index: %v: %w", err, ErrRetrievalUnavailable)
	}

	r.logger.Debug("retrieved passages", "query_length", len(query), "count", len(results))
	return results, nil
}
