// Package indexer builds the passage index from the relational knowledge
// base. Each problem becomes one passage aggregating its definition,
// self-assessment cues, and suggestions, so the generator always sees a
// problem's full context in a single retrieved chunk.
//
// Passage ids derive from the source rows, so re-running the job upserts the
// same passages instead of duplicating them.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/sync/errgroup"

	"github.com/ringan-ai/ringan/internal/index"
	"github.com/ringan-ai/ringan/internal/kb"
)

// Catalog is the slice of the knowledge base the indexer reads.
// *kb.Store satisfies it.
type Catalog interface {
	Problems(ctx context.Context) ([]kb.Problem, error)
	AssessmentQuestions(ctx context.Context, problemID string) ([]kb.AssessmentQuestion, error)
	Suggestions(ctx context.Context, problemID string) ([]kb.Suggestion, error)
}

// Adder is the write surface of the passage index. *index.Store satisfies it.
type Adder interface {
	Add(ctx context.Context, passages ...index.Passage) error
}

// Config configures an Indexer.
type Config struct {
	Catalog  Catalog
	Embedder ai.Embedder
	Index    Adder
	// Concurrency bounds parallel embedding calls.
	Concurrency int
	Logger      *slog.Logger
}

func (c *Config) validate() error {
	if c.Catalog == nil {
		return fmt.Errorf("indexer: catalog is required")
	}
	if c.Embedder == nil {
		return fmt.Errorf("indexer: embedder is required")
	}
	if c.Index == nil {
		return fmt.Errorf("indexer: index is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("indexer: concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

// Indexer turns knowledge-base rows into indexed passages.
type Indexer struct {
	catalog     Catalog
	embedder    ai.Embedder
	idx         Adder
	concurrency int
	logger      *slog.Logger
}

// New creates an Indexer.
func New(cfg Config) (*Indexer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		catalog:     cfg.Catalog,
		embedder:    cfg.Embedder,
		idx:         cfg.Index,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}, nil
}

// Run rebuilds the index from the knowledge base and returns the number of
// passages written. Embeddings run concurrently; the upsert happens in one
// batch only after every embedding succeeded, so a partial failure writes
// nothing.
func (ix *Indexer) Run(ctx context.Context) (int, error) {
	problems, err := ix.catalog.Problems(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading problems: %w", err)
	}
	if len(problems) == 0 {
		ix.logger.Warn("knowledge base is empty, nothing to index")
		return 0, nil
	}

	passages := make([]index.Passage, len(problems))
	for i, p := range problems {
		content, buildErr := ix.buildContent(ctx, p)
		if buildErr != nil {
			return 0, buildErr
		}
		passages[i] = index.Passage{
			ID:      "problem:" + p.ID,
			Content: content,
			Metadata: map[string]string{
				"source_kind": "problem",
				"source_id":   p.ID,
				"problem_id":  p.ID,
				"name":        p.Name,
			},
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i := range passages {
		g.Go(func() error {
			vec, embedErr := ix.embed(gCtx, passages[i].Content)
			if embedErr != nil {
				return fmt.Errorf("embedding passage %q: %w", passages[i].ID, embedErr)
			}
			passages[i].Embedding = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := ix.idx.Add(ctx, passages...); err != nil {
		return 0, fmt.Errorf("writing passages: %w", err)
	}

	ix.logger.Info("index rebuilt", "passages", len(passages))
	return len(passages), nil
}

// buildContent aggregates one problem's rows into a single retrievable text.
func (ix *Indexer) buildContent(ctx context.Context, p kb.Problem) (string, error) {
	questions, err := ix.catalog.AssessmentQuestions(ctx, p.ID)
	if err != nil {
		return "", fmt.Errorf("loading assessment questions for %q: %w", p.ID, err)
	}
	suggestions, err := ix.catalog.Suggestions(ctx, p.ID)
	if err != nil {
		return "", fmt.Errorf("loading suggestions for %q: %w", p.ID, err)
	}

	var sb strings.Builder
	sb.WriteString(p.Name)
	if p.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(p.Description)
	}
	if len(questions) > 0 {
		sb.WriteString("\n\nSelf-assessment cues:")
		for _, q := range questions {
			sb.WriteString("\n- ")
			sb.WriteString(q.Text)
		}
	}
	if len(suggestions) > 0 {
		sb.WriteString("\n\nSuggestions:")
		for _, sg := range suggestions {
			sb.WriteString("\n- ")
			sb.WriteString(sg.Text)
		}
	}
	return sb.String(), nil
}

func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := ix.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}
