package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// ErrDimensionMismatch indicates an embedding whose length differs from the
// index's configured dimension. This is a configuration fault, not a
// recoverable per-request condition.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// DBTX is the subset of pgx operations the store needs.
// Both *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists passages and answers nearest-neighbor queries.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DBTX
	dim    int
	logger *slog.Logger
}

// New creates a Store bound to the given embedding dimension. Every vector
// written to or searched against the index must have exactly dim elements.
func New(db DBTX, dim int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, dim: dim, logger: logger}
}

// Dimension returns the configured embedding dimension.
func (s *Store) Dimension() int { return s.dim }

// Add upserts passages by id. All embeddings are validated against the index
// dimension before any row is written, and the batch goes through a single
// transaction, so any failure leaves the index untouched.
func (s *Store) Add(ctx context.Context, passages ...Passage) error {
	for _, p := range passages {
		if len(p.Embedding) != s.dim {
			return fmt.Errorf("passage %q has %d dimensions, index expects %d: %w",
				p.ID, len(p.Embedding), s.dim, ErrDimensionMismatch)
		}
		if p.ID == "" {
			return fmt.Errorf("passage with empty id")
		}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range passages {
		metadataJSON, err := json.Marshal(p.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", p.ID, err)
		}

		embedding := pgvector.NewVector(p.Embedding)
		_, err = tx.Exec(ctx,
			`INSERT INTO passages (id, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET content = EXCLUDED.content, metadata = EXCLUDED.metadata,
			     embedding = EXCLUDED.embedding`,
			p.ID, p.Content, metadataJSON, embedding)
		if err != nil {
			return fmt.Errorf("upserting passage %q: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing passages: %w", err)
	}

	s.logger.Debug("passages indexed", "count", len(passages))
	return nil
}

// Search returns the passages nearest to vector by cosine distance, most
// similar first. Equal distances resolve by insertion order, so results are
// deterministic. An empty index yields an empty slice, not an error.
func (s *Store) Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]Result, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, index expects %d: %w",
			len(vector), s.dim, ErrDimensionMismatch)
	}

	cfg := buildSearchConfig(opts)
	queryEmbedding := pgvector.NewVector(vector)

	var (
		rows pgx.Rows
		err  error
	)
	if len(cfg.filter) > 0 {
		filterJSON, marshalErr := json.Marshal(cfg.filter)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		rows, err = s.db.Query(ctx,
			`SELECT id, content, metadata, embedding, created_at,
			        1 - (embedding <=> $1) AS similarity
			 FROM passages
			 WHERE metadata @> $2
			 ORDER BY embedding <=> $1, seq
			 LIMIT $3`,
			queryEmbedding, filterJSON, cfg.topK)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT id, content, metadata, embedding, created_at,
			        1 - (embedding <=> $1) AS similarity
			 FROM passages
			 ORDER BY embedding <=> $1, seq
			 LIMIT $2`,
			queryEmbedding, cfg.topK)
	}
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, cfg.topK)
	for rows.Next() {
		var (
			p            Passage
			metadataJSON []byte
			embedding    pgvector.Vector
			createdAt    time.Time
			similarity   float64
		)
		if err := rows.Scan(&p.ID, &p.Content, &metadataJSON, &embedding, &createdAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &p.Metadata); err != nil {
			s.logger.Warn("unparseable passage metadata", "passage_id", p.ID, "error", err)
			p.Metadata = make(map[string]string)
		}
		p.Embedding = embedding.Slice()
		p.CreatedAt = createdAt
		results = append(results, Result{Passage: p, Similarity: float32(similarity)})
	}
	return results, rows.Err()
}

// Count returns the number of indexed passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM passages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return count, nil
}

// Delete removes a passage by id. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM passages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting passage %q: %w", id, err)
	}
	return nil
}
