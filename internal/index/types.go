// Package index stores knowledge passages with their embeddings in PostgreSQL
// and answers nearest-neighbor queries via pgvector cosine distance.
//
// The index is read-heavy: request handling only searches; writes happen during
// out-of-band reindexing runs. Passages carry stable ids derived from their
// source rows, so re-running the indexing job upserts instead of duplicating.
package index

import "time"

// Passage is a retrievable unit of knowledge-base text with its embedding.
// Immutable once indexed; an updated source row replaces the whole passage
// under the same id.
type Passage struct {
	ID        string            // stable identity, e.g. "problem:P001"
	Content   string            // aggregated text that gets embedded
	Metadata  map[string]string // source_kind, source_id, related ids
	Embedding []float32         // must match the index dimension exactly
	CreatedAt time.Time
}

// Result is a single search hit.
type Result struct {
	Passage    Passage
	Similarity float32 // cosine similarity, 1 = identical direction
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK   int
	filter map[string]string
}

// WithTopK sets the maximum number of results to return. Values below 1 keep
// the default of 5. The database naturally returns fewer rows when the index
// holds fewer passages than requested.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter restricts results to passages whose metadata contains the given
// key-value pair. Multiple filters combine with AND logic.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
