// Package rag implements the retrieval-augmented answering pipeline: a query
// condenser that rewrites follow-up questions into standalone queries, a
// retriever that finds relevant passages by embedding similarity, and a
// generator that produces passage-grounded answers.
//
// Each stage calls exactly one external capability (model or embedder) with a
// bounded timeout. Failures surface as typed errors; retry policy belongs to
// the caller, since re-running a generation changes conversational context.
package rag

import (
	"errors"

	"github.com/ringan-ai/ringan/internal/index"
)

// ErrRetrievalUnavailable indicates the embed or index-search call failed or
// timed out. Transient; the caller may retry the whole message.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// ErrGenerationUnavailable indicates the generation call failed or timed out.
// Transient; same retry policy as retrieval.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// Turn is one conversational exchange entry supplied as history.
type Turn struct {
	Role string // RoleUser or RoleAssistant
	Text string
}

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Answer is the generator's result: the response text plus the passages it
// was conditioned on. UsedSources is empty when the answer came from general
// knowledge alone.
type Answer struct {
	Text        string
	UsedSources []index.Result
}
