// Package session maintains per-session conversation state: an ordered log of
// turns plus a small context mapping, bounded in size and evicted after
// idle TTL.
//
// Concurrent appends to the same session serialize on a per-session lock, so
// history never interleaves out of order. Different sessions do not contend.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrInvalidRole indicates a role other than RoleUser or RoleAssistant.
var ErrInvalidRole = errors.New("invalid turn role")

// Turn is one utterance in a session's history.
type Turn struct {
	Role      string
	Text      string
	Timestamp time.Time
}

// state is the per-session record kept in the cache. Its mutex serializes all
// mutation and snapshotting for that session.
type state struct {
	mu      sync.Mutex
	turns   []Turn
	context map[string]any
}

// Config configures a Store.
type Config struct {
	// MaxTurns bounds the history length per session. When an append would
	// exceed it, the oldest turns are dropped first.
	MaxTurns int
	// TTL evicts sessions idle longer than this. Accessing a session
	// refreshes its expiration.
	TTL    time.Duration
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.MaxTurns < 2 {
		return fmt.Errorf("session: MaxTurns must be at least 2, got %d", c.MaxTurns)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("session: TTL must be positive, got %v", c.TTL)
	}
	return nil
}

// Store holds all live sessions in memory.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.Mutex // guards get-or-create
	sessions *cache.Cache
	maxTurns int
	logger   *slog.Logger
}

// NewStore creates a session store. Sessions expire after cfg.TTL idle time;
// expired entries are purged in the background by the cache.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cleanupInterval := cfg.TTL / 2
	if cleanupInterval < time.Minute {
		cleanupInterval = time.Minute
	}
	return &Store{
		sessions: cache.New(cfg.TTL, cleanupInterval),
		maxTurns: cfg.MaxTurns,
		logger:   logger,
	}, nil
}

// get returns the session state for id, creating it on first use. Each access
// refreshes the session's TTL.
func (s *Store) get(id string) *state {
	s.mu.Lock()
	defer s.mu.Unlock()

	if x, found := s.sessions.Get(id); found {
		st := x.(*state)
		s.sessions.Set(id, st, cache.DefaultExpiration)
		return st
	}
	st := &state{context: make(map[string]any)}
	s.sessions.Set(id, st, cache.DefaultExpiration)
	s.logger.Debug("session created", "session_id", id)
	return st
}

// Append adds a single turn to the session's history.
func (s *Store) Append(sessionID, role, text string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("role %q: %w", role, ErrInvalidRole)
	}

	st := s.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.turns = append(st.turns, Turn{Role: role, Text: text, Timestamp: time.Now()})
	s.trimLocked(st)
	return nil
}

// AppendExchange adds a user turn and the assistant's reply as one atomic
// operation: no other append to the same session can land between them.
func (s *Store) AppendExchange(sessionID, userText, assistantText string) {
	st := s.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	now := time.Now()
	st.turns = append(st.turns,
		Turn{Role: RoleUser, Text: userText, Timestamp: now},
		Turn{Role: RoleAssistant, Text: assistantText, Timestamp: now},
	)
	s.trimLocked(st)
}

// trimLocked drops oldest turns beyond the MaxTurns bound.
// Caller must hold st.mu.
func (s *Store) trimLocked(st *state) {
	if excess := len(st.turns) - s.maxTurns; excess > 0 {
		st.turns = append(st.turns[:0:0], st.turns[excess:]...)
	}
}

// History returns a copy of the session's turns in append order. An unknown
// session yields an empty history; asking for it brings the session into
// existence, matching create-on-first-message semantics.
func (s *Store) History(sessionID string) []Turn {
	st := s.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	turns := make([]Turn, len(st.turns))
	copy(turns, st.turns)
	return turns
}

// SetContext stores a key-value pair in the session's context mapping.
func (s *Store) SetContext(sessionID, key string, value any) {
	st := s.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.context[key] = value
}

// ContextValue reads a value from the session's context mapping.
func (s *Store) ContextValue(sessionID, key string) (any, bool) {
	st := s.get(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	v, ok := st.context[key]
	return v, ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.ItemCount()
}

// Delete removes a session and its history.
func (s *Store) Delete(sessionID string) {
	s.sessions.Delete(sessionID)
}
