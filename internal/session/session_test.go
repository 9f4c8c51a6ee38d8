package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ringan-ai/ringan/internal/testutil"
)

func TestMain(m *testing.M) {
	// go-cache keeps a background janitor per cache until GC finalizes it
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

func newTestStore(t *testing.T, maxTurns int, ttl time.Duration) *Store {
	t.Helper()
	s, err := NewStore(Config{MaxTurns: maxTurns, TTL: ttl, Logger: testutil.DiscardLogger()})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestAppendAndHistoryOrder(t *testing.T) {
	s := newTestStore(t, 40, time.Hour)

	if err := s.Append("s1", RoleUser, "How can I manage anxiety?"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append("s1", RoleAssistant, "Breathing exercises can help."); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := s.Append("s1", RoleUser, "How often should I do them?"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	history := s.History("s1")
	if len(history) != 3 {
		t.Fatalf("History() has %d turns, want 3", len(history))
	}
	wantRoles := []string{RoleUser, RoleAssistant, RoleUser}
	for i, turn := range history {
		if turn.Role != wantRoles[i] {
			t.Errorf("turn %d role = %q, want %q", i, turn.Role, wantRoles[i])
		}
	}
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	s := newTestStore(t, 40, time.Hour)
	if err := s.Append("s1", "system", "nope"); err == nil {
		t.Fatal("Append() accepted an unknown role")
	}
	if len(s.History("s1")) != 0 {
		t.Error("invalid append mutated history")
	}
}

func TestUnknownSessionHasEmptyHistory(t *testing.T) {
	s := newTestStore(t, 40, time.Hour)
	if history := s.History("never-seen"); len(history) != 0 {
		t.Errorf("History() = %v, want empty", history)
	}
}

func TestMaxTurnsDropsOldestFirst(t *testing.T) {
	s := newTestStore(t, 4, time.Hour)

	for i := range 6 {
		s.AppendExchange("s1", fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i))
	}

	history := s.History("s1")
	if len(history) != 4 {
		t.Fatalf("History() has %d turns, want bound of 4", len(history))
	}
	if history[0].Text != "question 4" {
		t.Errorf("oldest kept turn = %q, want %q", history[0].Text, "question 4")
	}
	if history[3].Text != "answer 5" {
		t.Errorf("newest turn = %q, want %q", history[3].Text, "answer 5")
	}
}

func TestConcurrentAppendsSameSessionKeepExchangeOrder(t *testing.T) {
	s := newTestStore(t, 1000, time.Hour)

	const writers = 8
	const exchanges = 25

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range exchanges {
				s.AppendExchange("shared", fmt.Sprintf("q w%d i%d", w, i), fmt.Sprintf("a w%d i%d", w, i))
			}
		}()
	}
	wg.Wait()

	history := s.History("shared")
	if len(history) != writers*exchanges*2 {
		t.Fatalf("History() has %d turns, want %d", len(history), writers*exchanges*2)
	}
	// every user turn must be immediately followed by its own answer
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != RoleUser || history[i+1].Role != RoleAssistant {
			t.Fatalf("turns %d/%d roles = %q/%q, want user/assistant", i, i+1, history[i].Role, history[i+1].Role)
		}
		wantAnswer := "a" + history[i].Text[1:]
		if history[i+1].Text != wantAnswer {
			t.Fatalf("interleaved exchange at %d: %q followed by %q", i, history[i].Text, history[i+1].Text)
		}
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	s := newTestStore(t, 40, time.Hour)
	s.AppendExchange("a", "question a", "answer a")
	s.AppendExchange("b", "question b", "answer b")

	if got := len(s.History("a")); got != 2 {
		t.Errorf("session a has %d turns, want 2", got)
	}
	if s.History("b")[0].Text != "question b" {
		t.Error("session b history contaminated")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestSessionContext(t *testing.T) {
	s := newTestStore(t, 40, time.Hour)

	if _, ok := s.ContextValue("s1", "problem_id"); ok {
		t.Error("ContextValue() found a value in a fresh session")
	}
	s.SetContext("s1", "problem_id", "P001")
	v, ok := s.ContextValue("s1", "problem_id")
	if !ok || v != "P001" {
		t.Errorf("ContextValue() = %v, %v; want P001, true", v, ok)
	}
}

func TestIdleSessionEvicted(t *testing.T) {
	s := newTestStore(t, 40, 30*time.Millisecond)
	s.AppendExchange("ephemeral", "question", "answer")

	time.Sleep(60 * time.Millisecond)

	// go-cache treats expired entries as absent even before the janitor runs
	if history := s.History("ephemeral"); len(history) != 0 {
		t.Errorf("expired session still has %d turns", len(history))
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t, 40, time.Hour)
	s.AppendExchange("gone", "question", "answer")
	s.Delete("gone")
	if history := s.History("gone"); len(history) != 0 {
		t.Errorf("deleted session still has %d turns", len(history))
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(Config{MaxTurns: 1, TTL: time.Hour}); err == nil {
		t.Error("NewStore() accepted MaxTurns below 2")
	}
	if _, err := NewStore(Config{MaxTurns: 10}); err == nil {
		t.Error("NewStore() accepted zero TTL")
	}
}
