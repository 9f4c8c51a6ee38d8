package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/ringan-ai/ringan/internal/testutil"
)

func newTestCondenser(t *testing.T, mock *testutil.MockLLM) *Condenser {
	t.Helper()

	g := genkit.Init(context.Background())
	mock.Register(g)

	c, err := NewCondenser(CondenserConfig{
		Genkit:    g,
		ModelName: "mock/test-model",
		Timeout:   5 * time.Second,
		Logger:    testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewCondenser() error = %v", err)
	}
	return c
}

func TestCondenseEmptyHistoryIsIdentity(t *testing.T) {
	mock := testutil.NewMockLLM("SHOULD NOT BE CALLED")
	c := newTestCondenser(t, mock)

	got := c.Condense(context.Background(), nil, "How can I manage anxiety?")
	if got != "How can I manage anxiety?" {
		t.Errorf("Condense() = %q, want verbatim message", got)
	}
	if calls := mock.Calls(); len(calls) != 0 {
		t.Errorf("Condense() called the model %d times with empty history", len(calls))
	}
}

func TestCondenseRewritesFollowUp(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("does it help", "Do breathing exercises help with anxiety?")
	c := newTestCondenser(t, mock)

	history := []Turn{
		{Role: RoleUser, Text: "How can I manage anxiety?"},
		{Role: RoleAssistant, Text: "Breathing exercises can help."},
	}
	got := c.Condense(context.Background(), history, "Does it help everyone?")
	if got != "Do breathing exercises help with anxiety?" {
		t.Errorf("Condense() = %q, want rewritten query", got)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(calls))
	}
	// the prompt must carry both the history and the new message
	for _, want := range []string{"How can I manage anxiety?", "Does it help everyone?"} {
		if !strings.Contains(calls[0].UserMessage, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestCondenseFallsBackOnModelError(t *testing.T) {
	mock := testutil.NewMockLLM("unused")
	mock.SetError(errors.New("model offline"))
	c := newTestCondenser(t, mock)

	history := []Turn{{Role: RoleUser, Text: "earlier message"}}
	got := c.Condense(context.Background(), history, "Does it help?")
	if got != "Does it help?" {
		t.Errorf("Condense() = %q, want verbatim fallback", got)
	}
}

func TestCondenseFallsBackOnEmptyOutput(t *testing.T) {
	mock := testutil.NewMockLLM("   ")
	c := newTestCondenser(t, mock)

	history := []Turn{{Role: RoleUser, Text: "earlier message"}}
	got := c.Condense(context.Background(), history, "Does it help?")
	if got != "Does it help?" {
		t.Errorf("Condense() = %q, want verbatim fallback", got)
	}
}

func TestNewCondenserValidation(t *testing.T) {
	_, err := NewCondenser(CondenserConfig{})
	if err == nil {
		t.Fatal("NewCondenser() accepted empty config")
	}
}

