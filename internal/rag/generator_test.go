package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/ringan-ai/ringan/internal/index"
	"github.com/ringan-ai/ringan/internal/testutil"
)

func newTestGenerator(t *testing.T, mock *testutil.MockLLM) *Generator {
	t.Helper()

	g := genkit.Init(context.Background())
	mock.Register(g)

	gen, err := NewGenerator(GeneratorConfig{
		Genkit:    g,
		ModelName: "mock/test-model",
		Language:  "English",
		Timeout:   5 * time.Second,
		Logger:    testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	return gen
}

func TestGenerateGroundedAnswer(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("manage anxiety", "Breathing exercises can help calm anxiety.")
	gen := newTestGenerator(t, mock)

	retrieved := []index.Result{
		{
			Passage: index.Passage{
				ID:       "problem:P001",
				Content:  "Anxiety: persistent worry. Breathing exercises help.",
				Metadata: map[string]string{"problem_id": "P001"},
			},
			Similarity: 0.9,
		},
	}

	answer, err := gen.Generate(context.Background(), "How can I manage anxiety?", retrieved, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer.Text != "Breathing exercises can help calm anxiety." {
		t.Errorf("answer = %q", answer.Text)
	}
	if len(answer.UsedSources) != 1 || answer.UsedSources[0].Passage.Metadata["problem_id"] != "P001" {
		t.Errorf("UsedSources = %+v, want the retrieved passage", answer.UsedSources)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(calls))
	}
	if !strings.Contains(calls[0].UserMessage, "Breathing exercises help.") {
		t.Error("prompt missing passage content")
	}
	if !strings.Contains(calls[0].System, "English") {
		t.Error("system prompt missing answer language")
	}
	if !strings.Contains(calls[0].System, "fabricate") {
		t.Error("system prompt missing no-fabrication directive")
	}
}

func TestGenerateWithoutPassages(t *testing.T) {
	mock := testutil.NewMockLLM("General guidance: regular sleep and exercise support wellbeing.")
	gen := newTestGenerator(t, mock)

	answer, err := gen.Generate(context.Background(), "Any tips for wellbeing?", nil, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer.Text == "" {
		t.Error("answer text empty")
	}
	if len(answer.UsedSources) != 0 {
		t.Errorf("UsedSources = %+v, want empty without retrieval", answer.UsedSources)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(calls))
	}
	if !strings.Contains(calls[0].UserMessage, "No reference passages") {
		t.Error("prompt missing general-knowledge note")
	}
}

func TestGenerateCarriesHistoryAsMessages(t *testing.T) {
	mock := testutil.NewMockLLM("Yes, daily practice helps most people.")
	gen := newTestGenerator(t, mock)

	history := []Turn{
		{Role: RoleUser, Text: "How can I manage anxiety?"},
		{Role: RoleAssistant, Text: "Breathing exercises can help."},
	}
	_, err := gen.Generate(context.Background(), "Should I do them daily?", nil, history)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("model called %d times, want 1", len(calls))
	}
	// history must not leak into the context slot of the final prompt
	if strings.Contains(calls[0].UserMessage, "Breathing exercises can help.") {
		t.Error("history text found in the final user prompt, want it as prior messages")
	}
}

func TestGenerateModelFailure(t *testing.T) {
	mock := testutil.NewMockLLM("unused")
	mock.SetError(errors.New("model offline"))
	gen := newTestGenerator(t, mock)

	_, err := gen.Generate(context.Background(), "anything", nil, nil)
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrGenerationUnavailable", err)
	}
}

func TestGenerateStalledModelTimesOut(t *testing.T) {
	mock := testutil.NewMockLLM("never returned")
	mock.SetDelay(2 * time.Second)

	g := genkit.Init(context.Background())
	mock.Register(g)

	gen, err := NewGenerator(GeneratorConfig{
		Genkit:    g,
		ModelName: "mock/test-model",
		Language:  "English",
		Timeout:   50 * time.Millisecond,
		Logger:    testutil.DiscardLogger(),
	})
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}

	start := time.Now()
	_, err = gen.Generate(context.Background(), "anything", nil, nil)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrGenerationUnavailable", err)
	}
	// The configured timeout, not the stall, must bound the call.
	if elapsed >= 2*time.Second {
		t.Errorf("Generate() took %v, want return shortly after the 50ms timeout", elapsed)
	}
}

func TestGenerateEmptyModelOutput(t *testing.T) {
	mock := testutil.NewMockLLM("   ")
	gen := newTestGenerator(t, mock)

	_, err := gen.Generate(context.Background(), "anything", nil, nil)
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrGenerationUnavailable", err)
	}
}
