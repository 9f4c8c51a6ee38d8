package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/ringan-ai/ringan/internal/index"
)

const generatorSystemTemplate = `You are a supportive mental-health assistant. Be warm, non-judgmental, and concise. You are not a therapist and do not diagnose; encourage professional help for serious or persistent concerns. Never fabricate facts or sources. Answer in %s.`

const groundedContextHeader = `Use the following reference passages to ground your answer. If they do not cover the question, say so and answer from general knowledge without citing them.`

const ungroundedNote = `No reference passages are available for this question. Answer from general knowledge and do not claim to cite any source.`

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	Genkit    *genkit.Genkit
	ModelName string
	Language  string // answer language, e.g. "English"
	Timeout   time.Duration
	Logger    *slog.Logger
}

func (c *GeneratorConfig) validate() error {
	if c.Genkit == nil {
		return fmt.Errorf("generator: genkit instance is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("generator: model name is required")
	}
	if c.Language == "" {
		return fmt.Errorf("generator: language is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("generator: timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Generator produces answers grounded in retrieved passages.
//
// The prompt has three fixed slots: the system instruction (role, tone,
// no-fabrication directive, answer language), the concatenated passage texts,
// and the question. Conversation history travels as prior chat messages, not
// inside the context slot.
type Generator struct {
	g         *genkit.Genkit
	modelName string
	language  string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		language:  cfg.Language,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// Generate answers question conditioned on the retrieved passages and the
// conversation history. With no passages it still answers from general
// knowledge and reports an empty UsedSources. Model failure or timeout
// surfaces as ErrGenerationUnavailable; there is no internal retry.
func (g *Generator) Generate(ctx context.Context, question string, retrieved []index.Result, history []Turn) (*Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := historyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(buildUserPrompt(question, retrieved))))

	resp, err := genkit.Generate(ctx, g.g,
		ai.WithModelName(g.modelName),
		ai.WithSystem(fmt.Sprintf(generatorSystemTemplate, g.language)),
		ai.WithMessages(messages...),
	)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %v: %w", err, ErrGenerationUnavailable)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("model returned empty answer: %w", ErrGenerationUnavailable)
	}

	answer := &Answer{Text: text}
	if len(retrieved) > 0 {
		answer.UsedSources = retrieved
	}
	return answer, nil
}

// buildUserPrompt fills the context and question slots.
func buildUserPrompt(question string, retrieved []index.Result) string {
	var sb strings.Builder
	if len(retrieved) == 0 {
		sb.WriteString(ungroundedNote)
	} else {
		sb.WriteString(groundedContextHeader)
		for i, r := range retrieved {
			sb.WriteString(fmt.Sprintf("\n\n[Passage %d]\n", i+1))
			sb.WriteString(r.Passage.Content)
		}
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}

// historyMessages converts turns into chat messages for the model.
func historyMessages(history []Turn) []*ai.Message {
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, t := range history {
		part := ai.NewTextPart(t.Text)
		if t.Role == RoleAssistant {
			messages = append(messages, ai.NewModelMessage(part))
		} else {
			messages = append(messages, ai.NewUserMessage(part))
		}
	}
	return messages
}
