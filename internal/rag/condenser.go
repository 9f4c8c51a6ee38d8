package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

const condenserInstruction = `Rewrite the user's latest message as a standalone question that can be understood without the conversation above. Resolve pronouns and references to earlier turns. Keep the user's intent and language. Reply with the rewritten question only, no explanation.`

// CondenserConfig configures a Condenser.
type CondenserConfig struct {
	Genkit    *genkit.Genkit
	ModelName string
	Timeout   time.Duration
	Logger    *slog.Logger
}

func (c *CondenserConfig) validate() error {
	if c.Genkit == nil {
		return fmt.Errorf("condenser: genkit instance is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("condenser: model name is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("condenser: timeout must be positive, got %v", c.Timeout)
	}
	return nil
}

// Condenser rewrites follow-up utterances into standalone queries.
//
// Condensation is best effort: when the model fails, times out, or returns
// nothing, Condense falls back to the verbatim utterance instead of
// propagating the failure. Availability matters more than polish here.
type Condenser struct {
	g         *genkit.Genkit
	modelName string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewCondenser creates a Condenser.
func NewCondenser(cfg CondenserConfig) (*Condenser, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Condenser{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// Condense returns a history-independent rephrasing of utterance.
// With empty history the utterance is already standalone and is returned
// unchanged without a model call.
func (c *Condenser) Condense(ctx context.Context, history []Turn, utterance string) string {
	if len(history) == 0 {
		return utterance
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString("Conversation so far:\n")
	for _, t := range history {
		sb.WriteString(t.Role)
		sb.WriteString(": ")
		sb.WriteString(t.Text)
		sb.WriteByte('\n')
	}
	sb.WriteString("\nLatest user message: ")
	sb.WriteString(utterance)

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(condenserInstruction),
		ai.WithPrompt(sb.String()),
	)
	if err != nil {
		c.logger.Warn("query condensation failed, using verbatim message", "error", err)
		return utterance
	}

	standalone := strings.TrimSpace(resp.Text())
	if standalone == "" {
		c.logger.Warn("query condensation returned empty text, using verbatim message")
		return utterance
	}
	return standalone
}
