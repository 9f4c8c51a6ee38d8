// Package assistant orchestrates one conversational exchange: condense the
// question against session history, retrieve passages, generate a grounded
// answer, then record the exchange in session state. It also routes user
// feedback through sentiment classification, persistence, and the
// next-action policy.
//
// The orchestrator holds no retry logic. Transient failures surface as the
// pipeline's typed errors and the caller decides whether to retry the whole
// call; retrying here would mutate conversational context non-idempotently.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ringan-ai/ringan/internal/feedback"
	"github.com/ringan-ai/ringan/internal/index"
	"github.com/ringan-ai/ringan/internal/rag"
	"github.com/ringan-ai/ringan/internal/session"
)

// ErrEmptyMessage indicates a blank user message.
var ErrEmptyMessage = errors.New("message is empty")

// ErrMessageTooLong indicates a message over the configured length bound.
var ErrMessageTooLong = errors.New("message too long")

// Acknowledgment texts returned with each next action.
const (
	ackContinue         = "I'm glad that helped. Would you like to keep going with this topic?"
	ackShowAlternatives = "I'm sorry that didn't help. Let me suggest some other approaches that might work better."
	ackAskFollowUp      = "Thanks for letting me know. Could you tell me a bit more about how that landed for you?"
)

// Condenser rewrites a follow-up into a standalone query.
type Condenser interface {
	Condense(ctx context.Context, history []rag.Turn, utterance string) string
}

// Retriever finds passages relevant to a standalone query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]index.Result, error)
}

// Generator produces a grounded answer.
type Generator interface {
	Generate(ctx context.Context, question string, retrieved []index.Result, history []rag.Turn) (*rag.Answer, error)
}

// Analyzer classifies feedback sentiment.
type Analyzer interface {
	Analyze(ctx context.Context, text string) feedback.Sentiment
}

// Recorder persists feedback records.
type Recorder interface {
	Save(ctx context.Context, rec *feedback.Record) error
}

// Exchange is the full result of one ProcessUserMessage call. The core does
// not persist it; it is returned whole so a collaborator can.
type Exchange struct {
	SessionID       string
	UserMessage     string
	StandaloneQuery string
	Retrieved       []index.Result
	UsedSources     []index.Result
	AnswerText      string
}

// FeedbackContext optionally links feedback to knowledge-base rows.
type FeedbackContext struct {
	ProblemID    string
	SuggestionID string
}

// FeedbackResult is the outcome of ProcessFeedback.
type FeedbackResult struct {
	Message        string // acknowledgment shown to the user
	SentimentLabel string
	SentimentScore float64
	NextAction     string
	FeedbackID     uuid.UUID
}

// Config configures an Assistant.
type Config struct {
	Condenser Condenser
	Retriever Retriever
	Generator Generator
	Sessions  *session.Store
	Analyzer  Analyzer
	Feedback  Recorder
	Policy    feedback.Policy
	// MaxMessageLength bounds incoming message size in bytes.
	MaxMessageLength int
	Logger           *slog.Logger
}

func (c *Config) validate() error {
	if c.Condenser == nil || c.Retriever == nil || c.Generator == nil {
		return fmt.Errorf("assistant: condenser, retriever, and generator are required")
	}
	if c.Sessions == nil {
		return fmt.Errorf("assistant: session store is required")
	}
	if c.Analyzer == nil || c.Feedback == nil {
		return fmt.Errorf("assistant: analyzer and feedback recorder are required")
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("assistant: %w", err)
	}
	if c.MaxMessageLength < 1 {
		return fmt.Errorf("assistant: MaxMessageLength must be positive, got %d", c.MaxMessageLength)
	}
	return nil
}

// Assistant is the conversational core exposed to hosting layers.
//
// Assistant is safe for concurrent use; calls for different sessions run in
// parallel, appends to the same session serialize in the session store.
type Assistant struct {
	condenser Condenser
	retriever Retriever
	generator Generator
	sessions  *session.Store
	analyzer  Analyzer
	feedback  Recorder
	policy    feedback.Policy
	maxLen    int
	logger    *slog.Logger
}

// New creates an Assistant.
func New(cfg Config) (*Assistant, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		condenser: cfg.Condenser,
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		sessions:  cfg.Sessions,
		analyzer:  cfg.Analyzer,
		feedback:  cfg.Feedback,
		policy:    cfg.Policy,
		maxLen:    cfg.MaxMessageLength,
		logger:    logger,
	}, nil
}

// ProcessUserMessage runs the full pipeline for one message. A blank
// sessionID starts a new session with a generated id, returned in the
// Exchange.
//
// Session history is mutated only after generation succeeds, and as one
// atomic user+assistant append: a failed call leaves the session exactly as
// it was.
func (a *Assistant) ProcessUserMessage(ctx context.Context, sessionID, message string) (*Exchange, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if len(message) > a.maxLen {
		return nil, fmt.Errorf("message is %d bytes, limit %d: %w", len(message), a.maxLen, ErrMessageTooLong)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history := a.history(sessionID)

	standalone := a.condenser.Condense(ctx, history, message)

	retrieved, err := a.retriever.Retrieve(ctx, standalone)
	if err != nil {
		a.logger.Error("retrieval failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	answer, err := a.generator.Generate(ctx, message, retrieved, history)
	if err != nil {
		a.logger.Error("generation failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	a.sessions.AppendExchange(sessionID, message, answer.Text)

	a.logger.Info("message processed",
		"session_id", sessionID,
		"retrieved", len(retrieved),
		"used_sources", len(answer.UsedSources))

	return &Exchange{
		SessionID:       sessionID,
		UserMessage:     message,
		StandaloneQuery: standalone,
		Retrieved:       retrieved,
		UsedSources:     answer.UsedSources,
		AnswerText:      answer.Text,
	}, nil
}

// ProcessFeedback classifies feedbackText, persists a feedback record linked
// to the session's last exchange, and decides the next action.
// Classification problems degrade silently to neutral; persistence problems
// surface as feedback.ErrPersistence with nothing written.
func (a *Assistant) ProcessFeedback(ctx context.Context, sessionID, feedbackText string, fctx FeedbackContext) (*FeedbackResult, error) {
	sentiment := a.analyzer.Analyze(ctx, feedbackText)

	userMessage, aiResponse := a.lastExchange(sessionID)
	rec := feedback.NewRecord(sessionID, userMessage, aiResponse, feedbackText,
		sentiment, fctx.ProblemID, fctx.SuggestionID)

	if err := a.feedback.Save(ctx, rec); err != nil {
		a.logger.Error("feedback persistence failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	action := a.policy.NextAction(rec.SentimentScore)

	a.logger.Info("feedback processed",
		"session_id", sessionID,
		"feedback_id", rec.ID,
		"label", rec.SentimentLabel,
		"next_action", action)

	return &FeedbackResult{
		Message:        ackFor(action),
		SentimentLabel: rec.SentimentLabel,
		SentimentScore: rec.SentimentScore,
		NextAction:     action,
		FeedbackID:     rec.ID,
	}, nil
}

// History exposes the session's turn log for hosting layers.
func (a *Assistant) History(sessionID string) []session.Turn {
	return a.sessions.History(sessionID)
}

// history converts session turns into pipeline turns.
func (a *Assistant) history(sessionID string) []rag.Turn {
	turns := a.sessions.History(sessionID)
	if len(turns) == 0 {
		return nil
	}
	history := make([]rag.Turn, len(turns))
	for i, t := range turns {
		role := rag.RoleUser
		if t.Role == session.RoleAssistant {
			role = rag.RoleAssistant
		}
		history[i] = rag.Turn{Role: role, Text: t.Text}
	}
	return history
}

// lastExchange returns the most recent user message and assistant reply.
func (a *Assistant) lastExchange(sessionID string) (userMessage, aiResponse string) {
	turns := a.sessions.History(sessionID)
	for i := len(turns) - 1; i >= 0; i-- {
		switch turns[i].Role {
		case session.RoleAssistant:
			if aiResponse == "" {
				aiResponse = turns[i].Text
			}
		case session.RoleUser:
			if userMessage == "" {
				userMessage = turns[i].Text
			}
		}
		if userMessage != "" && aiResponse != "" {
			break
		}
	}
	return userMessage, aiResponse
}

func ackFor(action string) string {
	switch action {
	case feedback.ActionContinue:
		return ackContinue
	case feedback.ActionShowAlternatives:
		return ackShowAlternatives
	default:
		return ackAskFollowUp
	}
}
