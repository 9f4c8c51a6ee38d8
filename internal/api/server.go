// Package api exposes the assistant over HTTP. Handlers decode JSON
// requests, delegate to the assistant and knowledge base layers, and map
// domain errors to status codes without leaking internals to clients.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ringan-ai/ringan/internal/assistant"
	"github.com/ringan-ai/ringan/internal/kb"
)

// Chatter handles conversational exchanges and feedback submissions.
type Chatter interface {
	ProcessUserMessage(ctx context.Context, sessionID, message string) (*assistant.Exchange, error)
	ProcessFeedback(ctx context.Context, sessionID, feedbackText string, fctx assistant.FeedbackContext) (*assistant.FeedbackResult, error)
}

// Catalog serves the curated knowledge base content.
type Catalog interface {
	Problems(ctx context.Context) ([]kb.Problem, error)
	Problem(ctx context.Context, id string) (*kb.Problem, error)
	AssessmentQuestions(ctx context.Context, problemID string) ([]kb.AssessmentQuestion, error)
	Suggestions(ctx context.Context, problemID string) ([]kb.Suggestion, error)
	FeedbackPrompt(ctx context.Context, stage string) (*kb.FeedbackPrompt, error)
	NextActions(ctx context.Context) ([]kb.NextAction, error)
}

// Pinger reports backend connectivity for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig carries the dependencies and tuning knobs for the HTTP server.
type ServerConfig struct {
	Assistant   Chatter
	KB          Catalog
	Pool        Pinger
	Logger      *slog.Logger
	CORSOrigins []string

	// TrustProxy enables X-Real-IP and X-Forwarded-For handling. Only set
	// this when the server sits behind a proxy that strips those headers
	// from client requests.
	TrustProxy bool

	RateLimitRPS float64
	RateBurst    int

	// MaxBodyBytes caps request body size. Zero means 64 KiB.
	MaxBodyBytes int64
}

func (c *ServerConfig) validate() error {
	if c.Assistant == nil {
		return errors.New("api: assistant is required")
	}
	if c.KB == nil {
		return errors.New("api: knowledge base is required")
	}
	if c.Pool == nil {
		return errors.New("api: database pool is required")
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 10
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 20
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 10
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Server routes HTTP requests to the assistant and knowledge base.
type Server struct {
	assistant    Chatter
	kb           Catalog
	pool         Pinger
	logger       *slog.Logger
	maxBodyBytes int64
	handler      http.Handler
}

// NewServer builds the server and its middleware chain.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		assistant:    cfg.Assistant,
		kb:           cfg.KB,
		pool:         cfg.Pool,
		logger:       cfg.Logger,
		maxBodyBytes: cfg.MaxBodyBytes,
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/v1/chat", s.handleChat)
	apiMux.HandleFunc("POST /api/v1/feedback", s.handleFeedback)
	apiMux.HandleFunc("GET /api/v1/problems", s.handleProblems)
	apiMux.HandleFunc("GET /api/v1/problems/{id}", s.handleProblem)
	apiMux.HandleFunc("GET /api/v1/problems/{id}/assessment", s.handleAssessment)
	apiMux.HandleFunc("GET /api/v1/problems/{id}/suggestions", s.handleSuggestions)
	apiMux.HandleFunc("GET /api/v1/feedback-prompts/{stage}", s.handleFeedbackPrompt)
	apiMux.HandleFunc("GET /api/v1/next-actions", s.handleNextActions)

	rl := newRateLimiter(cfg.RateLimitRPS, cfg.RateBurst)

	var h http.Handler = apiMux
	h = rateLimitMiddleware(rl, cfg.TrustProxy, cfg.Logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)
	h = securityHeadersMiddleware()(h)
	h = loggingMiddleware(cfg.Logger)(h)
	h = requestIDMiddleware()(h)
	h = recoveryMiddleware(cfg.Logger)(h)

	// Health endpoints bypass rate limiting and CORS so probes never get
	// throttled out of the readiness signal.
	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealthz)
	root.HandleFunc("GET /readyz", s.handleReadyz)
	root.Handle("/api/", h)

	s.handler = root
	return s, nil
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
