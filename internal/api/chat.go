package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ringan-ai/ringan/internal/assistant"
	"github.com/ringan-ai/ringan/internal/rag"
)

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatSource struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type chatResponse struct {
	SessionID string       `json:"session_id"`
	Answer    string       `json:"answer"`
	Sources   []chatSource `json:"sources"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	exchange, err := s.assistant.ProcessUserMessage(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}

	sources := make([]chatSource, 0, len(exchange.UsedSources))
	for _, src := range exchange.UsedSources {
		sources = append(sources, chatSource{
			ID:         src.Passage.ID,
			Content:    src.Passage.Content,
			Similarity: src.Similarity,
			Metadata:   src.Passage.Metadata,
		})
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: exchange.SessionID,
		Answer:    exchange.AnswerText,
		Sources:   sources,
	}, s.logger)
}

func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "empty_message", "message must not be empty", s.logger)
	case errors.Is(err, assistant.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "message_too_long", "message exceeds the maximum length", s.logger)
	case errors.Is(err, rag.ErrRetrievalUnavailable), errors.Is(err, rag.ErrGenerationUnavailable):
		// Transient backend trouble. The details stay in the logs.
		s.logger.Error("chat exchange failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusServiceUnavailable, "temporarily_unavailable",
			"I'm having trouble answering right now. Please try again in a moment.", s.logger)
	default:
		s.logger.Error("chat exchange failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong", s.logger)
	}
}

// decodeBody reads a JSON request body with a size cap. It writes the error
// response itself and reports whether decoding succeeded.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large", s.logger)
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", s.logger)
		return false
	}
	return true
}
