package api

import (
	"errors"
	"net/http"

	"github.com/ringan-ai/ringan/internal/assistant"
	"github.com/ringan-ai/ringan/internal/feedback"
)

type feedbackRequest struct {
	SessionID    string `json:"session_id"`
	Feedback     string `json:"feedback"`
	ProblemID    string `json:"problem_id,omitempty"`
	SuggestionID string `json:"suggestion_id,omitempty"`
}

type feedbackResponse struct {
	Message        string  `json:"message"`
	SentimentLabel string  `json:"sentiment_label"`
	SentimentScore float64 `json:"sentiment_score"`
	NextAction     string  `json:"next_action"`
	FeedbackID     string  `json:"feedback_id"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session", "session_id is required", s.logger)
		return
	}
	if req.Feedback == "" {
		writeError(w, http.StatusBadRequest, "missing_feedback", "feedback is required", s.logger)
		return
	}

	result, err := s.assistant.ProcessFeedback(r.Context(), req.SessionID, req.Feedback, assistant.FeedbackContext{
		ProblemID:    req.ProblemID,
		SuggestionID: req.SuggestionID,
	})
	if err != nil {
		if errors.Is(err, feedback.ErrPersistence) {
			s.logger.Error("feedback persistence failed",
				"error", err,
				"request_id", requestIDFromContext(r.Context()),
			)
			writeError(w, http.StatusInternalServerError, "persistence_failed", "could not record feedback", s.logger)
			return
		}
		s.logger.Error("feedback processing failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong", s.logger)
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{
		Message:        result.Message,
		SentimentLabel: result.SentimentLabel,
		SentimentScore: result.SentimentScore,
		NextAction:     result.NextAction,
		FeedbackID:     result.FeedbackID.String(),
	}, s.logger)
}
