package api

import (
	"errors"
	"net/http"

	"github.com/ringan-ai/ringan/internal/kb"
)

func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	problems, err := s.kb.Problems(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"problems": problems}, s.logger)
}

func (s *Server) handleProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := s.kb.Problem(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, problem, s.logger)
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	questions, err := s.kb.AssessmentQuestions(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions}, s.logger)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.kb.Suggestions(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions}, s.logger)
}

func (s *Server) handleFeedbackPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := s.kb.FeedbackPrompt(r.Context(), r.PathValue("stage"))
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt, s.logger)
}

func (s *Server) handleNextActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.kb.NextActions(r.Context())
	if err != nil {
		s.writeCatalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"next_actions": actions}, s.logger)
}

func (s *Server) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, kb.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "the requested resource does not exist", s.logger)
		return
	}
	s.logger.Error("catalog query failed",
		"error", err,
		"path", r.URL.Path,
		"request_id", requestIDFromContext(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong", s.logger)
}
