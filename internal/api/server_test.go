package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ringan-ai/ringan/internal/assistant"
	"github.com/ringan-ai/ringan/internal/feedback"
	"github.com/ringan-ai/ringan/internal/index"
	"github.com/ringan-ai/ringan/internal/kb"
	"github.com/ringan-ai/ringan/internal/rag"
	"github.com/ringan-ai/ringan/internal/testutil"
)

type fakeChatter struct {
	exchange *assistant.Exchange
	result   *assistant.FeedbackResult
	err      error

	lastSessionID string
	lastMessage   string
	lastFeedback  string
	lastContext   assistant.FeedbackContext
}

func (f *fakeChatter) ProcessUserMessage(_ context.Context, sessionID, message string) (*assistant.Exchange, error) {
	f.lastSessionID = sessionID
	f.lastMessage = message
	if f.err != nil {
		return nil, f.err
	}
	return f.exchange, nil
}

func (f *fakeChatter) ProcessFeedback(_ context.Context, sessionID, feedbackText string, fctx assistant.FeedbackContext) (*assistant.FeedbackResult, error) {
	f.lastSessionID = sessionID
	f.lastFeedback = feedbackText
	f.lastContext = fctx
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCatalog struct {
	problems  []kb.Problem
	questions []kb.AssessmentQuestion
	err       error
}

func (f *fakeCatalog) Problems(context.Context) ([]kb.Problem, error) {
	return f.problems, f.err
}

func (f *fakeCatalog) Problem(_ context.Context, id string) (*kb.Problem, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.problems {
		if f.problems[i].ID == id {
			return &f.problems[i], nil
		}
	}
	return nil, kb.ErrNotFound
}

func (f *fakeCatalog) AssessmentQuestions(context.Context, string) ([]kb.AssessmentQuestion, error) {
	return f.questions, f.err
}

func (f *fakeCatalog) Suggestions(context.Context, string) ([]kb.Suggestion, error) {
	return nil, f.err
}

func (f *fakeCatalog) FeedbackPrompt(_ context.Context, stage string) (*kb.FeedbackPrompt, error) {
	if f.err != nil {
		return nil, f.err
	}
	if stage != "post_suggestion" {
		return nil, kb.ErrNotFound
	}
	return &kb.FeedbackPrompt{ID: "FP001", Stage: stage, Text: "Did that help?"}, nil
}

func (f *fakeCatalog) NextActions(context.Context) ([]kb.NextAction, error) {
	return nil, f.err
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, chatter *fakeChatter, catalog *fakeCatalog, pinger *fakePinger) *Server {
	t.Helper()
	if chatter == nil {
		chatter = &fakeChatter{}
	}
	if catalog == nil {
		catalog = &fakeCatalog{}
	}
	if pinger == nil {
		pinger = &fakePinger{}
	}
	srv, err := NewServer(ServerConfig{
		Assistant:    chatter,
		KB:           catalog,
		Pool:         pinger,
		Logger:       testutil.DiscardLogger(),
		RateLimitRPS: 1000,
		RateBurst:    1000,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatReturnsAnswerWithSources(t *testing.T) {
	chatter := &fakeChatter{
		exchange: &assistant.Exchange{
			SessionID:  "sess-1",
			AnswerText: "Try a short breathing exercise.",
			UsedSources: []index.Result{
				{
					Passage: index.Passage{
						ID:       "problem:P001",
						Content:  "Anxiety: persistent worry",
						Metadata: map[string]string{"problem_id": "P001"},
					},
					Similarity: 0.91,
				},
			},
		},
	}
	srv := newTestServer(t, chatter, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/chat", chatRequest{
		SessionID: "sess-1",
		Message:   "I feel anxious",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if chatter.lastMessage != "I feel anxious" {
		t.Errorf("assistant received message %q", chatter.lastMessage)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("session_id = %q, want sess-1", resp.SessionID)
	}
	if resp.Answer != "Try a short breathing exercise." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].ID != "problem:P001" {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestChatEmptySourcesSerializeAsEmptyArray(t *testing.T) {
	chatter := &fakeChatter{
		exchange: &assistant.Exchange{SessionID: "sess-1", AnswerText: "General advice."},
	}
	srv := newTestServer(t, chatter, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/chat", chatRequest{Message: "hello"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"sources":[]`) {
		t.Errorf("body = %s, want empty sources array", rec.Body.String())
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty message", assistant.ErrEmptyMessage, http.StatusBadRequest, "empty_message"},
		{"too long", assistant.ErrMessageTooLong, http.StatusBadRequest, "message_too_long"},
		{"retrieval down", rag.ErrRetrievalUnavailable, http.StatusServiceUnavailable, "temporarily_unavailable"},
		{"generation down", rag.ErrGenerationUnavailable, http.StatusServiceUnavailable, "temporarily_unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeChatter{err: tt.err}, nil, nil)

			rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/chat", chatRequest{Message: "hi"})

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", body.Error, tt.wantCode)
			}
		})
	}
}

func TestChatUnavailableErrorHidesDetails(t *testing.T) {
	srv := newTestServer(t, &fakeChatter{
		err: errors.New("pgx: connection refused on 10.0.0.5: " + rag.ErrRetrievalUnavailable.Error()),
	}, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/chat", chatRequest{Message: "hi"})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("response leaks backend details: %s", rec.Body.String())
	}
}

func TestChatRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatRejectsOversizedBody(t *testing.T) {
	chatter := &fakeChatter{exchange: &assistant.Exchange{SessionID: "s", AnswerText: "ok"}}
	srv := newTestServer(t, chatter, nil, nil)

	big := strings.Repeat("x", 128<<10)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/chat", chatRequest{Message: big})

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestFeedbackReturnsNextAction(t *testing.T) {
	id := uuid.New()
	chatter := &fakeChatter{
		result: &assistant.FeedbackResult{
			Message:        "Glad it helped.",
			SentimentLabel: feedback.LabelPositive,
			SentimentScore: 0.9,
			NextAction:     feedback.ActionContinue,
			FeedbackID:     id,
		},
	}
	srv := newTestServer(t, chatter, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/feedback", feedbackRequest{
		SessionID:    "sess-1",
		Feedback:     "that really helped",
		ProblemID:    "P001",
		SuggestionID: "S001",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body %s", rec.Code, rec.Body.String())
	}
	if chatter.lastContext.ProblemID != "P001" || chatter.lastContext.SuggestionID != "S001" {
		t.Errorf("context = %+v", chatter.lastContext)
	}

	var resp feedbackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NextAction != feedback.ActionContinue {
		t.Errorf("next_action = %q", resp.NextAction)
	}
	if resp.FeedbackID != id.String() {
		t.Errorf("feedback_id = %q, want %q", resp.FeedbackID, id)
	}
}

func TestFeedbackValidation(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/feedback", feedbackRequest{Feedback: "ok"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing session: status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/feedback", feedbackRequest{SessionID: "s"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing feedback: status = %d, want 400", rec.Code)
	}
}

func TestFeedbackPersistenceFailure(t *testing.T) {
	srv := newTestServer(t, &fakeChatter{err: feedback.ErrPersistence}, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/feedback", feedbackRequest{
		SessionID: "s",
		Feedback:  "meh",
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "persistence_failed" {
		t.Errorf("error code = %q", body.Error)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	catalog := &fakeCatalog{
		problems: []kb.Problem{
			{ID: "P001", Name: "Anxiety", Description: "Persistent worry"},
			{ID: "P002", Name: "Depression", Description: "Low mood"},
		},
		questions: []kb.AssessmentQuestion{
			{ID: "Q001", ProblemID: "P001", Text: "How often do you worry?", ResponseType: "scale_1_5", NextStep: "Q002"},
		},
	}
	srv := newTestServer(t, nil, catalog, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/problems", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("problems: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Anxiety") {
		t.Errorf("problems body = %s", rec.Body.String())
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/problems/P001", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("problem: status = %d", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/problems/P404", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing problem: status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/problems/P001/assessment", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Q001") {
		t.Errorf("assessment: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/feedback-prompts/post_suggestion", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Did that help?") {
		t.Errorf("feedback prompt: status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/feedback-prompts/unknown_stage", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown stage: status = %d, want 404", rec.Code)
	}
}

func TestCatalogBackendFailure(t *testing.T) {
	srv := newTestServer(t, nil, &fakeCatalog{err: errors.New("connection reset")}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/problems", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Errorf("response leaks backend error: %s", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, nil, nil, &fakePinger{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz: status = %d", rec.Code)
	}
}

func TestReadyzFailsWhenDatabaseDown(t *testing.T) {
	srv := newTestServer(t, nil, nil, &fakePinger{err: errors.New("dial tcp: refused")})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRequestIDHeaderSet(t *testing.T) {
	srv := newTestServer(t, nil, &fakeCatalog{}, nil)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/v1/problems", nil)
	if got := rec.Header().Get("X-Request-ID"); got == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestRateLimitExceeded(t *testing.T) {
	chatter := &fakeChatter{exchange: &assistant.Exchange{SessionID: "s", AnswerText: "ok"}}
	srv, err := NewServer(ServerConfig{
		Assistant:    chatter,
		KB:           &fakeCatalog{},
		Pool:         &fakePinger{},
		Logger:       testutil.DiscardLogger(),
		RateLimitRPS: 1,
		RateBurst:    2,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	var limited bool
	for i := 0; i < 5; i++ {
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/chat", chatRequest{Message: "hi"})
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if rec.Header().Get("Retry-After") == "" {
				t.Error("Retry-After header missing on 429")
			}
			break
		}
	}
	if !limited {
		t.Error("burst of requests was never rate limited")
	}
}

func TestRateLimitDoesNotAffectHealth(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Assistant:    &fakeChatter{},
		KB:           &fakeCatalog{},
		Pool:         &fakePinger{},
		Logger:       testutil.DiscardLogger(),
		RateLimitRPS: 1,
		RateBurst:    1,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	for i := 0; i < 10; i++ {
		rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("healthz throttled on request %d: status = %d", i, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Assistant:   &fakeChatter{},
		KB:          &fakeCatalog{},
		Pool:        &fakePinger{},
		Logger:      testutil.DiscardLogger(),
		CORSOrigins: []string{"https://app.example.com"},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin = %q", got)
	}
}

func TestRecoveryMiddlewareCatchesPanic(t *testing.T) {
	srv := newTestServer(t, nil, &fakeCatalog{}, nil)

	// Replace the API mux target with a panicking handler through the full
	// middleware chain by panicking inside the chatter.
	panicking := &panickingChatter{}
	srv.assistant = panicking

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/chat", chatRequest{Message: "hi"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

type panickingChatter struct{}

func (p *panickingChatter) ProcessUserMessage(context.Context, string, string) (*assistant.Exchange, error) {
	panic("unexpected state")
}

func (p *panickingChatter) ProcessFeedback(context.Context, string, string, assistant.FeedbackContext) (*assistant.FeedbackResult, error) {
	panic("unexpected state")
}

func TestServerConfigValidation(t *testing.T) {
	_, err := NewServer(ServerConfig{KB: &fakeCatalog{}, Pool: &fakePinger{}})
	if err == nil {
		t.Error("missing assistant accepted")
	}
	_, err = NewServer(ServerConfig{Assistant: &fakeChatter{}, Pool: &fakePinger{}})
	if err == nil {
		t.Error("missing catalog accepted")
	}
	_, err = NewServer(ServerConfig{Assistant: &fakeChatter{}, KB: &fakeCatalog{}})
	if err == nil {
		t.Error("missing pool accepted")
	}
}
