package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DB is the subset of pgx pool operations the store needs. Saves run inside
// transactions, reads do not. *pgxpool.Pool satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists feedback records.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// NewStore creates a feedback Store.
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Save writes rec inside a transaction. Any write error rolls back fully and
// surfaces as ErrPersistence; a partial record never exists.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	keyPhrasesJSON, err := json.Marshal(rec.KeyPhrases)
	if err != nil {
		return fmt.Errorf("marshaling key phrases: %v: %w", err, ErrPersistence)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %v: %w", err, ErrPersistence)
	}
	defer func() {
		// no-op after commit
		_ = tx.Rollback(ctx)
	}()

	var problemID, suggestionID any
	if rec.ProblemID != "" {
		problemID = rec.ProblemID
	}
	if rec.SuggestionID != "" {
		suggestionID = rec.SuggestionID
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO feedback_records
		 (id, session_id, user_message, ai_response, feedback_text,
		  sentiment_label, sentiment_score, key_phrases, problem_id, suggestion_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.SessionID, rec.UserMessage, rec.AIResponse, rec.FeedbackText,
		rec.SentimentLabel, rec.SentimentScore, keyPhrasesJSON, problemID, suggestionID,
		rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting feedback record: %v: %w", err, ErrPersistence)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing feedback record: %v: %w", err, ErrPersistence)
	}

	s.logger.Debug("feedback record saved",
		"feedback_id", rec.ID, "session_id", rec.SessionID, "label", rec.SentimentLabel)
	return nil
}

// BySession returns a session's feedback records, oldest first.
func (s *Store) BySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, COALESCE(user_message, ''), COALESCE(ai_response, ''),
		        feedback_text, sentiment_label, sentiment_score, key_phrases,
		        COALESCE(problem_id, ''), COALESCE(suggestion_id, ''), created_at
		 FROM feedback_records WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing feedback for session %q: %w", sessionID, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec            Record
			keyPhrasesJSON []byte
			createdAt      time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserMessage, &rec.AIResponse,
			&rec.FeedbackText, &rec.SentimentLabel, &rec.SentimentScore, &keyPhrasesJSON,
			&rec.ProblemID, &rec.SuggestionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning feedback record: %w", err)
		}
		if err := json.Unmarshal(keyPhrasesJSON, &rec.KeyPhrases); err != nil {
			rec.KeyPhrases = []string{}
		}
		rec.CreatedAt = createdAt
		records = append(records, rec)
	}
	return records, rows.Err()
}

// NewRecord assembles a Record from a classified sentiment, assigning its id
// and timestamp.
func NewRecord(sessionID, userMessage, aiResponse, feedbackText string, sentiment Sentiment, problemID, suggestionID string) *Record {
	return &Record{
		ID:             uuid.New(),
		SessionID:      sessionID,
		UserMessage:    userMessage,
		AIResponse:     aiResponse,
		FeedbackText:   feedbackText,
		SentimentLabel: sentiment.Label,
		SentimentScore: Score(sentiment.Label, sentiment.Confidence),
		KeyPhrases:     sentiment.KeyPhrases,
		ProblemID:      problemID,
		SuggestionID:   suggestionID,
		CreatedAt:      time.Now().UTC(),
	}
}
