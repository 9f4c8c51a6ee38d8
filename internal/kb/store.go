package kb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is the subset of pgx operations the store needs.
// Both *pgxpool.Pool and pgx.Tx satisfy it, so the same queries run inside
// and outside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads the knowledge-base catalog from PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DBTX
	logger *slog.Logger
}

// New creates a new Store instance.
func New(db DBTX, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Problems returns the full problem catalog ordered by id.
func (s *Store) Problems(ctx context.Context) ([]Problem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT problem_id, problem_name, COALESCE(description, '')
		 FROM problems ORDER BY problem_id`)
	if err != nil {
		return nil, fmt.Errorf("listing problems: %w", err)
	}
	defer rows.Close()

	var problems []Problem
	for rows.Next() {
		var p Problem
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, fmt.Errorf("scanning problem: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

// Problem returns a single problem by id.
func (s *Store) Problem(ctx context.Context, id string) (*Problem, error) {
	var p Problem
	err := s.db.QueryRow(ctx,
		`SELECT problem_id, problem_name, COALESCE(description, '')
		 FROM problems WHERE problem_id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("problem %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting problem %q: %w", id, err)
	}
	return &p, nil
}

// AssessmentQuestions returns the self-assessment questions for a problem,
// ordered by question id (the seeded chain order).
func (s *Store) AssessmentQuestions(ctx context.Context, problemID string) ([]AssessmentQuestion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT question_id, problem_id, question_text, response_type, COALESCE(next_step, '')
		 FROM self_assessments WHERE problem_id = $1 ORDER BY question_id`, problemID)
	if err != nil {
		return nil, fmt.Errorf("listing assessment questions for %q: %w", problemID, err)
	}
	defer rows.Close()

	var questions []AssessmentQuestion
	for rows.Next() {
		var q AssessmentQuestion
		if err := rows.Scan(&q.ID, &q.ProblemID, &q.Text, &q.ResponseType, &q.NextStep); err != nil {
			return nil, fmt.Errorf("scanning assessment question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Suggestions returns the suggestions for a problem ordered by id.
func (s *Store) Suggestions(ctx context.Context, problemID string) ([]Suggestion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT suggestion_id, problem_id, suggestion_text, COALESCE(resource_link, '')
		 FROM suggestions WHERE problem_id = $1 ORDER BY suggestion_id`, problemID)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions for %q: %w", problemID, err)
	}
	defer rows.Close()

	var suggestions []Suggestion
	for rows.Next() {
		var sg Suggestion
		if err := rows.Scan(&sg.ID, &sg.ProblemID, &sg.Text, &sg.ResourceLink); err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		suggestions = append(suggestions, sg)
	}
	return suggestions, rows.Err()
}

// FeedbackPrompt returns the first feedback prompt registered for a stage.
// Returns ErrNotFound when the stage has no prompt.
func (s *Store) FeedbackPrompt(ctx context.Context, stage string) (*FeedbackPrompt, error) {
	var fp FeedbackPrompt
	err := s.db.QueryRow(ctx,
		`SELECT prompt_id, stage, prompt_text, COALESCE(next_action, '')
		 FROM feedback_prompts WHERE stage = $1 ORDER BY prompt_id LIMIT 1`, stage).
		Scan(&fp.ID, &fp.Stage, &fp.Text, &fp.NextAction)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("feedback prompt for stage %q: %w", stage, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting feedback prompt for stage %q: %w", stage, err)
	}
	return &fp, nil
}

// NextActions returns all next-action definitions ordered by id.
func (s *Store) NextActions(ctx context.Context) ([]NextAction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT action_id, label, COALESCE(description, '')
		 FROM next_actions ORDER BY action_id`)
	if err != nil {
		return nil, fmt.Errorf("listing next actions: %w", err)
	}
	defer rows.Close()

	var actions []NextAction
	for rows.Next() {
		var a NextAction
		if err := rows.Scan(&a.ID, &a.Label, &a.Description); err != nil {
			return nil, fmt.Errorf("scanning next action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
