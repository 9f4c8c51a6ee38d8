// Package feedback classifies free-text user feedback into a sentiment, maps
// it to a signed score, persists an immutable feedback record, and decides
// the conversation's next action.
//
// Classification is best effort: a failing or malformed classifier degrades
// to neutral instead of blocking feedback storage. Persistence is the
// opposite: a failed write surfaces loudly, since silent data loss is
// unacceptable.
package feedback

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentiment labels.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// Next actions derived from the sentiment score.
const (
	ActionContinue         = "CONTINUE"          // keep going on the current thread
	ActionShowAlternatives = "SHOW_ALTERNATIVES" // offer different suggestions
	ActionAskFollowUp      = "ASK_FOLLOW_UP"     // sentiment unclear, ask more
)

// ErrPersistence indicates the feedback write failed and was rolled back.
// No partial record exists when this is returned.
var ErrPersistence = errors.New("feedback persistence failed")

// Sentiment is the classifier's verdict on a piece of feedback.
type Sentiment struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	KeyPhrases []string `json:"key_phrases"`
}

// Record is a persisted feedback entry. Immutable once created.
// SentimentScore's sign always matches Label: positive > 0, negative < 0,
// neutral exactly 0.
type Record struct {
	ID             uuid.UUID
	SessionID      string
	UserMessage    string
	AIResponse     string
	FeedbackText   string
	SentimentLabel string
	SentimentScore float64
	KeyPhrases     []string
	ProblemID      string // optional knowledge-base link
	SuggestionID   string // optional knowledge-base link
	CreatedAt      time.Time
}
