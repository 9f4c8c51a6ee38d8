// Package kb provides the relational knowledge-base store: the catalog of
// mental-health problems with their self-assessment questions, suggestions,
// staged feedback prompts, and next-action definitions.
//
// The store is read-mostly: rows change only when the dataset is reseeded,
// never during request handling.
package kb

// Problem is a catalog entry for a supported mental-health concern.
type Problem struct {
	ID          string // e.g. "P001"
	Name        string // e.g. "Anxiety"
	Description string
}

// AssessmentQuestion is a self-assessment question attached to a problem.
// NextStep optionally chains to the following question id.
type AssessmentQuestion struct {
	ID           string // e.g. "Q001"
	ProblemID    string
	Text         string
	ResponseType string // "scale_1_5", "yes_no", "numeric"
	NextStep     string // empty for the last question in a chain
}

// Suggestion is an actionable recommendation for a problem.
type Suggestion struct {
	ID           string // e.g. "S001"
	ProblemID    string
	Text         string
	ResourceLink string // optional external resource
}

// FeedbackPrompt is the canned prompt shown at a given conversation stage.
type FeedbackPrompt struct {
	ID         string // e.g. "FP001"
	Stage      string // e.g. "post_suggestion"
	Text       string
	NextAction string // next_actions.action_id hint, may be empty
}

// NextAction describes a follow-up the conversation flow can take.
type NextAction struct {
	ID          string // e.g. "A01"
	Label       string
	Description string
}
