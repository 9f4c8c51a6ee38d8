package kb

import (
	"context"
	"fmt"
	"log/slog"
)

// Seed upserts the built-in knowledge-base dataset. Re-running it is safe:
// rows are keyed by their natural ids, so an unchanged dataset is a no-op
// and an updated one overwrites in place.
func Seed(ctx context.Context, db DBTX, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, p := range seedProblems {
		if _, err := db.Exec(ctx,
			`INSERT INTO problems (problem_id, problem_name, description)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (problem_id) DO UPDATE
			 SET problem_name = EXCLUDED.problem_name, description = EXCLUDED.description`,
			p.ID, p.Name, p.Description); err != nil {
			return fmt.Errorf("seeding problem %q: %w", p.ID, err)
		}
	}

	for _, q := range seedAssessments {
		var nextStep any
		if q.NextStep != "" {
			nextStep = q.NextStep
		}
		if _, err := db.Exec(ctx,
			`INSERT INTO self_assessments (question_id, problem_id, question_text, response_type, next_step)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (question_id) DO UPDATE
			 SET problem_id = EXCLUDED.problem_id, question_text = EXCLUDED.question_text,
			     response_type = EXCLUDED.response_type, next_step = EXCLUDED.next_step`,
			q.ID, q.ProblemID, q.Text, q.ResponseType, nextStep); err != nil {
			return fmt.Errorf("seeding assessment question %q: %w", q.ID, err)
		}
	}

	for _, sg := range seedSuggestions {
		var link any
		if sg.ResourceLink != "" {
			link = sg.ResourceLink
		}
		if _, err := db.Exec(ctx,
			`INSERT INTO suggestions (suggestion_id, problem_id, suggestion_text, resource_link)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (suggestion_id) DO UPDATE
			 SET problem_id = EXCLUDED.problem_id, suggestion_text = EXCLUDED.suggestion_text,
			     resource_link = EXCLUDED.resource_link`,
			sg.ID, sg.ProblemID, sg.Text, link); err != nil {
			return fmt.Errorf("seeding suggestion %q: %w", sg.ID, err)
		}
	}

	for _, a := range seedNextActions {
		if _, err := db.Exec(ctx,
			`INSERT INTO next_actions (action_id, label, description)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (action_id) DO UPDATE
			 SET label = EXCLUDED.label, description = EXCLUDED.description`,
			a.ID, a.Label, a.Description); err != nil {
			return fmt.Errorf("seeding next action %q: %w", a.ID, err)
		}
	}

	for _, fp := range seedFeedbackPrompts {
		var action any
		if fp.NextAction != "" {
			action = fp.NextAction
		}
		if _, err := db.Exec(ctx,
			`INSERT INTO feedback_prompts (prompt_id, stage, prompt_text, next_action)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (prompt_id) DO UPDATE
			 SET stage = EXCLUDED.stage, prompt_text = EXCLUDED.prompt_text,
			     next_action = EXCLUDED.next_action`,
			fp.ID, fp.Stage, fp.Text, action); err != nil {
			return fmt.Errorf("seeding feedback prompt %q: %w", fp.ID, err)
		}
	}

	logger.Info("knowledge base seeded",
		"problems", len(seedProblems),
		"assessments", len(seedAssessments),
		"suggestions", len(seedSuggestions),
		"feedback_prompts", len(seedFeedbackPrompts),
		"next_actions", len(seedNextActions))
	return nil
}

var seedProblems = []Problem{
	{ID: "P001", Name: "Anxiety", Description: "Persistent feelings of worry, fear, or nervousness that interfere with daily activities"},
	{ID: "P002", Name: "Depression", Description: "Persistent feelings of sadness, hopelessness, and loss of interest in activities"},
	{ID: "P003", Name: "Stress", Description: "Emotional or physical tension resulting from demanding circumstances"},
	{ID: "P004", Name: "Sleep Issues", Description: "Difficulty falling asleep, staying asleep, or getting restful sleep"},
	{ID: "P005", Name: "Social Isolation", Description: "Lack of social connections and feelings of loneliness"},
	{ID: "P006", Name: "Burnout", Description: "State of emotional, physical, and mental exhaustion caused by excessive and prolonged stress"},
}

var seedAssessments = []AssessmentQuestion{
	{ID: "Q001", ProblemID: "P001", Text: "How often do you feel nervous or on edge?", ResponseType: "scale_1_5", NextStep: "Q002"},
	{ID: "Q002", ProblemID: "P001", Text: "Do you find it difficult to control worrying?", ResponseType: "yes_no", NextStep: "Q003"},
	{ID: "Q003", ProblemID: "P001", Text: "How much does anxiety interfere with your daily activities?", ResponseType: "scale_1_5"},
	{ID: "Q004", ProblemID: "P002", Text: "How often do you feel down or hopeless?", ResponseType: "scale_1_5", NextStep: "Q005"},
	{ID: "Q005", ProblemID: "P002", Text: "Have you lost interest or pleasure in activities you used to enjoy?", ResponseType: "yes_no", NextStep: "Q006"},
	{ID: "Q006", ProblemID: "P002", Text: "How much does depression interfere with your daily activities?", ResponseType: "scale_1_5"},
	{ID: "Q007", ProblemID: "P003", Text: "How often do you feel overwhelmed by responsibilities?", ResponseType: "scale_1_5", NextStep: "Q008"},
	{ID: "Q008", ProblemID: "P003", Text: "Do you experience physical symptoms of stress (headaches, muscle tension)?", ResponseType: "yes_no"},
	{ID: "Q009", ProblemID: "P004", Text: "How many hours of sleep do you typically get per night?", ResponseType: "numeric", NextStep: "Q010"},
	{ID: "Q010", ProblemID: "P004", Text: "How often do you have trouble falling asleep?", ResponseType: "scale_1_5"},
	{ID: "Q011", ProblemID: "P005", Text: "How often do you feel lonely?", ResponseType: "scale_1_5", NextStep: "Q012"},
	{ID: "Q012", ProblemID: "P005", Text: "How many meaningful social interactions do you have per week?", ResponseType: "numeric"},
	{ID: "Q013", ProblemID: "P006", Text: "Do you feel emotionally drained from your work or responsibilities?", ResponseType: "scale_1_5", NextStep: "Q014"},
	{ID: "Q014", ProblemID: "P006", Text: "Have you become more cynical or detached from your work?", ResponseType: "scale_1_5", NextStep: "Q015"},
	{ID: "Q015", ProblemID: "P006", Text: "Do you feel less accomplished or effective in your work?", ResponseType: "scale_1_5"},
}

var seedSuggestions = []Suggestion{
	{ID: "S001", ProblemID: "P001", Text: "Practice deep breathing exercises for 5 minutes when feeling anxious", ResourceLink: "https://www.healthline.com/health/breathing-exercises-for-anxiety"},
	{ID: "S002", ProblemID: "P001", Text: "Try progressive muscle relaxation to reduce physical tension", ResourceLink: "https://www.verywellmind.com/progressive-muscle-relaxation-pmr-2584097"},
	{ID: "S003", ProblemID: "P001", Text: "Consider speaking with a mental health professional about anxiety management strategies"},
	{ID: "S004", ProblemID: "P002", Text: "Establish a daily routine with small, achievable goals"},
	{ID: "S005", ProblemID: "P002", Text: "Engage in physical activity for at least 30 minutes daily", ResourceLink: "https://www.mayoclinic.org/diseases-conditions/depression/in-depth/depression-and-exercise/art-20046495"},
	{ID: "S006", ProblemID: "P002", Text: "Consider speaking with a mental health professional about depression treatment options"},
	{ID: "S007", ProblemID: "P003", Text: "Practice mindfulness meditation for 10 minutes daily", ResourceLink: "https://www.mindful.org/how-to-practice-mindfulness/"},
	{ID: "S008", ProblemID: "P003", Text: "Identify and limit stress triggers in your daily life"},
	{ID: "S009", ProblemID: "P004", Text: "Establish a consistent sleep schedule, even on weekends"},
	{ID: "S010", ProblemID: "P004", Text: "Create a relaxing bedtime routine without screens", ResourceLink: "https://www.sleepfoundation.org/sleep-hygiene/bedtime-routine-for-adults"},
	{ID: "S011", ProblemID: "P005", Text: "Join a community group or class based on your interests"},
	{ID: "S012", ProblemID: "P005", Text: "Schedule regular video calls with friends or family members"},
	{ID: "S013", ProblemID: "P006", Text: "Set clear boundaries between work and personal life"},
	{ID: "S014", ProblemID: "P006", Text: "Schedule regular breaks and time for activities you enjoy"},
	{ID: "S015", ProblemID: "P006", Text: "Consider whether changes to your work environment might be beneficial", ResourceLink: "https://www.helpguide.org/articles/stress/burnout-prevention-and-recovery.htm"},
}

var seedNextActions = []NextAction{
	{ID: "A01", Label: "continue_same", Description: "Continue with the current problem and offer further suggestions"},
	{ID: "A02", Label: "show_problem_menu", Description: "Show the problem menu so the user can pick a different concern"},
	{ID: "A03", Label: "end_session", Description: "Wrap up the conversation"},
}

var seedFeedbackPrompts = []FeedbackPrompt{
	{ID: "FP001", Stage: "post_suggestion", Text: "Was this suggestion helpful for you?", NextAction: "A01"},
	{ID: "FP002", Stage: "post_assessment", Text: "Did these questions help you reflect on how you have been feeling?", NextAction: "A01"},
	{ID: "FP003", Stage: "session_end", Text: "Before you go, how was this conversation overall?", NextAction: "A03"},
}
