package kb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringan-ai/ringan/internal/testutil"
)

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	require.NoError(t, Seed(ctx, testDB.Pool, testutil.DiscardLogger()))
	store := New(testDB.Pool, testutil.DiscardLogger())

	t.Run("problems ordered by id", func(t *testing.T) {
		problems, err := store.Problems(ctx)
		require.NoError(t, err)
		require.Len(t, problems, len(seedProblems))
		assert.Equal(t, "P001", problems[0].ID)
		assert.Equal(t, "Anxiety", problems[0].Name)
	})

	t.Run("problem by id", func(t *testing.T) {
		p, err := store.Problem(ctx, "P002")
		require.NoError(t, err)
		assert.Equal(t, "Depression", p.Name)
		assert.NotEmpty(t, p.Description)
	})

	t.Run("unknown problem", func(t *testing.T) {
		_, err := store.Problem(ctx, "P999")
		assert.True(t, errors.Is(err, ErrNotFound), "want ErrNotFound, got %v", err)
	})

	t.Run("assessment questions chain", func(t *testing.T) {
		questions, err := store.AssessmentQuestions(ctx, "P001")
		require.NoError(t, err)
		require.Len(t, questions, 3)
		assert.Equal(t, "Q002", questions[0].NextStep)
		assert.Empty(t, questions[len(questions)-1].NextStep)
	})

	t.Run("suggestions", func(t *testing.T) {
		suggestions, err := store.Suggestions(ctx, "P004")
		require.NoError(t, err)
		require.NotEmpty(t, suggestions)
		for _, sg := range suggestions {
			assert.Equal(t, "P004", sg.ProblemID)
		}
	})

	t.Run("feedback prompt by stage", func(t *testing.T) {
		fp, err := store.FeedbackPrompt(ctx, "post_suggestion")
		require.NoError(t, err)
		assert.Equal(t, "FP001", fp.ID)

		_, err = store.FeedbackPrompt(ctx, "no_such_stage")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("next actions", func(t *testing.T) {
		actions, err := store.NextActions(ctx)
		require.NoError(t, err)
		require.Len(t, actions, len(seedNextActions))
		assert.Equal(t, "continue_same", actions[0].Label)
	})

	t.Run("reseed is idempotent", func(t *testing.T) {
		require.NoError(t, Seed(ctx, testDB.Pool, testutil.DiscardLogger()))
		problems, err := store.Problems(ctx)
		require.NoError(t, err)
		assert.Len(t, problems, len(seedProblems))
	})
}
