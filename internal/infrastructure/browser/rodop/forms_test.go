package rodop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browser-operator/internal/config"
	"browser-operator/internal/domain/entity"
)

func choiceQuestion(labels ...string) entity.Question {
	q := entity.Question{
		ID:     "q-choice",
		Prompt: "Shade",
		Type:   entity.QuestionSingleChoice,
	}
	for i, l := range labels {
		q.Options = append(q.Options, entity.Option{ID: "o" + string(rune('a'+i)), Label: l})
	}
	return q
}

func TestMatchOptionExactWinsRegardlessOfScore(t *testing.T) {
	q := choiceQuestion("Red", "Light blue shade", "Blue")

	opt, err := matchOption(q, "blue", 0.9)
	require.NoError(t, err)
	assert.Equal(t, "Blue", opt.Label)
}

func TestMatchOptionSubstringHonorsThreshold(t *testing.T) {
	q := choiceQuestion("Light blue shade", "Red")

	// "blue" covers 4 of 16 label characters, below the default threshold.
	_, err := matchOption(q, "blue", config.Default().Match.MinFieldScore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Light blue shade")
	assert.Contains(t, err.Error(), "Red")

	opt, err := matchOption(q, "light blue", config.Default().Match.MinFieldScore)
	require.NoError(t, err)
	assert.Equal(t, "Light blue shade", opt.Label)
}

func TestMatchOptionZeroThresholdKeepsShortFragments(t *testing.T) {
	q := choiceQuestion("Light blue shade", "Red")

	opt, err := matchOption(q, "blue", 0)
	require.NoError(t, err)
	assert.Equal(t, "Light blue shade", opt.Label)
}

func TestMatchOptionAmbiguousAboveThreshold(t *testing.T) {
	q := choiceQuestion("Blue car", "Blue cap")

	_, err := matchOption(q, "blue ca", 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one option")
}

func TestMatchOptionNoMatchListsLabels(t *testing.T) {
	q := choiceQuestion("Good", "Bad")

	_, err := matchOption(q, "mediocre", 0.5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Good, Bad")
}
