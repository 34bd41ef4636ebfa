package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySelection(t *testing.T) {
	multi := &Question{
		ID:   "q",
		Type: QuestionMultiChoice,
		Options: []Option{
			{Value: "A", ExclusiveGroup: "1"},
			{Value: "B", ExclusiveGroup: "1"},
			{Value: "C"},
		},
	}

	t.Run("exclusivity group evicts only its own members", func(t *testing.T) {
		selected := []string{"C"}

		selected = ApplySelection(multi, selected, "A")
		assert.ElementsMatch(t, []string{"C", "A"}, selected)

		selected = ApplySelection(multi, selected, "B")
		assert.ElementsMatch(t, []string{"C", "B"}, selected)
	})

	t.Run("ungrouped option joins freely", func(t *testing.T) {
		selected := ApplySelection(multi, []string{"A"}, "C")
		assert.ElementsMatch(t, []string{"A", "C"}, selected)
	})

	t.Run("re-selecting does not duplicate", func(t *testing.T) {
		selected := ApplySelection(multi, []string{"C", "A"}, "C")
		assert.ElementsMatch(t, []string{"A", "C"}, selected)
	})

	t.Run("single choice clears everything", func(t *testing.T) {
		single := &Question{
			ID:   "q2",
			Type: QuestionSingleChoice,
			Options: []Option{
				{Value: "A"}, {Value: "B"}, {Value: "C"},
			},
		}

		selected := ApplySelection(single, []string{"A", "C"}, "B")
		assert.Equal(t, []string{"B"}, selected)
	})
}

func TestAnswerIsEmpty(t *testing.T) {
	assert.True(t, (&Answer{QuestionID: "q"}).IsEmpty())
	assert.True(t, (&Answer{QuestionID: "q", Custom: &CustomResponse{}}).IsEmpty())
	assert.True(t, (&Answer{QuestionID: "q", Dialectic: &DialecticAnnotation{PoleA: "a", PoleB: "b"}}).IsEmpty())

	assert.False(t, (&Answer{QuestionID: "q", Text: "t"}).IsEmpty())
	assert.False(t, (&Answer{QuestionID: "q", SelectedValues: []string{"A"}}).IsEmpty())
	assert.False(t, (&Answer{QuestionID: "q", Custom: &CustomResponse{Text: "w"}}).IsEmpty())
}
