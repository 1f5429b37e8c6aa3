package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{"open ended", Question{Type: QuestionOpenEnded, Text: "Tell me more"}, false},
		{"blank text", Question{Type: QuestionOpenEnded, Text: "  "}, true},
		{"mc ok", Question{Type: QuestionMultipleChoice, Text: "Pick", Options: []string{"a", "b"}}, false},
		{"mc one option", Question{Type: QuestionMultipleChoice, Text: "Pick", Options: []string{"a", " "}}, true},
		{"most least ok", Question{Type: QuestionMostLeast, Text: "Rank", Options: []string{"a", "b", "c"}}, false},
		{"most least short", Question{Type: QuestionMostLeast, Text: "Rank", Options: []string{"a", "b"}}, true},
		{"scale ok", Question{Type: QuestionScale, Text: "Rate", Scale: &ScaleInfo{Min: 1, Max: 10}}, false},
		{"scale missing", Question{Type: QuestionScale, Text: "Rate"}, true},
		{"scale out of range", Question{Type: QuestionScale, Text: "Rate", Scale: &ScaleInfo{Min: 0, Max: 12}}, true},
		{"unknown type", Question{Type: "essay", Text: "Write"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.q.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseQuestionType(t *testing.T) {
	t.Parallel()

	qt, ok := ParseQuestionType("multiple_choice")
	assert.True(t, ok)
	assert.Equal(t, QuestionMultipleChoice, qt)

	qt, ok = ParseQuestionType("Most-Least")
	assert.True(t, ok)
	assert.Equal(t, QuestionMostLeast, qt)

	qt, ok = ParseQuestionType("")
	assert.True(t, ok)
	assert.Equal(t, QuestionOpenEnded, qt)

	_, ok = ParseQuestionType("matrix")
	assert.False(t, ok)
}

func TestAnswerCheckAgainst(t *testing.T) {
	t.Parallel()

	mc := Question{Type: QuestionMultipleChoice, Text: "Pick", Options: []string{"Coach", "Direct"}}
	scale := Question{Type: QuestionScale, Text: "Rate", Scale: &ScaleInfo{Min: 1, Max: 10}}
	rank := Question{Type: QuestionMostLeast, Text: "Rank", Options: []string{"a", "b", "c"}}
	open := Question{Type: QuestionOpenEnded, Text: "Why?"}

	assert.NoError(t, Answer{Choice: "Coach"}.CheckAgainst(mc))
	assert.True(t, errors.Is(Answer{Choice: "Delegate"}.CheckAgainst(mc), ErrInvalidAnswer))

	assert.NoError(t, Answer{Scale: 7}.CheckAgainst(scale))
	assert.ErrorIs(t, Answer{Scale: 11}.CheckAgainst(scale), ErrInvalidAnswer)
	assert.ErrorIs(t, Answer{Scale: 0}.CheckAgainst(scale), ErrInvalidAnswer)

	assert.NoError(t, Answer{Ranking: &MostLeast{Most: "a", Least: "c"}}.CheckAgainst(rank))
	assert.ErrorIs(t, Answer{Ranking: &MostLeast{Most: "a", Least: "a"}}.CheckAgainst(rank), ErrInvalidAnswer)
	assert.ErrorIs(t, Answer{Ranking: &MostLeast{Most: "a", Least: "z"}}.CheckAgainst(rank), ErrInvalidAnswer)
	assert.ErrorIs(t, Answer{}.CheckAgainst(rank), ErrInvalidAnswer)

	assert.NoError(t, Answer{Text: "Because"}.CheckAgainst(open))
	assert.ErrorIs(t, Answer{Text: "   "}.CheckAgainst(open), ErrInvalidAnswer)
}

func TestAnswerRender(t *testing.T) {
	t.Parallel()

	scale := Question{Type: QuestionScale, Text: "Rate", Scale: &ScaleInfo{Min: 1, Max: 10}}
	assert.Equal(t, "8/10", Answer{Scale: 8}.Render(scale))

	rank := Question{Type: QuestionMostLeast, Text: "Rank", Options: []string{"a", "b", "c"}}
	assert.Equal(t, "Most like me: a. Least like me: b.", Answer{Ranking: &MostLeast{Most: "a", Least: "b"}}.Render(rank))

	ex := Exchange{Question: Question{Type: QuestionOpenEnded, Text: "Why?"}, Answer: Answer{Text: "  Growth  "}}
	assert.Equal(t, "Growth", ex.ResponseText())
}

func TestProfileValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Profile{Position: "Director", Role: "Operations", TeamSize: 25}.Validate())

	err := Profile{Position: " ", TeamSize: -1}.Validate()
	var pie *ProfileIncompleteError
	require.ErrorAs(t, err, &pie)
	assert.Equal(t, []string{"position", "role", "team_size"}, pie.Missing)
	assert.Contains(t, err.Error(), "position, role, team_size")
}

func TestParseProfile(t *testing.T) {
	t.Parallel()

	p, err := ParseProfile(" Director ", "Operations", "25", "")
	require.NoError(t, err)
	assert.Equal(t, Profile{Position: "Director", Role: "Operations", TeamSize: 25}, p)

	_, err = ParseProfile("Director", "Operations", "many", "")
	var pie *ProfileIncompleteError
	require.ErrorAs(t, err, &pie)
	assert.Equal(t, []string{"team_size"}, pie.Missing)

	_, err = ParseProfile("", "", "", "")
	require.ErrorAs(t, err, &pie)
	assert.Equal(t, []string{"position", "role", "team_size"}, pie.Missing)
}
