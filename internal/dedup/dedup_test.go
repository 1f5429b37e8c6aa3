package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase and punctuation", "What Motivates You, Most?", "what motivates you most"},
		{"collapse whitespace", "  How   do\tyou\n lead  ", "how do you lead"},
		{"next marker", "Describe a setback (next)", "describe a setback"},
		{"alt marker keeps numeral", "Describe a setback (alt 2)", "describe a setback 2"},
		{"bare alt marker", "Describe a setback (alt)", "describe a setback"},
		{"unicode folding", "Ｌｅａｄ ÉQUIPE", "lead équipe"},
		{"empty", "?!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestEnsureUniqueNewCandidate(t *testing.T) {
	t.Parallel()

	tr := NewTracker([]string{"Generic?"}, []string{"Pick one."})
	got, rewritten := tr.EnsureUnique("How do you lead?", false)
	assert.Equal(t, "How do you lead?", got)
	assert.False(t, rewritten)
	assert.Equal(t, 0, tr.Len())
}

func TestEnsureUniqueUsesPromptsByKind(t *testing.T) {
	t.Parallel()

	tr := NewTracker([]string{"Open A?", "Open B?"}, []string{"Choice A?"})
	tr.Mark("How do you lead?")

	got, rewritten := tr.EnsureUnique("how do you LEAD", false)
	assert.True(t, rewritten)
	assert.Equal(t, "Open A?", got)

	tr.Mark("Open A?")
	got, _ = tr.EnsureUnique("How do you lead?", false)
	assert.Equal(t, "Open B?", got)

	got, _ = tr.EnsureUnique("How do you lead?", true)
	assert.Equal(t, "Choice A?", got)
}

func TestEnsureUniqueNumberedVariant(t *testing.T) {
	t.Parallel()

	tr := NewTracker([]string{"Open A?"}, nil)
	tr.Mark("Q?")
	tr.Mark("Open A?")

	got, rewritten := tr.EnsureUnique("Q?", false)
	assert.True(t, rewritten)
	assert.Equal(t, "Q? (alt 1)", got)

	tr.Mark(got)
	got, _ = tr.EnsureUnique("Q?", false)
	assert.Equal(t, "Q? (alt 2)", got)

	tr.Mark(got)
	got, _ = tr.EnsureUnique("Q? (alt 2)", false)
	assert.Equal(t, "Q? (alt 3)", got)
}

func TestEnsureUniqueNeverCollides(t *testing.T) {
	t.Parallel()

	tr := NewTracker([]string{"Tell me more."}, []string{"Which fits?"})
	for i := 0; i < 50; i++ {
		got, _ := tr.EnsureUnique("Same question", i%2 == 0)
		assert.False(t, tr.Seen(got))
		tr.Mark(got)
		assert.Equal(t, i+1, tr.Len())
	}
}

func TestIsVariant(t *testing.T) {
	t.Parallel()

	assert.True(t, IsVariant("Q? (alt 1)"))
	assert.True(t, IsVariant("How do you lead? (alt 12)"))
	assert.False(t, IsVariant("Q? (alt)"))
	assert.False(t, IsVariant("Q? (alt 1) again"))
}
