package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/assessment/internal/catalog"
	"github.com/sells-group/assessment/internal/model"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	c := catalog.MustLoad()
	return New(c.Lexicon, c.AllDimensions)
}

func TestAnalyzeContradictions(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)

	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{"absolute pair", "I always succeed and I never fail at anything", []string{model.ContradictionAbsolute}},
		{"contrastive connective", "I want to delegate more but I keep doing the work myself.", []string{model.ContradictionContrastive}},
		{"multi-word absolute pair", "Everyone trusts me, yet no one follows up.", []string{model.ContradictionAbsolute}},
		{"both", "I always listen, however I never change my mind.", []string{model.ContradictionAbsolute, model.ContradictionContrastive}},
		{"none", "I listen to my team every week.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mem := a.Analyze(tt.answer)
			assert.Equal(t, tt.want, mem.Insights.Contradictions)
		})
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)

	confident := a.Analyze("I am confident and certain. I definitely know my team.")
	assert.InDelta(t, 1.0, confident.Sentiment.Confidence, 1e-9)
	assert.Zero(t, confident.Sentiment.Uncertainty)

	unsure := a.Analyze("Maybe I am not sure, perhaps I guess.")
	assert.InDelta(t, 1.0, unsure.Sentiment.Uncertainty, 1e-9)
	assert.Zero(t, unsure.Sentiment.Confidence)
	assert.True(t, unsure.FollowUpNeeded)

	passion := a.Analyze("I love this work and I am proud of it.")
	assert.InDelta(t, 2.0/3, passion.Sentiment.Passion, 1e-9)

	for _, m := range []model.ResponseMemory{confident, unsure, passion} {
		for _, v := range []float64{m.Sentiment.Confidence, m.Sentiment.Uncertainty, m.Sentiment.Passion, m.Sentiment.Resistance} {
			assert.True(t, v >= 0 && v <= 1)
		}
	}
}

func TestAnalyzeQuality(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)

	t.Run("depth from word count", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 1, a.Analyze(strings.Repeat("word ", 19)).QualityMetrics.Depth)
		assert.Equal(t, 3, a.Analyze(strings.Repeat("word ", 45)).QualityMetrics.Depth)
		assert.Equal(t, 5, a.Analyze(strings.Repeat("word ", 200)).QualityMetrics.Depth)
	})

	t.Run("specificity from weighted terms", func(t *testing.T) {
		t.Parallel()
		mem := a.Analyze("For example, last quarter we cut churn by 12 percent.")
		assert.Equal(t, 5, mem.QualityMetrics.Specificity)
		assert.Equal(t, 1, a.Analyze("Things went fine.").QualityMetrics.Specificity)
	})

	t.Run("coherence from sentence length", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 5, a.Analyze("For example, last quarter we cut churn by 12 percent.").QualityMetrics.Coherence)
		assert.Equal(t, 3, a.Analyze("Yes.").QualityMetrics.Coherence)
		assert.Equal(t, 3, a.Analyze("").QualityMetrics.Coherence)
	})

	t.Run("blank segments are not sentences", func(t *testing.T) {
		t.Parallel()
		for _, s := range []string{
			"I coach my team every single week.",
			"I coach my team every single week. ",
			"I coach my team every week.\nWe review goals together every Friday.\n",
			"I coach my team every single week. . .",
		} {
			assert.Equal(t, 5, a.Analyze(s).QualityMetrics.Coherence, "%q", s)
		}
	})

	t.Run("bounds", func(t *testing.T) {
		t.Parallel()
		for _, s := range []string{"", "ok", strings.Repeat("honestly I felt my mistake ", 40)} {
			q := a.Analyze(s).QualityMetrics
			for _, v := range []int{q.Depth, q.Specificity, q.Authenticity, q.Coherence} {
				assert.True(t, v >= 1 && v <= 5, "value %d out of range for %q", v, s)
			}
		}
	})
}

func TestAnalyzeInsightsAndPatterns(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)

	mem := a.Analyze("I coach and mentor my team")
	assert.Equal(t, []string{"collaboration", "team-development"}, mem.Insights.KeyThemes)
	assert.Equal(t, []string{"coach", "mentor"}, mem.Patterns.StyleIndicators)
	assert.Equal(t, 6, mem.Patterns.ResponseLength)

	mixed := a.Analyze("I delivered results but struggled with a difficult hire")
	assert.Equal(t, []string{"delivered"}, mixed.Insights.Strengths)
	assert.Equal(t, []string{"difficult", "struggled"}, mixed.Insights.Gaps)

	assert.InDelta(t, 0.25, a.Analyze("the the the the").Patterns.VocabularyComplexity, 1e-9)
	assert.Zero(t, a.Analyze("").Patterns.VocabularyComplexity)
}

func TestAnalyzeFollowUp(t *testing.T) {
	t.Parallel()
	a := newTestAnalyzer(t)

	assert.True(t, a.Analyze("Fine.").FollowUpNeeded)

	rich := "For example, last quarter I realized my team of 12 was overloaded. " +
		"Honestly I felt I had made a mistake, so we measured every request, " +
		"because the result mattered. Specifically we cut the backlog by 40 percent " +
		"and I learned to ask for help sooner. The team responded well and we " +
		"kept the metric visible every week after that so nothing slipped again."
	mem := a.Analyze(rich)
	assert.GreaterOrEqual(t, mem.QualityMetrics.Depth, 3)
	assert.GreaterOrEqual(t, mem.QualityMetrics.Specificity, 3)
	assert.False(t, mem.FollowUpNeeded)
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		got := Aggregate(nil)
		assert.Equal(t, EngagementLow, got.Engagement)
		assert.Equal(t, SentimentNeutral, got.DominantSentiment)
		assert.Equal(t, StyleConversational, got.CommunicationStyle)
		assert.Zero(t, got.Responses)
	})

	t.Run("engaged and confident", func(t *testing.T) {
		t.Parallel()
		mems := []model.ResponseMemory{
			memory(4, 80, 0.8, 0.8, 0.1, 0.5),
			memory(5, 90, 0.85, 0.6, 0.0, 0.4),
		}
		got := Aggregate(mems)
		assert.Equal(t, 2, got.Responses)
		assert.InDelta(t, 4.5, got.MeanDepth, 1e-9)
		assert.InDelta(t, 85, got.MeanLength, 1e-9)
		assert.Equal(t, EngagementHigh, got.Engagement)
		assert.Equal(t, SentimentConfident, got.DominantSentiment)
		assert.Equal(t, StyleAnalytical, got.CommunicationStyle)
		assert.Equal(t, DirectionBroadenScope, got.SuggestedDirection)
	})

	t.Run("short and uncertain", func(t *testing.T) {
		t.Parallel()
		got := Aggregate([]model.ResponseMemory{memory(1, 10, 0.5, 0.1, 0.9, 0.0)})
		assert.Equal(t, EngagementLow, got.Engagement)
		assert.Equal(t, SentimentUncertain, got.DominantSentiment)
		assert.Equal(t, StyleConversational, got.CommunicationStyle)
		assert.Equal(t, DirectionBuildConfidence, got.SuggestedDirection)
	})

	t.Run("moderate and passionate", func(t *testing.T) {
		t.Parallel()
		got := Aggregate([]model.ResponseMemory{memory(3, 40, 0.6, 0.2, 0.1, 0.7)})
		assert.Equal(t, EngagementModerate, got.Engagement)
		assert.Equal(t, SentimentPassionate, got.DominantSentiment)
		assert.Equal(t, StyleBalanced, got.CommunicationStyle)
		assert.Equal(t, DirectionBroadenScope, got.SuggestedDirection)
	})

	t.Run("order independent", func(t *testing.T) {
		t.Parallel()
		a := memory(2, 20, 0.5, 0.3, 0.2, 0.1)
		b := memory(4, 70, 0.9, 0.1, 0.6, 0.2)
		assert.Equal(t, Aggregate([]model.ResponseMemory{a, b}), Aggregate([]model.ResponseMemory{b, a}))
	})
}

func memory(depth, length int, complexity, conf, unc, passion float64) model.ResponseMemory {
	return model.ResponseMemory{
		Sentiment:      model.Sentiment{Confidence: conf, Uncertainty: unc, Passion: passion},
		QualityMetrics: model.QualityMetrics{Depth: depth, Specificity: 3, Authenticity: 3, Coherence: 5},
		Patterns:       model.Patterns{ResponseLength: length, VocabularyComplexity: complexity},
	}
}
