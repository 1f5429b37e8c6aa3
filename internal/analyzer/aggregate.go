package analyzer

import (
	"github.com/sells-group/assessment/internal/model"
)

// Engagement labels.
const (
	EngagementHigh     = "high"
	EngagementModerate = "moderate"
	EngagementLow      = "low"
)

// Dominant sentiment labels.
const (
	SentimentConfident  = "confident"
	SentimentUncertain  = "uncertain"
	SentimentPassionate = "passionate"
	SentimentNeutral    = "neutral"
)

// Communication style labels.
const (
	StyleAnalytical     = "analytical"
	StyleBalanced       = "balanced"
	StyleConversational = "conversational"
)

// Suggested directions.
const (
	DirectionBuildConfidence   = "build-confidence"
	DirectionProbeDeeper       = "probe-deeper"
	DirectionExploreMotivation = "explore-motivation"
	DirectionBroadenScope      = "broaden-scope"
)

// Thresholds for the conversation-level labels.
const (
	highDepth          = 3.5
	highLength         = 60.0
	moderateDepth      = 2.0
	moderateLength     = 30.0
	dominantFloor      = 0.3
	analyticalFloor    = 0.75
	balancedFloor      = 0.55
	uncertaintyCeiling = 0.5
	shallowDepth       = 2.5
)

// Aggregate summarizes every ResponseMemory of a session. Input order does
// not affect the result.
func Aggregate(memories []model.ResponseMemory) model.ConversationInsights {
	out := model.ConversationInsights{
		Responses:          len(memories),
		Engagement:         EngagementLow,
		DominantSentiment:  SentimentNeutral,
		CommunicationStyle: StyleConversational,
		SuggestedDirection: DirectionProbeDeeper,
	}
	if len(memories) == 0 {
		return out
	}

	var depth, length, complexity, conf, unc, passion float64
	for _, m := range memories {
		depth += float64(m.QualityMetrics.Depth)
		length += float64(m.Patterns.ResponseLength)
		complexity += m.Patterns.VocabularyComplexity
		conf += m.Sentiment.Confidence
		unc += m.Sentiment.Uncertainty
		passion += m.Sentiment.Passion
	}
	n := float64(len(memories))
	depth /= n
	length /= n
	complexity /= n
	conf /= n
	unc /= n
	passion /= n

	out.MeanDepth = depth
	out.MeanLength = length
	out.Engagement = engagement(depth, length)
	out.DominantSentiment = dominant(conf, unc, passion)
	out.CommunicationStyle = style(complexity)
	out.SuggestedDirection = direction(depth, unc, passion)
	return out
}

func engagement(depth, length float64) string {
	switch {
	case depth >= highDepth && length >= highLength:
		return EngagementHigh
	case depth >= moderateDepth || length >= moderateLength:
		return EngagementModerate
	default:
		return EngagementLow
	}
}

// dominant picks the highest mean; ties resolve confident, uncertain,
// passionate in that order.
func dominant(conf, unc, passion float64) string {
	label, best := SentimentConfident, conf
	if unc > best {
		label, best = SentimentUncertain, unc
	}
	if passion > best {
		label, best = SentimentPassionate, passion
	}
	if best < dominantFloor {
		return SentimentNeutral
	}
	return label
}

func style(complexity float64) string {
	switch {
	case complexity > analyticalFloor:
		return StyleAnalytical
	case complexity >= balancedFloor:
		return StyleBalanced
	default:
		return StyleConversational
	}
}

func direction(depth, unc, passion float64) string {
	switch {
	case unc > uncertaintyCeiling:
		return DirectionBuildConfidence
	case depth < shallowDepth:
		return DirectionProbeDeeper
	case passion < dominantFloor:
		return DirectionExploreMotivation
	default:
		return DirectionBroadenScope
	}
}
