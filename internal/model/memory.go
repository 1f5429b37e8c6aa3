package model

// Sentiment scores, each in [0,1].
type Sentiment struct {
	Confidence  float64 `json:"confidence"`
	Uncertainty float64 `json:"uncertainty"`
	Passion     float64 `json:"passion"`
	Resistance  float64 `json:"resistance"`
}

// QualityMetrics are integer ratings in [1,5].
type QualityMetrics struct {
	Depth        int `json:"depth"`
	Specificity  int `json:"specificity"`
	Authenticity int `json:"authenticity"`
	Coherence    int `json:"coherence"`
}

// Contradiction flags.
const (
	ContradictionContrastive = "contrastive-connective"
	ContradictionAbsolute    = "absolute-terms"
)

// Insights are the sets extracted from one answer. Slices are sorted and
// free of duplicates.
type Insights struct {
	KeyThemes      []string `json:"key_themes"`
	Contradictions []string `json:"contradictions"`
	Strengths      []string `json:"strengths"`
	Gaps           []string `json:"gaps"`
}

// Patterns are surface statistics of one answer.
type Patterns struct {
	ResponseLength       int      `json:"response_length"`
	VocabularyComplexity float64  `json:"vocabulary_complexity"`
	EmotionalWords       []string `json:"emotional_words"`
	StyleIndicators      []string `json:"style_indicators"`
}

// ResponseMemory is the write-once analysis of one free-text answer.
type ResponseMemory struct {
	MessageID      string         `json:"message_id,omitempty"`
	Sentiment      Sentiment      `json:"sentiment"`
	QualityMetrics QualityMetrics `json:"quality_metrics"`
	Insights       Insights       `json:"insights"`
	Patterns       Patterns       `json:"patterns"`
	FollowUpNeeded bool           `json:"follow_up_needed"`
}

// ConversationInsights aggregates every ResponseMemory of a session.
// SuggestedDirection is an external-facing hint only.
type ConversationInsights struct {
	Responses          int     `json:"responses"`
	MeanDepth          float64 `json:"mean_depth"`
	MeanLength         float64 `json:"mean_length"`
	Engagement         string  `json:"engagement"`
	DominantSentiment  string  `json:"dominant_sentiment"`
	CommunicationStyle string  `json:"communication_style"`
	SuggestedDirection string  `json:"suggested_direction"`
}
