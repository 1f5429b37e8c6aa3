package scoring

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/assessment/internal/model"
)

// FallbackPreset fixes the base score and the clamp band of local scoring.
type FallbackPreset struct {
	Name string
	Base int
	Min  int
	Max  int
}

// Presets for standalone local scoring and for recovery after a delegated
// call failed.
var (
	StandalonePreset = FallbackPreset{Name: "standalone", Base: 55, Min: 35, Max: 95}
	RecoveryPreset   = FallbackPreset{Name: "recovery", Base: 50, Min: 30, Max: 85}
)

// Keyword scoring constants.
const (
	keywordBase     = 3  // points for the first occurrence of a keyword
	keywordMax      = 10 // points one keyword can contribute
	keywordCap      = 30 // points all keywords together can contribute
	longAnswerWords = 40
	longBonus       = 5
	midAnswerWords  = 20
	midBonus        = 3
)

// Fallback scores one dimension locally: base, plus keyword points, plus a
// length bonus, clamped to the preset band. The result depends only on the
// multiset of responses.
func Fallback(dim model.Dimension, in Input, preset FallbackPreset) model.FrameworkScore {
	counts := make(map[string]int)
	var words int
	for _, r := range in.Responses {
		for _, tok := range tokens(r) {
			counts[tok]++
			words++
		}
	}

	var points, matched int
	for _, kw := range dim.Keywords {
		n := counts[strings.ToLower(kw)]
		if n == 0 {
			continue
		}
		matched++
		points += min(keywordBase+n-1, keywordMax)
	}
	points = min(points, keywordCap)

	bonus := 0
	if len(in.Responses) > 0 {
		mean := float64(words) / float64(len(in.Responses))
		switch {
		case mean >= longAnswerWords:
			bonus = longBonus
		case mean >= midAnswerWords:
			bonus = midBonus
		}
	}

	score := model.ClampInt(preset.Base+points+bonus, preset.Min, preset.Max)
	return model.FrameworkScore{
		Key:        dim.Key,
		Label:      dim.Label,
		Score:      score,
		Level:      model.LevelForScore(score),
		Confidence: math.Round(model.ClampFloat(0.4+0.05*float64(matched), 0.4, 0.7)*100) / 100,
		Summary:    fallbackSummary(dim, matched, len(in.Responses)),
		Source:     SourceFallback,
	}
}

func fallbackSummary(dim model.Dimension, matched, responses int) string {
	if matched == 0 {
		return fmt.Sprintf("%s was not discussed directly across %d responses.", dim.Label, responses)
	}
	return fmt.Sprintf("%s came up through %d related themes across %d responses.", dim.Label, matched, responses)
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

// FallbackAll scores every dimension locally.
func FallbackAll(dims []model.Dimension, in Input, preset FallbackPreset) []model.FrameworkScore {
	out := make([]model.FrameworkScore, len(dims))
	for i, d := range dims {
		out[i] = Fallback(d, in, preset)
	}
	return out
}
