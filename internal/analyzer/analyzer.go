// Package analyzer extracts sentiment, quality, insight and pattern signals
// from free-text answers using fixed word lists.
package analyzer

import (
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/sells-group/assessment/internal/catalog"
	"github.com/sells-group/assessment/internal/model"
)

// numberTerm in a weighted list matches any token containing a digit.
const numberTerm = "<number>"

// saturation is the number of distinct list hits that yields a match rate
// of 1.
const saturation = 3

// Analyzer is stateless after construction and safe for concurrent use.
type Analyzer struct {
	lex  catalog.Lexicon
	dims []model.Dimension
}

// New builds an Analyzer over the lexicon and the dimensions whose keywords
// define key themes.
func New(lex catalog.Lexicon, dims []model.Dimension) *Analyzer {
	return &Analyzer{lex: lex, dims: dims}
}

// text is one tokenized answer.
type text struct {
	tokens []string
	set    map[string]bool
	// padded is the space-joined token stream with a leading and trailing
	// space, used for multi-word terms.
	padded    string
	sentences int
}

func tokenize(s string) text {
	fields := strings.Fields(strings.ToLower(s))
	t := text{set: make(map[string]bool, len(fields))}
	for _, f := range fields {
		tok := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tok == "" {
			continue
		}
		t.tokens = append(t.tokens, tok)
		t.set[tok] = true
	}
	t.padded = " " + strings.Join(t.tokens, " ") + " "
	for _, seg := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.ContainsFunc(seg, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
			t.sentences++
		}
	}
	if t.sentences == 0 && len(t.tokens) > 0 {
		t.sentences = 1
	}
	return t
}

func (t text) has(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	if term == numberTerm {
		return slices.ContainsFunc(t.tokens, func(tok string) bool {
			return strings.ContainsFunc(tok, unicode.IsDigit)
		})
	}
	if strings.Contains(term, " ") {
		return strings.Contains(t.padded, " "+term+" ")
	}
	return t.set[term]
}

// matches returns the distinct terms of list present in t, sorted.
func (t text) matches(list []string) []string {
	var out []string
	for _, term := range list {
		if t.has(term) {
			out = append(out, strings.ToLower(strings.TrimSpace(term)))
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (t text) rate(list []string) float64 {
	return model.ClampFloat(float64(len(t.matches(list)))/saturation, 0, 1)
}

func (t text) weighted(weights map[string]float64) float64 {
	var sum float64
	for term, w := range weights {
		if t.has(term) {
			sum += w
		}
	}
	return sum
}

// Analyze returns the ResponseMemory for one answer. MessageID is left for
// the caller to set.
func (a *Analyzer) Analyze(answer string) model.ResponseMemory {
	t := tokenize(answer)

	sent := model.Sentiment{
		Confidence:  model.ClampFloat(t.rate(a.lex.Confidence)-t.rate(a.lex.Uncertainty), 0, 1),
		Uncertainty: t.rate(a.lex.Uncertainty),
		Passion:     t.rate(a.lex.Passion),
		Resistance:  t.rate(a.lex.Resistance),
	}

	quality := model.QualityMetrics{
		Depth:        model.ClampInt(len(t.tokens)/20+1, 1, 5),
		Specificity:  model.ClampInt(1+int(math.Round(t.weighted(a.lex.Specificity))), 1, 5),
		Authenticity: model.ClampInt(1+int(math.Round(t.weighted(a.lex.Authenticity))), 1, 5),
		Coherence:    coherence(t),
	}

	mem := model.ResponseMemory{
		Sentiment:      sent,
		QualityMetrics: quality,
		Insights: model.Insights{
			KeyThemes:      a.themes(t),
			Contradictions: a.contradictions(t),
			Strengths:      t.matches(a.lex.Strengths),
			Gaps:           t.matches(a.lex.Gaps),
		},
		Patterns: model.Patterns{
			ResponseLength:       len(t.tokens),
			VocabularyComplexity: complexity(t),
			EmotionalWords:       t.matches(a.lex.Emotional),
			StyleIndicators:      t.matches(a.lex.StyleIndicators),
		},
	}
	mem.FollowUpNeeded = quality.Depth <= 2 || quality.Specificity <= 2 ||
		sent.Uncertainty > 0.7 || sent.Resistance > 0.6
	return mem
}

func coherence(t text) int {
	if t.sentences == 0 {
		return 3
	}
	avg := float64(len(t.tokens)) / float64(t.sentences)
	if avg > 5 && avg < 25 {
		return 5
	}
	return 3
}

func complexity(t text) float64 {
	if len(t.tokens) == 0 {
		return 0
	}
	return float64(len(t.set)) / float64(len(t.tokens))
}

func (a *Analyzer) themes(t text) []string {
	var out []string
	for _, d := range a.dims {
		if len(t.matches(d.Keywords)) > 0 {
			out = append(out, d.Key)
		}
	}
	slices.Sort(out)
	return out
}

func (a *Analyzer) contradictions(t text) []string {
	var out []string
	if len(t.matches(a.lex.Contrastive)) > 0 {
		out = append(out, model.ContradictionContrastive)
	}
	for _, pair := range a.lex.AbsolutePairs {
		if len(pair) == 2 && t.has(pair[0]) && t.has(pair[1]) {
			out = append(out, model.ContradictionAbsolute)
			break
		}
	}
	slices.Sort(out)
	return out
}
