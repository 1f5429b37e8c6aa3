// Package catalog holds the static assessment data: structured question
// templates, fallback question pools, leadership dimensions and the word
// lists used by the response analyzer.
package catalog

import (
	_ "embed"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/assessment/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Dimension count bounds accepted by Dimensions.
const (
	MinDimensions = 4
	MaxDimensions = 12
)

// Template is a question whose text may contain profile placeholders.
type Template struct {
	Type    model.QuestionType `yaml:"type"`
	Text    string             `yaml:"text"`
	Options []string           `yaml:"options"`
	Scale   *model.ScaleInfo   `yaml:"scale"`
}

// DedupFallbacks are generic prompts used when a candidate question repeats.
type DedupFallbacks struct {
	OpenEnded      []string `yaml:"open_ended"`
	MultipleChoice []string `yaml:"multiple_choice"`
}

// Lexicon holds the analyzer word lists. Weighted lists map a term to its
// contribution; the "<number>" term matches any token containing a digit.
type Lexicon struct {
	Confidence      []string           `yaml:"confidence"`
	Uncertainty     []string           `yaml:"uncertainty"`
	Passion         []string           `yaml:"passion"`
	Resistance      []string           `yaml:"resistance"`
	Specificity     map[string]float64 `yaml:"specificity"`
	Authenticity    map[string]float64 `yaml:"authenticity"`
	Strengths       []string           `yaml:"strengths"`
	Gaps            []string           `yaml:"gaps"`
	Emotional       []string           `yaml:"emotional"`
	StyleIndicators []string           `yaml:"style_indicators"`
	Contrastive     []string           `yaml:"contrastive"`
	AbsolutePairs   [][]string         `yaml:"absolute_pairs"`
}

// Catalog is the parsed catalog file.
type Catalog struct {
	StructuredTemplates []Template        `yaml:"structured"`
	FallbackTemplates   []Template        `yaml:"fallback_pool"`
	DedupFallbacks      DedupFallbacks    `yaml:"dedup_fallbacks"`
	AllDimensions       []model.Dimension `yaml:"dimensions"`
	Lexicon             Lexicon           `yaml:"lexicon"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustLoad is Load for package-level defaults and tests.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile parses a catalog override from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var wrapper struct {
		Catalog Catalog `yaml:"catalog"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "catalog: parse")
	}
	c := &wrapper.Catalog
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	if len(c.StructuredTemplates) == 0 {
		return eris.New("catalog: no structured questions")
	}
	if len(c.FallbackTemplates) == 0 {
		return eris.New("catalog: empty fallback pool")
	}
	if len(c.DedupFallbacks.OpenEnded) == 0 || len(c.DedupFallbacks.MultipleChoice) == 0 {
		return eris.New("catalog: dedup fallbacks must cover open-ended and multiple-choice")
	}
	if len(c.AllDimensions) < MinDimensions {
		return eris.Errorf("catalog: need at least %d dimensions, got %d", MinDimensions, len(c.AllDimensions))
	}

	sample := BuildValues(model.Profile{Position: "p", Role: "r", TeamSize: 1})
	for i, t := range append(slices.Clone(c.StructuredTemplates), c.FallbackTemplates...) {
		if err := t.Render(sample).Validate(); err != nil {
			return eris.Wrapf(err, "catalog: template %d", i)
		}
	}

	seen := make(map[string]bool, len(c.AllDimensions))
	for _, d := range c.AllDimensions {
		if d.Key == "" || seen[d.Key] {
			return eris.Errorf("catalog: blank or duplicate dimension key %q", d.Key)
		}
		seen[d.Key] = true
	}
	return nil
}

// Render substitutes profile values into the template.
func (t Template) Render(values Values) model.Question {
	q := model.Question{
		Type: t.Type,
		Text: values.Apply(t.Text),
	}
	if len(t.Options) > 0 {
		q.Options = make([]string, len(t.Options))
		for i, o := range t.Options {
			q.Options[i] = values.Apply(o)
		}
	}
	if t.Scale != nil {
		s := *t.Scale
		q.Scale = &s
	}
	return q
}

// Structured returns structured question i rendered for the profile values.
// The index wraps if the configured structured phase is longer than the
// catalog.
func (c *Catalog) Structured(i int, values Values) model.Question {
	q := c.StructuredTemplates[i%len(c.StructuredTemplates)].Render(values)
	q.Source = model.SourceCatalog
	return q
}

// Fallback returns the fallback-pool question keyed by count % pool size.
func (c *Catalog) Fallback(count int, values Values) model.Question {
	n := len(c.FallbackTemplates)
	q := c.FallbackTemplates[((count%n)+n)%n].Render(values)
	q.Source = model.SourceFallback
	return q
}

// FallbackPoolSize is the number of fallback questions.
func (c *Catalog) FallbackPoolSize() int {
	return len(c.FallbackTemplates)
}

// DedupPrompts returns the generic prompts for the question kind.
func (c *Catalog) DedupPrompts(isMultipleChoice bool) []string {
	if isMultipleChoice {
		return c.DedupFallbacks.MultipleChoice
	}
	return c.DedupFallbacks.OpenEnded
}

// Dimensions returns the configured subset in catalog order. An empty key
// list selects every dimension.
func (c *Catalog) Dimensions(keys []string) ([]model.Dimension, error) {
	if len(keys) == 0 {
		if len(c.AllDimensions) > MaxDimensions {
			return slices.Clone(c.AllDimensions[:MaxDimensions]), nil
		}
		return slices.Clone(c.AllDimensions), nil
	}

	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	var out []model.Dimension
	for _, d := range c.AllDimensions {
		if want[d.Key] {
			out = append(out, d)
			delete(want, d.Key)
		}
	}
	if len(want) > 0 {
		var unknown []string
		for k := range want {
			unknown = append(unknown, k)
		}
		slices.Sort(unknown)
		return nil, eris.Errorf("catalog: unknown dimensions %v", unknown)
	}
	if len(out) < MinDimensions || len(out) > MaxDimensions {
		return nil, eris.Errorf("catalog: %d dimensions selected, want %d-%d", len(out), MinDimensions, MaxDimensions)
	}
	return out, nil
}
