package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// QuestionType tags the Question union.
type QuestionType string

// Question types.
const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionOpenEnded      QuestionType = "open-ended"
	QuestionScale          QuestionType = "scale"
	QuestionMostLeast      QuestionType = "most-least-choice"
)

// AllQuestionTypes returns every valid question type.
func AllQuestionTypes() []QuestionType {
	return []QuestionType{QuestionMultipleChoice, QuestionOpenEnded, QuestionScale, QuestionMostLeast}
}

// ParseQuestionType maps loose external spellings onto a QuestionType.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "multiple-choice", "multiple_choice", "multiplechoice", "mc", "choice":
		return QuestionMultipleChoice, true
	case "open-ended", "open_ended", "openended", "open", "text", "":
		return QuestionOpenEnded, true
	case "scale", "rating":
		return QuestionScale, true
	case "most-least-choice", "most_least_choice", "most-least", "most_least", "ranking":
		return QuestionMostLeast, true
	}
	return "", false
}

// Scale bounds accepted for scale questions.
const (
	ScaleMin = 1
	ScaleMax = 10
)

// ScaleInfo describes a numeric rating question.
type ScaleInfo struct {
	Min      int    `json:"min" yaml:"min"`
	Max      int    `json:"max" yaml:"max"`
	MinLabel string `json:"min_label" yaml:"min_label"`
	MaxLabel string `json:"max_label" yaml:"max_label"`
}

// Question is one prompt shown to the user. Options is used by
// multiple-choice and most-least questions; Scale only by scale questions.
// Identity for deduplication is the normalized Text, not an id.
type Question struct {
	Type    QuestionType `json:"type" yaml:"type"`
	Text    string       `json:"text" yaml:"text"`
	Options []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Scale   *ScaleInfo   `json:"scale,omitempty" yaml:"scale,omitempty"`
	// Source records where the question came from: catalog, generator or
	// fallback.
	Source    string `json:"source,omitempty" yaml:"-"`
	Reasoning string `json:"reasoning,omitempty" yaml:"-"`
}

// Question sources.
const (
	SourceCatalog   = "catalog"
	SourceGenerator = "generator"
	SourceFallback  = "fallback"
)

// IsMultipleChoice reports whether the answer is picked from Options.
func (q Question) IsMultipleChoice() bool {
	return q.Type == QuestionMultipleChoice
}

// Validate checks the union shape of q.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return eris.New("question: empty text")
	}
	switch q.Type {
	case QuestionOpenEnded:
		return nil
	case QuestionMultipleChoice:
		if len(nonBlank(q.Options)) < 2 {
			return eris.New("question: multiple-choice needs at least 2 options")
		}
	case QuestionMostLeast:
		if len(nonBlank(q.Options)) < 3 {
			return eris.New("question: most-least needs at least 3 options")
		}
	case QuestionScale:
		if q.Scale == nil {
			return eris.New("question: scale info missing")
		}
		if q.Scale.Min < ScaleMin || q.Scale.Max > ScaleMax || q.Scale.Min >= q.Scale.Max {
			return eris.Errorf("question: scale bounds %d..%d outside %d..%d", q.Scale.Min, q.Scale.Max, ScaleMin, ScaleMax)
		}
	default:
		return eris.Errorf("question: unknown type %q", q.Type)
	}
	return nil
}

func nonBlank(ss []string) []string {
	var out []string
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// MostLeast is the answer to a forced-ranking question.
type MostLeast struct {
	Most  string `json:"most"`
	Least string `json:"least"`
}

// Answer holds a response typed to its question: Text for open-ended,
// Choice for multiple-choice, Scale for scale, Ranking for most-least.
type Answer struct {
	Text    string     `json:"text,omitempty"`
	Choice  string     `json:"choice,omitempty"`
	Scale   int        `json:"scale,omitempty"`
	Ranking *MostLeast `json:"ranking,omitempty"`
}

// CheckAgainst validates that a matches the type and options of q.
func (a Answer) CheckAgainst(q Question) error {
	switch q.Type {
	case QuestionOpenEnded:
		if strings.TrimSpace(a.Text) == "" {
			return eris.Wrap(ErrInvalidAnswer, "open-ended answer is blank")
		}
	case QuestionMultipleChoice:
		if !slices.Contains(q.Options, a.Choice) {
			return eris.Wrapf(ErrInvalidAnswer, "choice %q is not an option", a.Choice)
		}
	case QuestionScale:
		lo, hi := ScaleMin, ScaleMax
		if q.Scale != nil {
			lo, hi = q.Scale.Min, q.Scale.Max
		}
		if a.Scale < lo || a.Scale > hi {
			return eris.Wrapf(ErrInvalidAnswer, "scale value %d outside %d..%d", a.Scale, lo, hi)
		}
	case QuestionMostLeast:
		if a.Ranking == nil {
			return eris.Wrap(ErrInvalidAnswer, "ranking missing")
		}
		if a.Ranking.Most == a.Ranking.Least {
			return eris.Wrap(ErrInvalidAnswer, "most and least must differ")
		}
		if !slices.Contains(q.Options, a.Ranking.Most) || !slices.Contains(q.Options, a.Ranking.Least) {
			return eris.Wrap(ErrInvalidAnswer, "ranking uses an unknown option")
		}
	default:
		return eris.Wrapf(ErrInvalidAnswer, "unknown question type %q", q.Type)
	}
	return nil
}

// Render returns the answer as the plain text used for analysis and scoring.
func (a Answer) Render(q Question) string {
	switch q.Type {
	case QuestionMultipleChoice:
		return a.Choice
	case QuestionScale:
		hi := ScaleMax
		if q.Scale != nil {
			hi = q.Scale.Max
		}
		return strconv.Itoa(a.Scale) + "/" + strconv.Itoa(hi)
	case QuestionMostLeast:
		if a.Ranking == nil {
			return ""
		}
		return fmt.Sprintf("Most like me: %s. Least like me: %s.", a.Ranking.Most, a.Ranking.Least)
	default:
		return strings.TrimSpace(a.Text)
	}
}

// Exchange is one question/answer pair in session order.
type Exchange struct {
	MessageID  string    `json:"message_id"`
	Question   Question  `json:"question"`
	Answer     Answer    `json:"answer"`
	AnsweredAt time.Time `json:"answered_at"`
}

// ResponseText is the rendered answer.
func (e Exchange) ResponseText() string {
	return e.Answer.Render(e.Question)
}
