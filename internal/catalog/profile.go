package catalog

import (
	"strconv"
	"strings"

	"github.com/sells-group/assessment/internal/model"
)

// DefaultMotivation fills {motivation} when the intake left it blank.
const DefaultMotivation = "helping others succeed"

// Values are the template substitutions derived from a profile.
type Values map[string]string

// BuildValues maps intake fields onto template placeholders.
func BuildValues(p model.Profile) Values {
	motivation := strings.TrimSpace(p.Motivation)
	if motivation == "" {
		motivation = DefaultMotivation
	}
	return Values{
		"position":   strings.TrimSpace(p.Position),
		"role":       strings.TrimSpace(p.Role),
		"teamSize":   strconv.Itoa(p.TeamSize),
		"motivation": motivation,
	}
}

// Apply replaces every {key} placeholder in text. Unknown placeholders are
// left untouched.
func (v Values) Apply(text string) string {
	if len(v) == 0 || !strings.Contains(text, "{") {
		return text
	}
	pairs := make([]string, 0, len(v)*2)
	for k, val := range v {
		pairs = append(pairs, "{"+k+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
