package scoring

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sells-group/assessment/internal/model"
)

// Persona bands, highest first.
var personaBands = []struct {
	floor float64
	label string
}{
	{85, "Transformational Leader"},
	{75, "Strategic Leader"},
	{65, "Emerging Strategic Leader"},
	{55, "Developing Leader"},
	{45, "Foundational Leader"},
	{math.Inf(-1), "Aspiring Leader"},
}

// PersonaFor maps an average score to a persona label. The mapping is
// monotonic in avg.
func PersonaFor(avg float64) string {
	for _, b := range personaBands {
		if avg >= b.floor {
			return b.label
		}
	}
	return personaBands[len(personaBands)-1].label
}

// Personas returns every label from lowest to highest band.
func Personas() []string {
	out := make([]string, len(personaBands))
	for i, b := range personaBands {
		out[len(out)-1-i] = b.label
	}
	return out
}

// Average is the mean framework score rounded to one decimal.
func Average(scores []model.FrameworkScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum int
	for _, s := range scores {
		sum += s.Score
	}
	return math.Round(float64(sum)/float64(len(scores))*10) / 10
}

// Extremes returns up to n labels of the highest and the lowest scoring
// dimensions. Ties keep catalog order.
func Extremes(scores []model.FrameworkScore, n int) (top, bottom []string) {
	ranked := slices.Clone(scores)
	slices.SortStableFunc(ranked, func(a, b model.FrameworkScore) int { return b.Score - a.Score })
	for i := 0; i < n && i < len(ranked); i++ {
		top = append(top, ranked[i].Label)
	}

	slices.SortStableFunc(ranked, func(a, b model.FrameworkScore) int { return a.Score - b.Score })
	for i := 0; i < n && i < len(ranked); i++ {
		bottom = append(bottom, ranked[i].Label)
	}
	return top, bottom
}

// ComposeOverall builds the templated persona and summary.
func ComposeOverall(scores []model.FrameworkScore) model.Overall {
	avg := Average(scores)
	top, bottom := Extremes(scores, 3)
	return model.Overall{
		Persona: PersonaFor(avg),
		Summary: fmt.Sprintf("Average score %.0f across %d dimensions. Strongest in %s. Most room to grow in %s.",
			avg, len(scores), joinLabels(top), joinLabels(bottom)),
	}
}

func joinLabels(labels []string) string {
	switch len(labels) {
	case 0:
		return "no dimension"
	case 1:
		return labels[0]
	default:
		return strings.Join(labels[:len(labels)-1], ", ") + " and " + labels[len(labels)-1]
	}
}
