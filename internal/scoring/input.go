package scoring

import (
	"strings"

	"github.com/sells-group/assessment/internal/model"
)

// Input is what a scorer sees of a finished session.
type Input struct {
	Responses  []string `json:"responses"`
	Transcript string   `json:"conversationContext"`
}

// InputFrom renders exchanges into scoring input. Blank answers are skipped.
func InputFrom(exchanges []model.Exchange) Input {
	var in Input
	var b strings.Builder
	for _, ex := range exchanges {
		answer := ex.ResponseText()
		if answer == "" {
			continue
		}
		in.Responses = append(in.Responses, answer)
		b.WriteString("Q: ")
		b.WriteString(ex.Question.Text)
		b.WriteString("\nA: ")
		b.WriteString(answer)
		b.WriteString("\n\n")
	}
	in.Transcript = strings.TrimSpace(b.String())
	return in
}
