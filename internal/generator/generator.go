// Package generator requests adaptive-phase questions from an external
// question generation service and validates replies at the boundary.
package generator

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/assessment/internal/model"
)

// Generator produces the next adaptive question for a session.
type Generator interface {
	Generate(ctx context.Context, req Request) (model.Question, error)
}

// History roles.
const (
	RoleBot  = "bot"
	RoleUser = "user"
)

// HistoryEntry is one turn of the conversation sent to the generator.
type HistoryEntry struct {
	Role         string             `json:"role"`
	Content      string             `json:"content"`
	Timestamp    time.Time          `json:"timestamp"`
	IsQuestion   bool               `json:"isQuestion"`
	QuestionType model.QuestionType `json:"questionType,omitempty"`
}

// Request is the question generation contract.
type Request struct {
	Profile             model.Profile        `json:"profile"`
	ConversationHistory []HistoryEntry       `json:"conversationHistory"`
	QuestionCount       int                  `json:"questionCount"`
	QuestionTypeHistory []model.QuestionType `json:"questionTypeHistory"`
}

// BuildRequest flattens the exchange log into a generation request.
// Questions are stamped with the time they were answered.
func BuildRequest(profile model.Profile, exchanges []model.Exchange) Request {
	req := Request{
		Profile:             profile,
		ConversationHistory: make([]HistoryEntry, 0, 2*len(exchanges)),
		QuestionCount:       len(exchanges),
		QuestionTypeHistory: make([]model.QuestionType, 0, len(exchanges)),
	}
	for _, ex := range exchanges {
		req.ConversationHistory = append(req.ConversationHistory,
			HistoryEntry{
				Role:         RoleBot,
				Content:      ex.Question.Text,
				Timestamp:    ex.AnsweredAt,
				IsQuestion:   true,
				QuestionType: ex.Question.Type,
			},
			HistoryEntry{
				Role:      RoleUser,
				Content:   ex.ResponseText(),
				Timestamp: ex.AnsweredAt,
			},
		)
		req.QuestionTypeHistory = append(req.QuestionTypeHistory, ex.Question.Type)
	}
	return req
}

// Response is the loosely shaped generator reply.
type Response struct {
	Question         string           `json:"question"`
	Type             string           `json:"type"`
	Options          []string         `json:"options,omitempty"`
	MostLeastOptions []string         `json:"most_least_options,omitempty"`
	ScaleInfo        *model.ScaleInfo `json:"scale_info,omitempty"`
	Reasoning        string           `json:"reasoning,omitempty"`
}

// ToQuestion validates the reply against the Question union. Any failure
// wraps model.ErrGenerationMalformed.
func (r Response) ToQuestion() (model.Question, error) {
	text := strings.TrimSpace(r.Question)
	if text == "" {
		return model.Question{}, eris.Wrap(model.ErrGenerationMalformed, "generator: missing question")
	}
	qt, ok := model.ParseQuestionType(r.Type)
	if !ok {
		return model.Question{}, eris.Wrapf(model.ErrGenerationMalformed, "generator: unknown type %q", r.Type)
	}

	q := model.Question{
		Type:      qt,
		Text:      text,
		Source:    model.SourceGenerator,
		Reasoning: strings.TrimSpace(r.Reasoning),
	}
	switch qt {
	case model.QuestionMultipleChoice:
		q.Options = trimAll(r.Options)
	case model.QuestionMostLeast:
		q.Options = trimAll(r.MostLeastOptions)
		if len(q.Options) == 0 {
			q.Options = trimAll(r.Options)
		}
	case model.QuestionScale:
		if r.ScaleInfo != nil {
			s := *r.ScaleInfo
			q.Scale = &s
		}
	}

	if err := q.Validate(); err != nil {
		return model.Question{}, eris.Wrapf(model.ErrGenerationMalformed, "generator: %v", err)
	}
	return q, nil
}

func trimAll(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
