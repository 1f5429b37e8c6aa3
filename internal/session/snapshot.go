package session

import (
	"slices"

	"github.com/sells-group/assessment/internal/model"
)

// Snapshot is a read-only copy of session state for shells.
type Snapshot struct {
	ConversationID string                  `json:"conversation_id"`
	Profile        model.Profile           `json:"profile"`
	Stage          model.Stage             `json:"stage"`
	QuestionsAsked int                     `json:"questions_asked"`
	TotalQuestions int                     `json:"total_questions"`
	Current        *model.Question         `json:"current,omitempty"`
	Pending        bool                    `json:"pending"`
	Complete       bool                    `json:"complete"`
	Exchanges      []model.Exchange        `json:"exchanges"`
	Evaluation     *model.EvaluationResult `json:"evaluation,omitempty"`
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.exchanges)
	s := Snapshot{
		ConversationID: c.id,
		Profile:        c.profile,
		Stage:          model.StageFor(n, c.opts.StructuredQuestions, c.opts.TotalQuestions),
		QuestionsAsked: n,
		TotalQuestions: c.opts.TotalQuestions,
		Pending:        c.pending,
		Complete:       c.started && n >= c.opts.TotalQuestions,
		Exchanges:      slices.Clone(c.exchanges),
	}
	if c.current != nil {
		q := *c.current
		s.Current = &q
	}
	if c.evaluation != nil {
		e := *c.evaluation
		s.Evaluation = &e
	}
	return s
}
