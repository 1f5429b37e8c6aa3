package session

import (
	"context"
	"time"

	"github.com/sells-group/assessment/internal/model"
)

// EventType names a session signal.
type EventType string

// Session signals.
const (
	EventQuestionReady   EventType = "question_ready"
	EventAnswerRecorded  EventType = "answer_recorded"
	EventAnswerRetracted EventType = "answer_retracted"
	EventSessionComplete EventType = "session_complete"
	EventEvaluationReady EventType = "evaluation_ready"
)

// Event is emitted after the controller's state changed. Pointer fields are
// set only for the events they belong to: Question for question_ready,
// Exchange and Memory for answer_recorded, Evaluation for evaluation_ready.
type Event struct {
	Type           EventType               `json:"type"`
	ConversationID string                  `json:"conversation_id"`
	UserID         string                  `json:"user_id,omitempty"`
	QuestionCount  int                     `json:"question_count"`
	Stage          model.Stage             `json:"stage"`
	Question       *model.Question         `json:"question,omitempty"`
	Exchange       *model.Exchange         `json:"exchange,omitempty"`
	Memory         *model.ResponseMemory   `json:"memory,omitempty"`
	Evaluation     *model.EvaluationResult `json:"evaluation,omitempty"`
	At             time.Time               `json:"at"`
}

// Listener receives session events. Errors from evaluation_ready are
// terminal and surface from Controller.Evaluate; all others are logged.
type Listener interface {
	Handle(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event) error

// Handle calls f.
func (f ListenerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
