package store

import (
	"context"
	"time"

	"github.com/sells-group/assessment/internal/model"
)

// ExchangeRecord is one persisted question and answer. Seq is the
// zero-based position of the exchange within its conversation.
type ExchangeRecord struct {
	Seq        int            `json:"seq"`
	MessageID  string         `json:"message_id"`
	Question   model.Question `json:"question"`
	Answer     model.Answer   `json:"answer"`
	Response   string         `json:"response"`
	AnsweredAt time.Time      `json:"answered_at"`
}

// RecordFor builds the record of exchange ex at position seq.
func RecordFor(seq int, ex model.Exchange) ExchangeRecord {
	return ExchangeRecord{
		Seq:        seq,
		MessageID:  ex.MessageID,
		Question:   ex.Question,
		Answer:     ex.Answer,
		Response:   ex.ResponseText(),
		AnsweredAt: ex.AnsweredAt,
	}
}

// Exchange converts the record back to the session model.
func (r ExchangeRecord) Exchange() model.Exchange {
	return model.Exchange{
		MessageID:  r.MessageID,
		Question:   r.Question,
		Answer:     r.Answer,
		AnsweredAt: r.AnsweredAt,
	}
}

// Store defines the persistence interface for assessment conversations.
type Store interface {
	// Exchanges. AppendExchange replaces any record already at the same seq.
	AppendExchange(ctx context.Context, conversationID string, rec ExchangeRecord) error
	// TruncateExchanges keeps the first keep exchanges of a conversation and
	// drops the rest along with their response memories.
	TruncateExchanges(ctx context.Context, conversationID string, keep int) error
	ListExchanges(ctx context.Context, conversationID string) ([]ExchangeRecord, error)

	// Response memories
	AppendResponseMemory(ctx context.Context, conversationID, messageID string, mem model.ResponseMemory) error
	ListResponseMemories(ctx context.Context, conversationID string) ([]model.ResponseMemory, error)

	// Evaluations. GetEvaluation returns model.ErrNotFound for unknown keys.
	SaveEvaluation(ctx context.Context, userID, conversationID string, res model.EvaluationResult) error
	GetEvaluation(ctx context.Context, userID, conversationID string) (*model.EvaluationResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
