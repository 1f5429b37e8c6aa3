package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/assessment/internal/resilience"
	"github.com/sells-group/assessment/internal/session"
)

// Recorder persists session events. Writes are retried on transient
// errors; the last error is returned to the controller.
type Recorder struct {
	store Store
	retry resilience.RetryConfig
}

// NewRecorder creates a Recorder writing to s.
func NewRecorder(s Store, retry resilience.RetryConfig) *Recorder {
	return &Recorder{store: s, retry: retry}
}

// Handle implements session.Listener.
func (r *Recorder) Handle(ctx context.Context, ev session.Event) error {
	switch ev.Type {
	case session.EventAnswerRecorded:
		if ev.Exchange == nil {
			return nil
		}
		rec := RecordFor(ev.QuestionCount-1, *ev.Exchange)
		if err := r.do(ctx, "append_exchange", func(ctx context.Context) error {
			return r.store.AppendExchange(ctx, ev.ConversationID, rec)
		}); err != nil {
			return err
		}
		if ev.Memory == nil {
			return nil
		}
		return r.do(ctx, "append_memory", func(ctx context.Context) error {
			return r.store.AppendResponseMemory(ctx, ev.ConversationID, rec.MessageID, *ev.Memory)
		})

	case session.EventAnswerRetracted:
		return r.do(ctx, "truncate_exchanges", func(ctx context.Context) error {
			return r.store.TruncateExchanges(ctx, ev.ConversationID, ev.QuestionCount)
		})

	case session.EventEvaluationReady:
		if ev.Evaluation == nil {
			return nil
		}
		err := r.do(ctx, "save_evaluation", func(ctx context.Context) error {
			return r.store.SaveEvaluation(ctx, ev.UserID, ev.ConversationID, *ev.Evaluation)
		})
		if err != nil {
			return err
		}
		zap.L().Info("store: evaluation saved",
			zap.String("conversation_id", ev.ConversationID),
			zap.String("mode", ev.Evaluation.Mode),
			zap.Float64("average_score", ev.Evaluation.AverageScore),
		)
	}
	return nil
}

func (r *Recorder) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cfg := r.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("store", op)
	}
	return eris.Wrapf(resilience.Do(ctx, cfg, fn), "store: %s", op)
}
