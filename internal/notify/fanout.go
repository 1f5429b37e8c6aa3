package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/assessment/internal/session"
)

// Fanout delivers every event to each listener in order and joins their
// errors. Nil listeners are skipped.
type Fanout []session.Listener

// Handle implements session.Listener.
func (f Fanout) Handle(ctx context.Context, ev session.Event) error {
	var errs []error
	for _, l := range f {
		if l == nil {
			continue
		}
		if err := l.Handle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BestEffort wraps a listener whose failures must not fail the session.
// Errors are logged and dropped.
func BestEffort(l session.Listener) session.Listener {
	return session.ListenerFunc(func(ctx context.Context, ev session.Event) error {
		if err := l.Handle(ctx, ev); err != nil {
			zap.L().Warn("notify: listener failed",
				zap.String("conversation_id", ev.ConversationID),
				zap.String("event", string(ev.Type)),
				zap.Error(err),
			)
		}
		return nil
	})
}
