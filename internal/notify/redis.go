// Package notify publishes session signals to Redis pub/sub so UI shells
// can react to a ready question or a finished session.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/assessment/internal/session"
)

// DefaultPrefix namespaces channels when none is configured.
const DefaultPrefix = "assessment"

// Publisher is the subset of a go-redis client used here. *redis.Client,
// *redis.ClusterClient and *redis.Ring satisfy it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher implements session.Listener by publishing events as JSON
// on "<prefix>:<conversationID>".
type RedisPublisher struct {
	client Publisher
	prefix string
	events []session.EventType
}

// Option configures a RedisPublisher.
type Option func(*RedisPublisher)

// WithPrefix sets the channel prefix.
func WithPrefix(prefix string) Option {
	return func(p *RedisPublisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithEvents limits publishing to the given event types.
func WithEvents(types ...session.EventType) Option {
	return func(p *RedisPublisher) { p.events = types }
}

// NewRedisPublisher creates a publisher. By default it publishes
// question_ready, session_complete and evaluation_ready.
func NewRedisPublisher(client Publisher, opts ...Option) *RedisPublisher {
	p := &RedisPublisher{
		client: client,
		prefix: DefaultPrefix,
		events: []session.EventType{
			session.EventQuestionReady,
			session.EventSessionComplete,
			session.EventEvaluationReady,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Channel returns the channel a conversation's events go to.
func (p *RedisPublisher) Channel(conversationID string) string {
	return fmt.Sprintf("%s:%s", p.prefix, conversationID)
}

// Handle implements session.Listener.
func (p *RedisPublisher) Handle(ctx context.Context, ev session.Event) error {
	if !slices.Contains(p.events, ev.Type) {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "notify: marshal event")
	}
	channel := p.Channel(ev.ConversationID)
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return eris.Wrapf(err, "notify: publish %s", ev.Type)
	}
	zap.L().Debug("notify: published",
		zap.String("channel", channel),
		zap.String("event", string(ev.Type)),
		zap.Int64("receivers", receivers),
	)
	return nil
}
