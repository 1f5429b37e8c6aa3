package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/session"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	return mr, client
}

func subscribe(t *testing.T, client *redis.Client, channel string) *redis.PubSub {
	t.Helper()
	sub := client.Subscribe(context.Background(), channel)
	t.Cleanup(func() { sub.Close() }) //nolint:errcheck
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	return sub
}

func receive(t *testing.T, sub *redis.PubSub) session.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var ev session.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
	return ev
}

func TestRedisPublisherPublishesQuestionReady(t *testing.T) {
	_, client := newTestRedis(t)
	sub := subscribe(t, client, "assessment:conv-1")

	p := NewRedisPublisher(client)
	q := model.Question{Type: model.QuestionOpenEnded, Text: "What motivates you?"}
	err := p.Handle(context.Background(), session.Event{
		Type:           session.EventQuestionReady,
		ConversationID: "conv-1",
		QuestionCount:  3,
		Stage:          model.StageFor(3, 5, 15),
		Question:       &q,
	})
	require.NoError(t, err)

	ev := receive(t, sub)
	assert.Equal(t, session.EventQuestionReady, ev.Type)
	assert.Equal(t, 3, ev.QuestionCount)
	require.NotNil(t, ev.Question)
	assert.Equal(t, "What motivates you?", ev.Question.Text)
}

func TestRedisPublisherFiltersEvents(t *testing.T) {
	_, client := newTestRedis(t)
	sub := subscribe(t, client, "custom:conv-2")

	p := NewRedisPublisher(client, WithPrefix("custom"))
	ctx := context.Background()
	require.NoError(t, p.Handle(ctx, session.Event{Type: session.EventAnswerRecorded, ConversationID: "conv-2"}))
	require.NoError(t, p.Handle(ctx, session.Event{Type: session.EventSessionComplete, ConversationID: "conv-2", QuestionCount: 15}))

	ev := receive(t, sub)
	assert.Equal(t, session.EventSessionComplete, ev.Type)
	assert.Equal(t, 15, ev.QuestionCount)
}

func TestRedisPublisherWithEvents(t *testing.T) {
	_, client := newTestRedis(t)
	sub := subscribe(t, client, "assessment:conv-3")

	p := NewRedisPublisher(client, WithEvents(session.EventAnswerRetracted))
	ctx := context.Background()
	require.NoError(t, p.Handle(ctx, session.Event{Type: session.EventQuestionReady, ConversationID: "conv-3"}))
	require.NoError(t, p.Handle(ctx, session.Event{Type: session.EventAnswerRetracted, ConversationID: "conv-3", QuestionCount: 2}))

	ev := receive(t, sub)
	assert.Equal(t, session.EventAnswerRetracted, ev.Type)
}

func TestRedisPublisherServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	mr.Close()

	p := NewRedisPublisher(client)
	err = p.Handle(context.Background(), session.Event{Type: session.EventSessionComplete, ConversationID: "conv-4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify: publish session_complete")
}

func TestChannel(t *testing.T) {
	p := NewRedisPublisher(nil, WithPrefix(""))
	assert.Equal(t, "assessment:abc", p.Channel("abc"))
}

func TestFanout(t *testing.T) {
	var seen []string
	record := func(name string, err error) session.Listener {
		return session.ListenerFunc(func(_ context.Context, ev session.Event) error {
			seen = append(seen, name+":"+string(ev.Type))
			return err
		})
	}
	boom := errors.New("boom")

	f := Fanout{record("a", nil), nil, record("b", boom), record("c", nil)}
	err := f.Handle(context.Background(), session.Event{Type: session.EventSessionComplete})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a:session_complete", "b:session_complete", "c:session_complete"}, seen)

	assert.NoError(t, Fanout{record("d", nil)}.Handle(context.Background(), session.Event{}))
}

func TestBestEffortSwallowsErrors(t *testing.T) {
	calls := 0
	l := BestEffort(session.ListenerFunc(func(context.Context, session.Event) error {
		calls++
		return errors.New("redis down")
	}))
	assert.NoError(t, l.Handle(context.Background(), session.Event{Type: session.EventQuestionReady}))
	assert.Equal(t, 1, calls)
}
