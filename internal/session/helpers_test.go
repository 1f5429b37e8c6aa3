package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/assessment/internal/analyzer"
	"github.com/sells-group/assessment/internal/catalog"
	"github.com/sells-group/assessment/internal/generator"
	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/scoring"
)

var director = model.Profile{UserID: "u-1", Position: "Director", Role: "Operations", TeamSize: 25}

const openAnswer = "I coach my team every week and give clear feedback because growth matters to me."

// genFunc adapts a function to generator.Generator.
type genFunc func(ctx context.Context, req generator.Request) (model.Question, error)

func (f genFunc) Generate(ctx context.Context, req generator.Request) (model.Question, error) {
	return f(ctx, req)
}

// mockGenerator implements generator.Generator for call-count assertions.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req generator.Request) (model.Question, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Question), args.Error(1)
}

// recorder collects events and can fail selected event types.
type recorder struct {
	mu     sync.Mutex
	events []Event
	failOn map[EventType]error
}

func (r *recorder) Handle(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.failOn[ev.Type]
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) setFail(t EventType, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == nil {
		r.failOn = make(map[EventType]error)
	}
	if err == nil {
		delete(r.failOn, t)
		return
	}
	r.failOn[t] = err
}

// countingScorer wraps an Engine and counts Evaluate calls.
type countingScorer struct {
	*scoring.Engine
	calls atomic.Int32
	block chan struct{}
}

func (s *countingScorer) Evaluate(ctx context.Context, in scoring.Input) model.EvaluationResult {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	return s.Engine.Evaluate(ctx, in)
}

type fixture struct {
	ctrl   *Controller
	events *recorder
	scorer *countingScorer
	cat    *catalog.Catalog
}

func newFixture(t *testing.T, deps Deps, opts Options) fixture {
	t.Helper()
	cat := catalog.MustLoad()
	dims, err := cat.Dimensions(nil)
	require.NoError(t, err)

	events := &recorder{}
	scorer := &countingScorer{Engine: scoring.New(dims, scoring.Options{Mode: scoring.ModeFallback})}

	deps.Catalog = cat
	deps.Analyzer = analyzer.New(cat.Lexicon, dims)
	if deps.Scorer == nil {
		deps.Scorer = scorer
	}
	deps.Listener = events
	return fixture{ctrl: New(deps, opts), events: events, scorer: scorer, cat: cat}
}

// answerFor builds a valid answer for q.
func answerFor(q model.Question) model.Answer {
	switch q.Type {
	case model.QuestionMultipleChoice:
		return model.Answer{Choice: q.Options[0]}
	case model.QuestionScale:
		return model.Answer{Scale: q.Scale.Max - 2}
	case model.QuestionMostLeast:
		return model.Answer{Ranking: &model.MostLeast{Most: q.Options[0], Least: q.Options[1]}}
	default:
		return model.Answer{Text: openAnswer}
	}
}
