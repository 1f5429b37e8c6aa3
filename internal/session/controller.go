// Package session drives one assessment conversation: it sequences
// structured and generated questions, keeps them distinct, records typed
// answers, supports going back, and gates evaluation on completion.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/assessment/internal/analyzer"
	"github.com/sells-group/assessment/internal/catalog"
	"github.com/sells-group/assessment/internal/dedup"
	"github.com/sells-group/assessment/internal/generator"
	"github.com/sells-group/assessment/internal/metrics"
	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/resilience"
	"github.com/sells-group/assessment/internal/scoring"
)

// Defaults for Options.
const (
	DefaultTotalQuestions      = 15
	DefaultStructuredQuestions = 5
	DefaultGenerationTimeout   = 30 * time.Second
	DefaultCompletionTimeout   = 30 * time.Second
)

// Generation outcomes reported to metrics.
const (
	outcomeSuccess     = "success"
	outcomeTimeout     = "timeout"
	outcomeMalformed   = "malformed"
	outcomeCircuitOpen = "circuit_open"
)

// Scorer evaluates a finished session.
type Scorer interface {
	Evaluate(ctx context.Context, in scoring.Input) model.EvaluationResult
	Dimensions() []model.Dimension
}

// Deps are the collaborators of a Controller. Catalog, Analyzer and Scorer
// are required. A nil Generator serves every adaptive question from the
// fallback pool; nil Breaker, Listener and Metrics disable those concerns.
type Deps struct {
	Catalog   *catalog.Catalog
	Analyzer  *analyzer.Analyzer
	Scorer    Scorer
	Generator generator.Generator
	Breaker   *resilience.CircuitBreaker
	Listener  Listener
	Metrics   *metrics.Metrics
}

// Options sizes a session and bounds its external calls.
type Options struct {
	TotalQuestions      int
	StructuredQuestions int
	GenerationTimeout   time.Duration
	// CompletionTimeout bounds Evaluate; past it a local result is used.
	CompletionTimeout time.Duration
	Now               func() time.Time
	NewID             func() string
}

func (o Options) withDefaults() Options {
	if o.TotalQuestions <= 0 {
		o.TotalQuestions = DefaultTotalQuestions
	}
	if o.StructuredQuestions <= 0 || o.StructuredQuestions >= o.TotalQuestions {
		o.StructuredQuestions = min(DefaultStructuredQuestions, o.TotalQuestions-1)
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = DefaultGenerationTimeout
	}
	if o.CompletionTimeout <= 0 {
		o.CompletionTimeout = DefaultCompletionTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Controller owns the state of one session. All methods are safe for
// concurrent use; at most one answer submission or question request is in
// flight at a time.
type Controller struct {
	deps Deps
	opts Options

	mu      sync.Mutex
	id      string
	profile model.Profile
	values  catalog.Values
	started bool

	exchanges []model.Exchange
	memories  map[string]model.ResponseMemory
	// presented[i] is the question shown at position i. It outlives GoBack so
	// a re-shown question keeps its text and options.
	presented []model.Question
	tracker   *dedup.Tracker

	current *model.Question
	pending bool

	evaluation *model.EvaluationResult
	persisted  bool
}

// New creates a Controller. Call Start to begin the session.
func New(deps Deps, opts Options) *Controller {
	return &Controller{
		deps:     deps,
		opts:     opts.withDefaults(),
		memories: make(map[string]model.ResponseMemory),
		tracker:  dedup.NewTracker(deps.Catalog.DedupPrompts(false), deps.Catalog.DedupPrompts(true)),
	}
}

// ID is the conversation id, assigned by Start.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Start validates the profile, opens the session and returns the first
// question.
func (c *Controller) Start(ctx context.Context, profile model.Profile) (model.Question, error) {
	if err := profile.Validate(); err != nil {
		return model.Question{}, err
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return model.Question{}, model.ErrSessionStarted
	}
	c.started = true
	c.id = c.opts.NewID()
	c.profile = profile
	c.values = catalog.BuildValues(profile)
	c.pending = true
	c.mu.Unlock()

	c.deps.Metrics.SessionStarted()
	zap.L().Info("session: started",
		zap.String("conversation_id", c.id),
		zap.String("position", profile.Position),
		zap.String("role", profile.Role),
		zap.Int("team_size", profile.TeamSize),
	)
	return c.advance(ctx), nil
}

// RecordAnswer records an answer to the showing question and returns the
// next question, or nil once the final answer completes the session. A
// listener failure to store the answer returns an error wrapping
// ErrPersistence with no next question; the answer stays recorded.
func (c *Controller) RecordAnswer(ctx context.Context, answer model.Answer) (*model.Question, error) {
	c.mu.Lock()
	if err := c.checkMutableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.current == nil {
		c.mu.Unlock()
		return nil, model.ErrNoActiveQuestion
	}
	q := *c.current
	if err := answer.CheckAgainst(q); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	ex := model.Exchange{
		MessageID:  c.opts.NewID(),
		Question:   q,
		Answer:     answer,
		AnsweredAt: c.opts.Now(),
	}
	c.exchanges = append(c.exchanges, ex)
	c.current = nil

	var mem *model.ResponseMemory
	if q.Type == model.QuestionOpenEnded {
		m := c.deps.Analyzer.Analyze(ex.ResponseText())
		m.MessageID = ex.MessageID
		c.memories[ex.MessageID] = m
		mem = &m
	}

	n := len(c.exchanges)
	done := n >= c.opts.TotalQuestions
	if !done {
		c.pending = true
	}
	recorded := c.eventLocked(EventAnswerRecorded)
	recorded.Exchange = &ex
	recorded.Memory = mem
	c.mu.Unlock()

	c.deps.Metrics.AnswerRecorded(string(q.Type))
	zap.L().Debug("session: answer recorded",
		zap.String("conversation_id", recorded.ConversationID),
		zap.Int("question_count", n),
		zap.String("type", string(q.Type)),
	)
	if err := c.deliver(ctx, recorded); err != nil {
		// The answer stays recorded. RequestNextQuestion shows the next
		// question once the caller has handled the failure.
		if done {
			c.complete(ctx, recorded.ConversationID, n)
		} else {
			c.mu.Lock()
			c.pending = false
			c.mu.Unlock()
		}
		return nil, eris.Wrapf(model.ErrPersistence, "session: persist answer %d: %v", n, err)
	}

	if done {
		c.complete(ctx, recorded.ConversationID, n)
		return nil, nil
	}

	next := c.advance(ctx)
	return &next, nil
}

func (c *Controller) complete(ctx context.Context, id string, n int) {
	c.deps.Metrics.SessionCompleted()
	zap.L().Info("session: complete",
		zap.String("conversation_id", id),
		zap.Int("question_count", n),
	)
	c.emit(ctx, c.event(EventSessionComplete))
}

// GoBack removes the last exchange and shows its question again for
// editing. The question stays in the asked set.
func (c *Controller) GoBack(ctx context.Context) (model.Question, error) {
	c.mu.Lock()
	if err := c.checkMutableLocked(); err != nil {
		c.mu.Unlock()
		return model.Question{}, err
	}
	n := len(c.exchanges)
	if n == 0 {
		c.mu.Unlock()
		return model.Question{}, model.ErrNothingToUndo
	}

	removed := c.exchanges[n-1]
	c.exchanges = c.exchanges[:n-1]
	delete(c.memories, removed.MessageID)
	q := c.presented[n-1]
	c.current = &q

	retracted := c.eventLocked(EventAnswerRetracted)
	retracted.Exchange = &removed
	ready := c.eventLocked(EventQuestionReady)
	ready.Question = &q
	c.mu.Unlock()

	zap.L().Debug("session: went back",
		zap.String("conversation_id", retracted.ConversationID),
		zap.Int("question_count", n-1),
	)
	c.emit(ctx, retracted)
	c.emit(ctx, ready)
	return q, nil
}

// RequestNextQuestion returns the showing question, or produces the next
// one when none is showing.
func (c *Controller) RequestNextQuestion(ctx context.Context) (model.Question, error) {
	c.mu.Lock()
	if err := c.checkMutableLocked(); err != nil {
		c.mu.Unlock()
		return model.Question{}, err
	}
	if c.current != nil {
		q := *c.current
		c.mu.Unlock()
		return q, nil
	}
	c.pending = true
	c.mu.Unlock()
	return c.advance(ctx), nil
}

// Evaluate scores the completed session. The result is computed once;
// later calls return it again and retry persistence if it failed. Scoring
// that outlasts the completion timeout is replaced by local scoring; a
// cancelled ctx returns its error and caches nothing. A listener error for
// the evaluation is returned with the result and wraps ErrPersistence.
func (c *Controller) Evaluate(ctx context.Context) (model.EvaluationResult, error) {
	c.mu.Lock()
	switch {
	case !c.started:
		c.mu.Unlock()
		return model.EvaluationResult{}, model.ErrSessionNotStarted
	case len(c.exchanges) < c.opts.TotalQuestions:
		c.mu.Unlock()
		return model.EvaluationResult{}, model.ErrSessionIncomplete
	case c.pending:
		c.mu.Unlock()
		return model.EvaluationResult{}, model.ErrSubmissionPending
	}
	cached := c.evaluation
	if cached != nil && c.persisted {
		c.mu.Unlock()
		return *cached, nil
	}
	c.pending = true
	in := scoring.InputFrom(c.exchanges)
	id := c.id
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
	}()

	var result model.EvaluationResult
	if cached != nil {
		result = *cached
	} else {
		var err error
		result, err = resilience.CallWithTimeout(ctx, c.opts.CompletionTimeout, func(ctx context.Context) (model.EvaluationResult, error) {
			return c.deps.Scorer.Evaluate(ctx, in), nil
		})
		// A caller that went away gets no result; scoring degraded by its
		// cancellation must not be cached.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.EvaluationResult{}, eris.Wrap(ctxErr, "session: evaluate")
		}
		if err != nil {
			zap.L().Warn("session: evaluation overran completion timeout, scoring locally",
				zap.String("conversation_id", id),
				zap.Error(err),
			)
			result = scoring.Local(c.deps.Scorer.Dimensions(), in, scoring.RecoveryPreset)
		}
		c.mu.Lock()
		c.evaluation = &result
		c.mu.Unlock()
	}

	ev := c.event(EventEvaluationReady)
	ev.Evaluation = &result
	if err := c.deliver(ctx, ev); err != nil {
		return result, eris.Wrapf(model.ErrPersistence, "session: persist evaluation: %v", err)
	}

	c.mu.Lock()
	c.persisted = true
	c.mu.Unlock()
	return result, nil
}

// Insights aggregates the analysis of every open-ended answer so far.
func (c *Controller) Insights() model.ConversationInsights {
	return analyzer.Aggregate(c.Memories())
}

// Memories returns the analysis of every open-ended answer in answer order.
func (c *Controller) Memories() []model.ResponseMemory {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.ResponseMemory
	for _, ex := range c.exchanges {
		if m, ok := c.memories[ex.MessageID]; ok {
			out = append(out, m)
		}
	}
	return out
}

func (c *Controller) checkMutableLocked() error {
	switch {
	case !c.started:
		return model.ErrSessionNotStarted
	case len(c.exchanges) >= c.opts.TotalQuestions:
		return model.ErrSessionAlreadyComplete
	case c.pending:
		return model.ErrSubmissionPending
	}
	return nil
}

// advance shows the question for the current position and clears the
// pending flag. The caller must have set pending. Generation runs without
// the lock held.
func (c *Controller) advance(ctx context.Context) model.Question {
	c.mu.Lock()
	n := len(c.exchanges)
	if n < len(c.presented) {
		q := c.presented[n]
		ev := c.showLocked(q)
		c.mu.Unlock()
		c.emit(ctx, ev)
		return q
	}
	id, profile, values := c.id, c.profile, c.values
	history := slices.Clone(c.exchanges)
	c.mu.Unlock()

	var q model.Question
	if n < c.opts.StructuredQuestions {
		q = c.deps.Catalog.Structured(n, values)
	} else {
		q = c.generate(ctx, id, n, profile, history, values)
	}

	c.mu.Lock()
	text, rewritten := c.tracker.EnsureUnique(q.Text, q.IsMultipleChoice())
	if rewritten {
		zap.L().Warn("session: duplicate question rewritten",
			zap.String("conversation_id", id),
			zap.Int("question_count", n),
			zap.Error(eris.Wrapf(model.ErrDuplicateQuestion, "%q", q.Text)),
		)
		q = rewrite(q, text)
	}
	c.tracker.Mark(q.Text)
	c.presented = append(c.presented, q)
	ev := c.showLocked(q)
	c.mu.Unlock()

	c.deps.Metrics.QuestionShown(q.Source, rewritten)
	c.emit(ctx, ev)
	return q
}

// rewrite swaps in a deduplicated text. A generic prompt replacing a scale
// or ranking question turns it into an open-ended one.
func rewrite(q model.Question, text string) model.Question {
	q.Text = text
	if q.Type != model.QuestionOpenEnded && !q.IsMultipleChoice() && !dedup.IsVariant(text) {
		q.Type = model.QuestionOpenEnded
		q.Options = nil
		q.Scale = nil
	}
	return q
}

func (c *Controller) showLocked(q model.Question) Event {
	c.current = &q
	c.pending = false
	ev := c.eventLocked(EventQuestionReady)
	ev.Question = &q
	return ev
}

// generate asks the generator for question n. Any failure, timeout or open
// circuit yields the fallback pool question for n instead.
func (c *Controller) generate(ctx context.Context, id string, n int, profile model.Profile, history []model.Exchange, values catalog.Values) model.Question {
	if c.deps.Generator == nil {
		return c.deps.Catalog.Fallback(n, values)
	}

	req := generator.BuildRequest(profile, history)
	call := func(ctx context.Context) (model.Question, error) {
		return resilience.CallWithTimeout(ctx, c.opts.GenerationTimeout, func(ctx context.Context) (model.Question, error) {
			return c.deps.Generator.Generate(ctx, req)
		})
	}

	start := time.Now()
	var (
		q   model.Question
		err error
	)
	if c.deps.Breaker != nil {
		q, err = resilience.ExecuteVal(ctx, c.deps.Breaker, call)
	} else {
		q, err = call(ctx)
	}
	if err == nil {
		err = q.Validate()
		if err != nil {
			err = eris.Wrapf(model.ErrGenerationMalformed, "session: %v", err)
		}
	}

	outcome := outcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, resilience.ErrCircuitOpen):
		outcome = outcomeCircuitOpen
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, model.ErrGenerationTimeout):
		outcome = outcomeTimeout
		err = eris.Wrap(model.ErrGenerationTimeout, err.Error())
	default:
		outcome = outcomeMalformed
	}
	c.deps.Metrics.ObserveGeneration(outcome, time.Since(start))

	if err != nil {
		zap.L().Warn("session: generation failed, using fallback question",
			zap.String("conversation_id", id),
			zap.Int("question_count", n),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return c.deps.Catalog.Fallback(n, values)
	}
	q.Source = model.SourceGenerator
	return q
}

func (c *Controller) event(t EventType) Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eventLocked(t)
}

func (c *Controller) eventLocked(t EventType) Event {
	n := len(c.exchanges)
	return Event{
		Type:           t,
		ConversationID: c.id,
		UserID:         c.profile.UserID,
		QuestionCount:  n,
		Stage:          model.StageFor(n, c.opts.StructuredQuestions, c.opts.TotalQuestions),
		At:             c.opts.Now(),
	}
}

// deliver hands ev to the listener and returns its error.
func (c *Controller) deliver(ctx context.Context, ev Event) error {
	if c.deps.Listener == nil {
		return nil
	}
	return c.deps.Listener.Handle(ctx, ev)
}

// emit delivers ev and only logs a failure.
func (c *Controller) emit(ctx context.Context, ev Event) {
	if err := c.deliver(ctx, ev); err != nil {
		zap.L().Warn("session: listener failed",
			zap.String("conversation_id", ev.ConversationID),
			zap.String("event", string(ev.Type)),
			zap.Error(err),
		)
	}
}
