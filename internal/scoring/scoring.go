// Package scoring turns a finished session into per-dimension scores and an
// overall persona, by delegation to an external evaluator or by local
// keyword rules.
package scoring

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/assessment/internal/metrics"
	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/resilience"
)

// Scoring modes.
const (
	// ModeDelegated scores each dimension with its own evaluator call.
	ModeDelegated = "delegated"
	// ModeRemote sends the whole session to a bulk evaluator in one call.
	ModeRemote = "remote"
	// ModeFallback scores locally without any external call.
	ModeFallback = "fallback"
	// ModeMixed marks a delegated result where some dimensions fell back.
	ModeMixed = "mixed"
)

// Framework score sources.
const (
	SourceDelegated = "delegated"
	SourceFallback  = "fallback"
)

// Default budgets.
const (
	DefaultDimensionTimeout = 10 * time.Second
	DefaultOverallTimeout   = 45 * time.Second
)

// DimensionEvaluator scores one dimension externally.
type DimensionEvaluator interface {
	EvaluateDimension(ctx context.Context, dim model.Dimension, in Input) (model.RawScore, error)
}

// PersonaEvaluator writes the overall persona and summary externally.
type PersonaEvaluator interface {
	EvaluatePersona(ctx context.Context, in Input, scores []model.FrameworkScore) (model.Overall, error)
}

// BulkResult is the reply of a bulk evaluator, keyed by dimension key.
type BulkResult struct {
	Scores  map[string]model.RawScore
	Overall model.Overall
}

// BulkEvaluator scores every dimension in one external call.
type BulkEvaluator interface {
	Evaluate(ctx context.Context, dims []model.Dimension, in Input) (BulkResult, error)
}

// Options configures an Engine. Mode selects the path; an evaluator missing
// for the selected mode degrades to ModeFallback.
type Options struct {
	Mode             string
	Dimension        DimensionEvaluator
	Persona          PersonaEvaluator
	Bulk             BulkEvaluator
	DimensionTimeout time.Duration
	OverallTimeout   time.Duration
	Metrics          *metrics.Metrics
}

// Engine produces EvaluationResults. It holds no per-session state and is
// safe for concurrent use.
type Engine struct {
	dims []model.Dimension
	opts Options
}

// New creates an Engine over the configured dimensions in catalog order.
func New(dims []model.Dimension, opts Options) *Engine {
	if opts.DimensionTimeout <= 0 {
		opts.DimensionTimeout = DefaultDimensionTimeout
	}
	if opts.OverallTimeout <= 0 {
		opts.OverallTimeout = DefaultOverallTimeout
	}
	switch {
	case opts.Mode == ModeDelegated && opts.Dimension == nil,
		opts.Mode == ModeRemote && opts.Bulk == nil,
		opts.Mode == "":
		opts.Mode = ModeFallback
	}
	return &Engine{dims: dims, opts: opts}
}

// Dimensions returns the dimensions the engine scores.
func (e *Engine) Dimensions() []model.Dimension {
	return e.dims
}

// Mode returns the configured scoring path.
func (e *Engine) Mode() string {
	return e.opts.Mode
}

// Evaluate scores in. It never fails: every external failure degrades to
// local scoring, and the result always has one framework per dimension.
func (e *Engine) Evaluate(ctx context.Context, in Input) model.EvaluationResult {
	ctx, cancel := context.WithTimeout(ctx, e.opts.OverallTimeout)
	defer cancel()

	var (
		frameworks []model.FrameworkScore
		overall    model.Overall
		mode       string
	)
	switch e.opts.Mode {
	case ModeDelegated:
		frameworks, mode = e.delegated(ctx, in)
	case ModeRemote:
		frameworks, overall, mode = e.remote(ctx, in)
	default:
		frameworks, mode = FallbackAll(e.dims, in, StandalonePreset), ModeFallback
	}

	if overall.Persona == "" {
		overall = e.overall(ctx, in, frameworks, mode)
	}

	e.opts.Metrics.Evaluated(mode)
	zap.L().Info("scoring: evaluation complete",
		zap.String("mode", mode),
		zap.Int("dimensions", len(frameworks)),
		zap.String("persona", overall.Persona),
	)
	return assemble(frameworks, overall, mode)
}

// Local scores every dimension with preset and composes the templated
// overall, without any external call.
func Local(dims []model.Dimension, in Input, preset FallbackPreset) model.EvaluationResult {
	frameworks := FallbackAll(dims, in, preset)
	return assemble(frameworks, ComposeOverall(frameworks), ModeFallback)
}

func assemble(frameworks []model.FrameworkScore, overall model.Overall, mode string) model.EvaluationResult {
	top, bottom := Extremes(frameworks, 3)
	return model.EvaluationResult{
		Frameworks:   frameworks,
		Overall:      overall,
		AverageScore: Average(frameworks),
		Strengths:    top,
		GrowthAreas:  bottom,
		Mode:         mode,
	}
}

// delegated fans out one call per dimension and joins once. A dimension
// whose call fails or runs past its budget is scored locally with the
// recovery preset; the others are unaffected.
func (e *Engine) delegated(ctx context.Context, in Input) ([]model.FrameworkScore, string) {
	results := make([]model.FrameworkScore, len(e.dims))
	fellBack := make([]bool, len(e.dims))

	g, gCtx := errgroup.WithContext(ctx)
	for i, dim := range e.dims {
		g.Go(func() error {
			raw, err := resilience.CallWithTimeout(gCtx, e.opts.DimensionTimeout, func(ctx context.Context) (model.RawScore, error) {
				return e.opts.Dimension.EvaluateDimension(ctx, dim, in)
			})
			if err != nil {
				err = classify(err)
				zap.L().Warn("scoring: dimension fell back to local rules",
					zap.String("dimension", dim.Key),
					zap.Error(err),
				)
				e.opts.Metrics.DimensionFallback(reason(err))
				results[i] = Fallback(dim, in, RecoveryPreset)
				fellBack[i] = true
				return nil
			}
			fs := raw.Resolve(dim)
			fs.Source = SourceDelegated
			results[i] = fs
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, fb := range fellBack {
		if fb {
			n++
		}
	}
	switch n {
	case 0:
		return results, ModeDelegated
	case len(e.dims):
		return results, ModeFallback
	default:
		return results, ModeMixed
	}
}

// remote makes one bulk call. Any failure scores every dimension locally;
// dimensions missing from a successful reply are filled locally.
func (e *Engine) remote(ctx context.Context, in Input) ([]model.FrameworkScore, model.Overall, string) {
	res, err := resilience.CallWithTimeout(ctx, 0, func(ctx context.Context) (BulkResult, error) {
		return e.opts.Bulk.Evaluate(ctx, e.dims, in)
	})
	if err != nil {
		err = classify(err)
		zap.L().Warn("scoring: bulk evaluation failed, scoring locally", zap.Error(err))
		e.opts.Metrics.DimensionFallback(reason(err))
		return FallbackAll(e.dims, in, RecoveryPreset), model.Overall{}, ModeFallback
	}

	out := make([]model.FrameworkScore, len(e.dims))
	missing := 0
	for i, dim := range e.dims {
		raw, ok := res.Scores[dim.Key]
		if !ok {
			missing++
			out[i] = Fallback(dim, in, RecoveryPreset)
			continue
		}
		out[i] = raw.Resolve(dim)
		out[i].Source = SourceDelegated
	}
	mode := ModeRemote
	if missing > 0 {
		zap.L().Warn("scoring: bulk reply missing dimensions", zap.Int("missing", missing))
		mode = ModeMixed
	}

	overall := res.Overall
	overall.Persona = strings.TrimSpace(overall.Persona)
	overall.Summary = strings.TrimSpace(overall.Summary)
	if overall.Persona == "" || overall.Summary == "" || missing > 0 {
		overall = model.Overall{}
	}
	return out, overall, mode
}

// overall asks the persona evaluator when scores came from delegation,
// otherwise composes the templated summary.
func (e *Engine) overall(ctx context.Context, in Input, scores []model.FrameworkScore, mode string) model.Overall {
	if e.opts.Persona == nil || mode == ModeFallback {
		return ComposeOverall(scores)
	}
	o, err := resilience.CallWithTimeout(ctx, e.opts.DimensionTimeout, func(ctx context.Context) (model.Overall, error) {
		return e.opts.Persona.EvaluatePersona(ctx, in, scores)
	})
	if err != nil || strings.TrimSpace(o.Persona) == "" {
		if err != nil {
			zap.L().Warn("scoring: persona evaluation failed, composing locally", zap.Error(classify(err)))
		}
		return ComposeOverall(scores)
	}
	o.Persona = strings.TrimSpace(o.Persona)
	o.Summary = strings.TrimSpace(o.Summary)
	if o.Summary == "" {
		o.Summary = ComposeOverall(scores).Summary
	}
	return o
}

// classify tags err with the evaluation sentinel it belongs to.
func classify(err error) error {
	switch {
	case errors.Is(err, model.ErrEvaluationTimeout), errors.Is(err, model.ErrEvaluationService):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return eris.Wrap(model.ErrEvaluationTimeout, err.Error())
	default:
		return eris.Wrap(model.ErrEvaluationService, err.Error())
	}
}

func reason(err error) string {
	if errors.Is(err, model.ErrEvaluationTimeout) {
		return "timeout"
	}
	return "error"
}
