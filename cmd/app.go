package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/assessment/internal/analyzer"
	"github.com/sells-group/assessment/internal/apiclient"
	"github.com/sells-group/assessment/internal/catalog"
	"github.com/sells-group/assessment/internal/config"
	"github.com/sells-group/assessment/internal/evaluator"
	"github.com/sells-group/assessment/internal/generator"
	"github.com/sells-group/assessment/internal/metrics"
	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/notify"
	"github.com/sells-group/assessment/internal/resilience"
	"github.com/sells-group/assessment/internal/scoring"
	"github.com/sells-group/assessment/internal/session"
	"github.com/sells-group/assessment/internal/store"
	anthropicpkg "github.com/sells-group/assessment/pkg/anthropic"
)

// appEnv holds the collaborators shared by every session of a process.
type appEnv struct {
	Config    *config.Config
	Catalog   *catalog.Catalog
	Analyzer  *analyzer.Analyzer
	Scorer    *scoring.Engine
	Generator generator.Generator
	Breaker   *resilience.CircuitBreaker
	Store     store.Store
	Listener  session.Listener
	Metrics   *metrics.Metrics

	closers []func() error
}

// initApp validates cfg for mode and wires the collaborators. Metrics
// register with reg.
func initApp(ctx context.Context, c *config.Config, mode string, reg prometheus.Registerer) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{Config: c, Metrics: metrics.MustNewMetrics(reg)}

	cat, err := loadCatalog(c.Assessment.CatalogPath)
	if err != nil {
		return nil, err
	}
	env.Catalog = cat

	dims, err := cat.Dimensions(c.Assessment.Dimensions)
	if err != nil {
		return nil, eris.Wrap(err, "select dimensions")
	}
	env.Analyzer = analyzer.New(cat.Lexicon, dims)

	var claude anthropicpkg.Client
	if c.Anthropic.Key != "" {
		claude = anthropicpkg.NewClient(c.Anthropic.Key)
	}

	env.Generator = initGenerator(c, claude)
	breakerCfg := resilience.FromCircuitConfig(c.Resilience.CircuitThreshold, c.Resilience.CircuitResetTimeoutSecs)
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		env.Metrics.CircuitState("generator", int(to))
		zap.L().Warn("app: generator circuit changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	env.Breaker = resilience.NewCircuitBreaker(breakerCfg)
	env.Scorer = initScorer(c, dims, claude, env.Metrics)

	var listeners notify.Fanout
	if c.Store.Driver != "none" {
		st, err := initStore(ctx, c.Store)
		if err != nil {
			return nil, err
		}
		env.Store = st
		env.closers = append(env.closers, st.Close)
		if mode != "rescore" {
			if err := st.Migrate(ctx); err != nil {
				env.Close()
				return nil, eris.Wrap(err, "migrate store")
			}
		}
		retry := resilience.FromRetryConfig(c.Resilience.RetryAttempts, c.Resilience.RetryBackoffMs)
		listeners = append(listeners, store.NewRecorder(st, retry))
	}

	if c.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		env.closers = append(env.closers, rdb.Close)
		pub := notify.NewRedisPublisher(rdb, notify.WithPrefix(c.Redis.ChannelPrefix))
		listeners = append(listeners, notify.BestEffort(pub))
		zap.L().Info("app: publishing session signals", zap.String("redis", c.Redis.Addr))
	}
	if len(listeners) > 0 {
		env.Listener = listeners
	}

	zap.L().Info("app: initialized",
		zap.String("mode", mode),
		zap.String("scoring_mode", env.Scorer.Mode()),
		zap.Int("dimensions", len(dims)),
		zap.Bool("generator", env.Generator != nil),
		zap.String("store", c.Store.Driver),
	)
	return env, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Load()
	}
	cat, err := catalog.LoadFile(path)
	return cat, eris.Wrapf(err, "load catalog %s", path)
}

// initGenerator prefers an HTTP generation service, then Claude. Without
// either every adaptive question comes from the fallback pool.
func initGenerator(c *config.Config, claude anthropicpkg.Client) generator.Generator {
	switch {
	case c.Generator.BaseURL != "":
		return generator.NewHTTPClient(c.Generator.BaseURL, c.Generator.Key,
			apiclient.WithRequestsPerSecond(c.Generator.RequestsPerSecond))
	case claude != nil:
		return generator.NewClaude(claude, c.Anthropic.Model, c.Anthropic.MaxTokens)
	default:
		zap.L().Warn("app: no question generator configured, using fallback pool")
		return nil
	}
}

func initScorer(c *config.Config, dims []model.Dimension, claude anthropicpkg.Client, m *metrics.Metrics) *scoring.Engine {
	opts := scoring.Options{
		Mode:             c.Assessment.ScoringMode,
		DimensionTimeout: c.Assessment.DimensionTimeout(),
		OverallTimeout:   c.Assessment.EvaluationTimeout(),
		Metrics:          m,
	}
	if claude != nil {
		ev := evaluator.NewClaude(claude, c.Anthropic.Model, c.Anthropic.MaxTokens)
		opts.Dimension = ev
		opts.Persona = ev
	}
	if c.Evaluator.BaseURL != "" {
		opts.Bulk = evaluator.NewHTTPClient(c.Evaluator.BaseURL, c.Evaluator.Key,
			apiclient.WithRequestsPerSecond(c.Evaluator.RequestsPerSecond))
	}
	eng := scoring.New(dims, opts)
	if eng.Mode() != opts.Mode {
		zap.L().Warn("app: scoring evaluator missing, scoring locally",
			zap.String("configured", opts.Mode),
			zap.String("mode", eng.Mode()),
		)
	}
	return eng
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		return store.NewSQLite(sc.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// newController starts nothing; call Start on the result.
func (e *appEnv) newController() *session.Controller {
	a := e.Config.Assessment
	return session.New(session.Deps{
		Catalog:   e.Catalog,
		Analyzer:  e.Analyzer,
		Scorer:    e.Scorer,
		Generator: e.Generator,
		Breaker:   e.Breaker,
		Listener:  e.Listener,
		Metrics:   e.Metrics,
	}, session.Options{
		TotalQuestions:      a.TotalQuestions,
		StructuredQuestions: a.StructuredQuestions,
		GenerationTimeout:   a.GenerationTimeout(),
		CompletionTimeout:   a.CompletionTimeout(),
	})
}

// Close releases the store and the Redis client.
func (e *appEnv) Close() {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		zap.L().Warn("app: close", zap.Error(err))
	}
}
