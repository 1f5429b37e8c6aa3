package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Assessment AssessmentConfig `yaml:"assessment" mapstructure:"assessment"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Generator  GeneratorConfig  `yaml:"generator" mapstructure:"generator"`
	Evaluator  EvaluatorConfig  `yaml:"evaluator" mapstructure:"evaluator"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AssessmentConfig sizes a session and bounds its external calls.
type AssessmentConfig struct {
	TotalQuestions        int      `yaml:"total_questions" mapstructure:"total_questions"`
	StructuredQuestions   int      `yaml:"structured_questions" mapstructure:"structured_questions"`
	GenerationTimeoutSecs int      `yaml:"generation_timeout_secs" mapstructure:"generation_timeout_secs"`
	EvaluationTimeoutSecs int      `yaml:"evaluation_timeout_secs" mapstructure:"evaluation_timeout_secs"`
	DimensionTimeoutSecs  int      `yaml:"dimension_timeout_secs" mapstructure:"dimension_timeout_secs"`
	CompletionTimeoutSecs int      `yaml:"completion_timeout_secs" mapstructure:"completion_timeout_secs"`
	Dimensions            []string `yaml:"dimensions" mapstructure:"dimensions"`
	// ScoringMode is delegated, remote or fallback.
	ScoringMode string `yaml:"scoring_mode" mapstructure:"scoring_mode"`
	// CatalogPath overrides the embedded question catalog.
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// GenerationTimeout is the question generation budget.
func (a AssessmentConfig) GenerationTimeout() time.Duration {
	return time.Duration(a.GenerationTimeoutSecs) * time.Second
}

// EvaluationTimeout is the overall scoring budget.
func (a AssessmentConfig) EvaluationTimeout() time.Duration {
	return time.Duration(a.EvaluationTimeoutSecs) * time.Second
}

// DimensionTimeout is the per-dimension scoring budget.
func (a AssessmentConfig) DimensionTimeout() time.Duration {
	return time.Duration(a.DimensionTimeoutSecs) * time.Second
}

// CompletionTimeout bounds how long a shell waits for the result after the
// last answer.
func (a AssessmentConfig) CompletionTimeout() time.Duration {
	return time.Duration(a.CompletionTimeoutSecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings used when the generator or
// evaluator is backed by Claude.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeneratorConfig points at an HTTP question generation service. An empty
// BaseURL with an Anthropic key uses Claude directly.
type GeneratorConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Key               string  `yaml:"key" mapstructure:"key"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// EvaluatorConfig points at an HTTP evaluation service.
type EvaluatorConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Key               string  `yaml:"key" mapstructure:"key"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	// Driver is sqlite, postgres or none.
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig configures session signal publishing. Empty Addr disables it.
type RedisConfig struct {
	Addr          string `yaml:"addr" mapstructure:"addr"`
	Password      string `yaml:"password" mapstructure:"password"`
	DB            int    `yaml:"db" mapstructure:"db"`
	ChannelPrefix string `yaml:"channel_prefix" mapstructure:"channel_prefix"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxSessions    int      `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// ResilienceConfig configures retries of store writes and the circuit
// breakers around external services.
type ResilienceConfig struct {
	RetryAttempts           int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs          int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	CircuitThreshold        int `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetTimeoutSecs int `yaml:"circuit_reset_timeout_secs" mapstructure:"circuit_reset_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ASSESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key has one so env-only values unmarshal.
	v.SetDefault("assessment.total_questions", 15)
	v.SetDefault("assessment.structured_questions", 5)
	v.SetDefault("assessment.generation_timeout_secs", 30)
	v.SetDefault("assessment.evaluation_timeout_secs", 45)
	v.SetDefault("assessment.dimension_timeout_secs", 10)
	v.SetDefault("assessment.completion_timeout_secs", 30)
	v.SetDefault("assessment.dimensions", []string{})
	v.SetDefault("assessment.scoring_mode", "delegated")
	v.SetDefault("assessment.catalog_path", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("generator.base_url", "")
	v.SetDefault("generator.key", "")
	v.SetDefault("generator.requests_per_second", 2.0)
	v.SetDefault("evaluator.base_url", "")
	v.SetDefault("evaluator.key", "")
	v.SetDefault("evaluator.requests_per_second", 5.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "assessment.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "assessment")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_sessions", 1000)
	v.SetDefault("resilience.retry_attempts", 3)
	v.SetDefault("resilience.retry_backoff_ms", 200)
	v.SetDefault("resilience.circuit_threshold", 3)
	v.SetDefault("resilience.circuit_reset_timeout_secs", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Dimension count bounds.
const (
	minDimensions = 4
	maxDimensions = 12
)

// Validate checks the settings a command needs. Mode is the command name:
// run, serve, rescore or migrate.
func (c *Config) Validate(mode string) error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	a := c.Assessment
	if mode == "run" || mode == "serve" {
		if a.TotalQuestions <= 0 {
			add("assessment.total_questions must be positive")
		}
		if a.StructuredQuestions < 0 || a.StructuredQuestions >= a.TotalQuestions {
			add("assessment.structured_questions must be below total_questions")
		}
		if a.GenerationTimeoutSecs <= 0 {
			add("assessment.generation_timeout_secs must be positive")
		}
	}
	if mode != "migrate" {
		if a.EvaluationTimeoutSecs <= 0 || a.DimensionTimeoutSecs <= 0 || a.CompletionTimeoutSecs <= 0 {
			add("assessment timeouts must be positive")
		}
		if n := len(a.Dimensions); n > 0 && (n < minDimensions || n > maxDimensions) {
			add("assessment.dimensions must list %d-%d keys, got %d", minDimensions, maxDimensions, n)
		}
		// Delegated scoring without an Anthropic key degrades to fallback
		// at wiring time.
		switch a.ScoringMode {
		case "fallback", "delegated":
		case "remote":
			if c.Evaluator.BaseURL == "" {
				add("evaluator.base_url is required for remote scoring")
			}
		default:
			add("assessment.scoring_mode %q is not delegated, remote or fallback", a.ScoringMode)
		}
	}

	switch c.Store.Driver {
	case "none":
		if mode == "rescore" || mode == "migrate" {
			add("store.driver none cannot %s", mode)
		}
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required")
		}
	default:
		add("store.driver %q is not sqlite, postgres or none", c.Store.Driver)
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port %d is out of range", c.Server.Port)
		}
		if c.Server.MaxSessions <= 0 {
			add("server.max_sessions must be positive")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
