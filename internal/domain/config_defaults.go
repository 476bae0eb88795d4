package domain

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const DefaultSummaryLimit = 160

func DefaultConfig() *Config {
	return &Config{
		DataDir:       "./data",
		Log:           DefaultLogConfig(),
		Engine:        DefaultEngineConfig(),
		Runs:          DefaultRunsConfig(),
		HTTP:          DefaultHTTPConfig(),
		Observability: DefaultObservabilityConfig(),
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StepTimeout:  0,
		SummaryLimit: DefaultSummaryLimit,
	}
}

func DefaultRunsConfig() RunsConfig {
	return RunsConfig{
		MaxConcurrentRuns: 64,
		LogRetention:      7 * 24 * time.Hour,
		ShutdownTimeout:   30 * time.Second,
	}
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:              ":8000",
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}
}

func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		EnableMetrics: true,
		MetricsPath:   "/metrics",
	}
}

// LoadConfig reads a YAML file and layers it over DefaultConfig. Zero values
// in the file keep the default.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, NewConfigError("yaml", err)
	}

	cfg := DefaultConfig()
	if err := mergo.Merge(cfg, fromFile, mergo.WithOverride); err != nil {
		return nil, NewConfigError("merge", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) WithDataDir(dir string) *Config {
	c.DataDir = dir
	return c
}

func (c *Config) WithInMemory() *Config {
	c.InMemory = true
	return c
}

func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

func (c *Config) WithEngineSettings(stepTimeout time.Duration, summaryLimit int) *Config {
	c.Engine.StepTimeout = stepTimeout
	if summaryLimit > 0 {
		c.Engine.SummaryLimit = summaryLimit
	}
	return c
}

func (c *Config) WithHTTPAddr(addr string) *Config {
	c.HTTP.Addr = addr
	return c
}

func (c *Config) WithMaxConcurrentRuns(n int) *Config {
	c.Runs.MaxConcurrentRuns = n
	return c
}

func (c *Config) WithMetrics(enabled bool) *Config {
	c.Observability.EnableMetrics = enabled
	return c
}

func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return NewConfigError("data_dir", ErrInvalidInput)
	}
	if c.Engine.SummaryLimit < 4 {
		return NewConfigError("engine.summary_limit", ErrInvalidInput)
	}
	if c.Engine.StepTimeout < 0 {
		return NewConfigError("engine.step_timeout", ErrInvalidInput)
	}
	if c.Runs.MaxConcurrentRuns < 0 {
		return NewConfigError("runs.max_concurrent_runs", ErrInvalidInput)
	}
	if c.Runs.LogRetention < 0 {
		return NewConfigError("runs.log_retention", ErrInvalidInput)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return NewConfigError("log.format", fmt.Errorf("unsupported format %q: %w", c.Log.Format, ErrInvalidInput))
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return NewConfigError("log.level", err)
	}
	return nil
}

func ParseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q: %w", level, ErrInvalidInput)
}

type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config field %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{
		Field: field,
		Err:   err,
	}
}
