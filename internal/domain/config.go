package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	DataDir  string       `json:"data_dir" yaml:"data_dir"`
	InMemory bool         `json:"in_memory" yaml:"in_memory"`
	Logger   *slog.Logger `json:"-" yaml:"-"`

	Log           LogConfig           `json:"log" yaml:"log"`
	Engine        EngineConfig        `json:"engine" yaml:"engine"`
	Runs          RunsConfig          `json:"runs" yaml:"runs"`
	HTTP          HTTPConfig          `json:"http" yaml:"http"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type EngineConfig struct {
	// StepTimeout bounds a single handler call; zero disables the bound.
	StepTimeout  time.Duration `json:"step_timeout" yaml:"step_timeout"`
	SummaryLimit int           `json:"summary_limit" yaml:"summary_limit"`
}

type RunsConfig struct {
	MaxConcurrentRuns int           `json:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	LogRetention      time.Duration `json:"log_retention" yaml:"log_retention"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type HTTPConfig struct {
	Addr              string        `json:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	AllowedOrigins    []string      `json:"allowed_origins" yaml:"allowed_origins"`
}

type ObservabilityConfig struct {
	EnableMetrics bool   `json:"enable_metrics" yaml:"enable_metrics"`
	MetricsPath   string `json:"metrics_path" yaml:"metrics_path"`
}
