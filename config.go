package triggerflow

import (
	"github.com/eleven-am/triggerflow/internal/domain"
)

type Config = domain.Config

type LogConfig = domain.LogConfig

type EngineConfig = domain.EngineConfig

type RunsConfig = domain.RunsConfig

type HTTPConfig = domain.HTTPConfig

type ObservabilityConfig = domain.ObservabilityConfig

type ConfigError = domain.ConfigError

// DefaultConfig returns a configuration that persists under ./data and
// serves the API on :8000.
func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

// LoadConfig reads a YAML file layered over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	return domain.LoadConfig(path)
}
