package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eleven-am/triggerflow"
	"github.com/eleven-am/triggerflow/internal/domain"
)

// Version is set at build time via -ldflags "-X main.Version=X.Y.Z".
var Version = "0.0.0-dev"

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "triggerflow",
	Short: "Compile and run linear workflow graphs",
	Long: `triggerflow compiles workflow graphs into linear execution plans and runs
them, streaming each run's log.

Commands:
  serve              Serve the workflow and run API over HTTP
  run <file>         Execute a workflow file and print its log
  validate <file>    Compile a workflow file and print the plan

Workflow files may be JSON or YAML.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig resolves the configuration file and flag overrides and installs
// the process logger.
func loadConfig() (*triggerflow.Config, error) {
	config := triggerflow.DefaultConfig()
	if configPath != "" {
		loaded, err := triggerflow.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	if logLevel != "" {
		config.Log.Level = logLevel
	}
	if logFormat != "" {
		config.Log.Format = logFormat
	}

	level, err := domain.ParseLogLevel(config.Log.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if config.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	config.Logger = slog.New(handler)
	slog.SetDefault(config.Logger)

	return config, config.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
