package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/eleven-am/triggerflow"
	"github.com/eleven-am/triggerflow/internal/xjson"
)

var (
	httpAddr   string
	inMemory   bool
	persistRun bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow and run API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Execute a workflow file and print its log",
	Long: `Compiles and executes the workflow in <file>, printing each log line as
it is produced. The command exits non-zero when the run fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflowFile,
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Compile a workflow file and print the plan",
	Args:  cobra.ExactArgs(1),
	RunE:  validateWorkflowFile,
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "addr", "", "listen address, overrides the configuration")
	serveCmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep all data in memory")
	runCmd.Flags().BoolVar(&persistRun, "persist", false, "persist the run under the configured data directory")
}

func runServe(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	if httpAddr != "" {
		config.HTTP.Addr = httpAddr
	}
	if inMemory {
		config.InMemory = true
	}

	manager, err := triggerflow.NewWithConfig(config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		_ = manager.Stop(context.Background())
		return err
	}

	<-ctx.Done()
	config.Logger.Info("shutting down")
	return manager.Stop(context.Background())
}

func runWorkflowFile(cmd *cobra.Command, args []string) error {
	graph, err := readWorkflow(args[0])
	if err != nil {
		return err
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}
	config.HTTP.Addr = ""
	config.Observability.EnableMetrics = false
	config.InMemory = !persistRun

	manager, err := triggerflow.NewWithConfig(config)
	if err != nil {
		return err
	}
	defer manager.Stop(context.Background())

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Start(ctx); err != nil {
		return err
	}

	runID, err := manager.Execute(ctx, graph)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for line, err := range manager.StreamLogs(ctx, runID) {
		if err != nil {
			_ = manager.CancelRun(runID)
			return err
		}
		fmt.Fprintln(out, line)
	}

	if err := manager.WaitForRun(context.Background(), runID); err != nil {
		return err
	}
	run, err := manager.GetRun(context.Background(), runID)
	if err != nil {
		return err
	}
	if run.Status != triggerflow.RunStatusCompleted {
		return fmt.Errorf("run %s %s", runID, run.Status)
	}
	return nil
}

func validateWorkflowFile(cmd *cobra.Command, args []string) error {
	graph, err := readWorkflow(args[0])
	if err != nil {
		return err
	}

	plan, err := triggerflow.Compile(graph)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "workflow %s: %d steps\n", displayName(graph), len(plan.Steps))
	for i, step := range plan.Steps {
		marker := ""
		if _, ok := plan.Override(step.ID); ok {
			marker = " [debug override]"
		}
		fmt.Fprintf(out, "  %d. %s (%s)%s\n", i+1, step.Label, step.Type, marker)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func displayName(graph *triggerflow.WorkflowGraph) string {
	if graph.Name != "" {
		return graph.Name
	}
	if graph.ID != "" {
		return graph.ID
	}
	return "<unnamed>"
}

// readWorkflow decodes a workflow file, choosing YAML for .yaml and .yml and
// JSON otherwise.
func readWorkflow(path string) (*triggerflow.WorkflowGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}

	var graph triggerflow.WorkflowGraph
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &graph)
	default:
		err = xjson.Unmarshal(data, &graph)
	}
	if err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", path, errors.Join(err, triggerflow.ErrInvalidInput))
	}

	if graph.ID == "" {
		graph.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &graph, nil
}
