package core

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"

	"github.com/eleven-am/triggerflow/internal/adapters/compiler"
	"github.com/eleven-am/triggerflow/internal/adapters/engine"
	"github.com/eleven-am/triggerflow/internal/adapters/events"
	"github.com/eleven-am/triggerflow/internal/adapters/health"
	"github.com/eleven-am/triggerflow/internal/adapters/httpapi"
	"github.com/eleven-am/triggerflow/internal/adapters/metrics"
	"github.com/eleven-am/triggerflow/internal/adapters/node_registry"
	"github.com/eleven-am/triggerflow/internal/adapters/runs"
	"github.com/eleven-am/triggerflow/internal/adapters/storage"
	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
)

// Manager wires the compiler, engine, run manager, store and HTTP API into
// one process.
type Manager struct {
	config *domain.Config
	logger *slog.Logger

	storage      ports.StoragePort
	nodeRegistry *node_registry.Manager
	compiler     *compiler.Compiler
	engine       *engine.Engine
	eventManager *events.Manager
	collector    *metrics.Collector
	runs         *runs.Manager
	api          *httpapi.Server

	mu      sync.Mutex
	started bool
	stopped bool
}

func New(dataDir string, logger *slog.Logger) (*Manager, error) {
	config := domain.DefaultConfig().WithDataDir(dataDir).WithLogger(logger)
	return NewWithConfig(config)
}

func NewWithConfig(config *domain.Config) (*Manager, error) {
	if config == nil {
		config = domain.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "triggerflow")

	store, err := storage.Open(storage.Options{
		Dir:          config.DataDir,
		InMemory:     config.InMemory,
		LogRetention: config.Runs.LogRetention,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	registry := node_registry.NewManager(logger)
	if err := node_registry.RegisterSimulated(registry, nil); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("register built-in handlers: %w", err)
	}

	var (
		collector *metrics.Collector
		sink      ports.MetricsPort = metrics.Noop{}
		exporter  http.Handler
	)
	if config.Observability.EnableMetrics {
		collector = metrics.NewCollector()
		sink = collector
		exporter = collector.Handler()
	}

	comp := compiler.NewCompiler(logger)
	eng := engine.NewEngine(registry, config.Engine, logger).WithMetrics(sink)
	eventManager := events.NewManager(logger)

	runManager := runs.NewManager(runs.Dependencies{
		Compiler: comp,
		Engine:   eng,
		Store:    store,
		Timeline: store,
		Events:   eventManager,
		Metrics:  sink,
		Config:   config.Runs,
		Logger:   logger,
	})

	api := httpapi.NewServer(config.HTTP, config.Observability.MetricsPath, httpapi.Dependencies{
		Workflows: store,
		Runs:      store,
		Timelines: store,
		Compiler:  comp,
		Manager:   runManager,
		Health:    health.NewHealthChecker(runManager, store, logger),
		Metrics:   exporter,
		Logger:    logger,
	})

	return &Manager{
		config:       config,
		logger:       logger,
		storage:      store,
		nodeRegistry: registry,
		compiler:     comp,
		engine:       eng,
		eventManager: eventManager,
		collector:    collector,
		runs:         runManager,
		api:          api,
	}, nil
}

// Start begins serving the HTTP API. With an empty listen address the
// manager runs headless and only the Go API is available.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return domain.ErrClosed
	}
	if m.started {
		return domain.ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.config.HTTP.Addr != "" {
		if err := m.api.Start(); err != nil {
			return err
		}
	}
	m.started = true
	m.logger.Info("triggerflow started", "http_addr", m.config.HTTP.Addr, "data_dir", m.config.DataDir, "in_memory", m.config.InMemory)
	return nil
}

// Stop shuts the API down, cancels live runs and closes the store. It is
// safe to call more than once.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	if m.config.Runs.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Runs.ShutdownTimeout)
		defer cancel()
	}

	var firstErr error
	if started && m.config.HTTP.Addr != "" {
		if err := m.api.Shutdown(ctx); err != nil {
			m.logger.Error("http shutdown failed", "error", err)
			firstErr = err
		}
	}
	if err := m.runs.Shutdown(ctx); err != nil {
		m.logger.Error("run shutdown failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if err := m.storage.Close(); err != nil {
		m.logger.Error("storage close failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	m.logger.Info("triggerflow stopped")
	return firstErr
}

func (m *Manager) RegisterNode(handler ports.NodeHandler) error {
	return m.nodeRegistry.RegisterHandler(handler)
}

func (m *Manager) ReplaceNode(handler ports.NodeHandler) error {
	return m.nodeRegistry.ReplaceHandler(handler)
}

func (m *Manager) UnregisterNode(nodeType string) error {
	return m.nodeRegistry.UnregisterHandler(nodeType)
}

func (m *Manager) NodeTypes() []string {
	return m.nodeRegistry.ListHandlers()
}

func (m *Manager) Compile(graph *domain.WorkflowGraph) (*domain.ExecutionPlan, error) {
	return m.compiler.Compile(graph)
}

func (m *Manager) Execute(ctx context.Context, graph *domain.WorkflowGraph) (string, error) {
	return m.runs.Start(ctx, graph)
}

func (m *Manager) ExecuteWorkflow(ctx context.Context, workflowID string) (string, error) {
	record, err := m.storage.GetWorkflow(ctx, workflowID)
	if err != nil {
		return "", err
	}
	graph := record.Graph
	graph.ID = record.ID
	graph.Name = record.Name
	graph.Description = record.Description
	return m.runs.Start(ctx, &graph)
}

// StreamLogs yields the run's log from the first line, following it live
// until the run ends.
func (m *Manager) StreamLogs(ctx context.Context, runID string) iter.Seq2[string, error] {
	return m.runs.Stream(ctx, runID)
}

func (m *Manager) WaitForRun(ctx context.Context, runID string) error {
	return m.runs.WaitFor(ctx, runID)
}

func (m *Manager) CancelRun(runID string) error {
	return m.runs.Cancel(runID)
}

func (m *Manager) ActiveRuns() []string {
	return m.runs.Active()
}

func (m *Manager) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.storage.GetRun(ctx, runID)
}

func (m *Manager) ListRuns(ctx context.Context, workflowID string) ([]*domain.RunRecord, error) {
	return m.storage.ListRuns(ctx, workflowID)
}

func (m *Manager) GetTimeline(ctx context.Context, runID string) ([]domain.DebugEvent, error) {
	return m.storage.GetTimeline(ctx, runID)
}

func (m *Manager) SaveWorkflow(ctx context.Context, wf *domain.WorkflowRecord) error {
	return m.storage.SaveWorkflow(ctx, wf)
}

func (m *Manager) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowRecord, error) {
	return m.storage.GetWorkflow(ctx, id)
}

func (m *Manager) ListWorkflows(ctx context.Context) ([]*domain.WorkflowRecord, error) {
	return m.storage.ListWorkflows(ctx)
}

func (m *Manager) DeleteWorkflow(ctx context.Context, id string) error {
	return m.storage.DeleteWorkflow(ctx, id)
}

func (m *Manager) OnRunStarted(handler func(*domain.RunStartedEvent)) {
	m.eventManager.OnRunStarted(handler)
}

func (m *Manager) OnRunCompleted(handler func(*domain.RunCompletedEvent)) {
	m.eventManager.OnRunCompleted(handler)
}

func (m *Manager) OnRunFailed(handler func(*domain.RunFailedEvent)) {
	m.eventManager.OnRunFailed(handler)
}

func (m *Manager) Handler() http.Handler {
	return m.api
}

func (m *Manager) HTTPAddr() string {
	return m.api.Addr()
}
