package runs

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eleven-am/triggerflow/internal/adapters/debugger"
	"github.com/eleven-am/triggerflow/internal/adapters/events"
	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
)

const FailurePrefix = "执行失败: "

type handle struct {
	runID      string
	workflowID string
	topic      *events.Topic
	cancel     context.CancelCauseFunc
	done       chan struct{}
}

// Manager owns the background runs of this process. Each run executes on
// its own goroutine, writes every line to the run store and then to the
// run's topic, and leaves the registry once the goroutine is done.
type Manager struct {
	compiler ports.CompilerPort
	engine   ports.EnginePort
	store    ports.RunStore
	timeline ports.TimelineStore
	events   *events.Manager
	metrics  ports.MetricsPort
	config   domain.RunsConfig
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu     sync.Mutex
	runs   map[string]*handle
	closed bool
	wg     sync.WaitGroup
}

type Dependencies struct {
	Compiler ports.CompilerPort
	Engine   ports.EnginePort
	Store    ports.RunStore
	// Timeline is optional; when nil and Store implements
	// ports.TimelineStore, Store is used.
	Timeline ports.TimelineStore
	Events   *events.Manager
	Metrics  ports.MetricsPort
	Config   domain.RunsConfig
	Logger   *slog.Logger
}

func NewManager(deps Dependencies) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "run-manager")

	timeline := deps.Timeline
	if timeline == nil {
		if ts, ok := deps.Store.(ports.TimelineStore); ok {
			timeline = ts
		}
	}

	eventManager := deps.Events
	if eventManager == nil {
		eventManager = events.NewManager(logger)
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Manager{
		compiler:   deps.Compiler,
		engine:     deps.Engine,
		store:      deps.Store,
		timeline:   timeline,
		events:     eventManager,
		metrics:    metrics,
		config:     deps.Config,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		runs:       make(map[string]*handle),
	}
}

// Start compiles graph and launches it in the background. A graph that does
// not compile never becomes a run. ctx only bounds the synchronous part;
// the run itself outlives the caller.
func (m *Manager) Start(ctx context.Context, graph *domain.WorkflowGraph) (string, error) {
	plan, err := m.compiler.Compile(graph)
	if err != nil {
		var compileErr *domain.CompileError
		if errors.As(err, &compileErr) {
			m.metrics.CompileFailed(compileErr.Code())
		}
		return "", err
	}

	runID := m.newID()
	startedAt := m.now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", fmt.Errorf("run manager: %w", domain.ErrClosed)
	}
	if limit := m.config.MaxConcurrentRuns; limit > 0 && len(m.runs) >= limit {
		m.mu.Unlock()
		return "", fmt.Errorf("run manager: %d runs in flight: %w", limit, domain.ErrAtCapacity)
	}

	record := &domain.RunRecord{
		ID:         runID,
		WorkflowID: plan.WorkflowID,
		Status:     domain.RunStatusPending,
		CreatedAt:  startedAt,
		UpdatedAt:  startedAt,
	}
	if err := m.store.CreateRun(ctx, record); err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("create run: %w", err)
	}

	runCtx, cancel := context.WithCancelCause(m.baseCtx)
	h := &handle{
		runID:      runID,
		workflowID: plan.WorkflowID,
		topic:      events.NewTopic(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	m.runs[runID] = h
	m.wg.Add(2)
	m.mu.Unlock()

	m.metrics.RunStarted()
	m.logger.Info("run started", "run_id", runID, "workflow_id", plan.WorkflowID, "steps", len(plan.Steps))
	m.events.PublishRunStarted(&domain.RunStartedEvent{
		RunID:      runID,
		WorkflowID: plan.WorkflowID,
		Steps:      len(plan.Steps),
		StartedAt:  startedAt,
	})

	go m.execute(runCtx, h, plan, startedAt)
	go m.watch(h)

	return runID, nil
}

func (m *Manager) watch(h *handle) {
	defer m.wg.Done()
	<-h.done

	m.mu.Lock()
	delete(m.runs, h.runID)
	m.mu.Unlock()
}

func (m *Manager) execute(ctx context.Context, h *handle, plan *domain.ExecutionPlan, startedAt time.Time) {
	defer m.wg.Done()
	defer close(h.done)
	defer h.topic.Close()
	defer h.cancel(nil)

	logger := m.logger.With("run_id", h.runID, "workflow_id", h.workflowID)
	// Status and log writes must land even when the run was cancelled.
	storeCtx := context.WithoutCancel(ctx)
	recorder := debugger.New()

	if err := m.store.SetStatus(storeCtx, h.runID, domain.RunStatusRunning); err != nil {
		logger.Warn("failed to mark run running", "error", err)
	}

	lines, runErr := m.consume(ctx, storeCtx, h, plan, recorder)

	status := domain.RunStatusCompleted
	if runErr != nil {
		status = domain.RunStatusFailed
		if !errors.Is(runErr, errStoreWrite) {
			_ = m.emit(storeCtx, h, FailurePrefix+runErr.Error())
		}
	}

	if err := m.store.SetStatus(storeCtx, h.runID, status); err != nil {
		logger.Warn("failed to record final run status", "status", status, "error", err)
	}

	if m.timeline != nil {
		if err := m.timeline.SaveTimeline(storeCtx, h.runID, recorder.Events()); err != nil {
			logger.Warn("failed to persist debug timeline", "error", err)
		}
	}

	finishedAt := m.now()
	duration := finishedAt.Sub(startedAt)
	m.metrics.RunFinished(status, duration.Seconds())

	if runErr != nil {
		cancelled := errors.Is(runErr, domain.ErrRunCancelled)
		logger.Warn("run failed", "error", runErr, "cancelled", cancelled, "duration", duration)
		m.events.PublishRunFailed(&domain.RunFailedEvent{
			RunID:      h.runID,
			WorkflowID: h.workflowID,
			Error:      runErr.Error(),
			Cancelled:  cancelled,
			FailedAt:   finishedAt,
			Duration:   duration,
		})
		return
	}

	logger.Info("run completed", "lines", lines, "duration", duration)
	m.events.PublishRunCompleted(&domain.RunCompletedEvent{
		RunID:       h.runID,
		WorkflowID:  h.workflowID,
		Lines:       lines,
		CompletedAt: finishedAt,
		Duration:    duration,
	})
}

var errStoreWrite = errors.New("run log write failed")

func (m *Manager) consume(ctx, storeCtx context.Context, h *handle, plan *domain.ExecutionPlan, recorder ports.DebugRecorder) (lines int, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("run panicked", "run_id", h.runID, "panic", r)
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()

	for line, stepErr := range m.engine.Execute(ctx, plan, recorder) {
		if stepErr != nil {
			if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
				return lines, cause
			}
			return lines, stepErr
		}
		if writeErr := m.emit(storeCtx, h, line); writeErr != nil {
			return lines, writeErr
		}
		lines++
	}
	return lines, nil
}

// emit writes one line durably and then makes it visible to live
// subscribers. A line that failed to persist is never published, so topic
// positions always match log positions.
func (m *Manager) emit(ctx context.Context, h *handle, line string) error {
	if err := m.store.AppendLog(ctx, h.runID, line); err != nil {
		m.logger.Error("failed to append run log", "run_id", h.runID, "error", err)
		return fmt.Errorf("%w: %w", errStoreWrite, err)
	}
	if err := h.topic.Publish(line); err != nil {
		m.logger.Debug("publish after topic close", "run_id", h.runID, "error", err)
	}
	return nil
}

func (m *Manager) lookup(runID string) *handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[runID]
}

// Stream yields every line the run has produced so far and, while the run is
// still live, every line after that until it ends. An unknown or finished
// run yields its stored log only.
func (m *Manager) Stream(ctx context.Context, runID string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		h := m.lookup(runID)

		snapshot, err := m.store.GetLogs(ctx, runID)
		if err != nil {
			yield("", err)
			return
		}
		for _, line := range snapshot {
			if !yield(line, nil) {
				return
			}
		}
		if h == nil {
			return
		}

		m.metrics.SubscriberAttached()
		defer m.metrics.SubscriberDetached()

		for line, err := range h.topic.Subscribe(ctx, len(snapshot)) {
			if !yield(line, err) || err != nil {
				return
			}
		}
	}
}

// WaitFor blocks until the run's goroutine has finished. Unknown or already
// finished runs return immediately.
func (m *Manager) WaitFor(ctx context.Context, runID string) error {
	h := m.lookup(runID)
	if h == nil {
		return nil
	}

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) Cancel(runID string) error {
	h := m.lookup(runID)
	if h == nil {
		return domain.NewNotFoundError("active run", runID)
	}

	m.logger.Info("cancelling run", "run_id", runID)
	h.cancel(domain.ErrRunCancelled)
	return nil
}

func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) Draining() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Shutdown refuses new runs, cancels the live ones and waits for their
// goroutines to finish or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	live := make([]*handle, 0, len(m.runs))
	for _, h := range m.runs {
		live = append(live, h)
	}
	m.mu.Unlock()

	for _, h := range live {
		h.cancel(domain.ErrRunCancelled)
	}
	m.baseCancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("run manager stopped", "cancelled_runs", len(live))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("run manager shutdown: %w", ctx.Err())
	}
}

type noopMetrics struct{}

func (noopMetrics) CompileFailed(string)                  {}
func (noopMetrics) RunStarted()                           {}
func (noopMetrics) RunFinished(domain.RunStatus, float64) {}
func (noopMetrics) StepFinished(string, string, float64)  {}
func (noopMetrics) SubscriberAttached()                   {}
func (noopMetrics) SubscriberDetached()                   {}
