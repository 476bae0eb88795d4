package events

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/triggerflow/internal/domain"
)

// Manager fans run lifecycle events out to registered handlers. Handlers run
// synchronously on the publishing goroutine; a panicking handler is logged
// and does not affect the others.
type Manager struct {
	logger *slog.Logger

	mu                sync.RWMutex
	startedHandlers   []func(*domain.RunStartedEvent)
	completedHandlers []func(*domain.RunCompletedEvent)
	failedHandlers    []func(*domain.RunFailedEvent)
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		logger: logger.With("component", "event-manager"),
	}
}

func (m *Manager) OnRunStarted(handler func(*domain.RunStartedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedHandlers = append(m.startedHandlers, handler)
}

func (m *Manager) OnRunCompleted(handler func(*domain.RunCompletedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completedHandlers = append(m.completedHandlers, handler)
}

func (m *Manager) OnRunFailed(handler func(*domain.RunFailedEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedHandlers = append(m.failedHandlers, handler)
}

func (m *Manager) PublishRunStarted(event *domain.RunStartedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.RunStartedEvent), len(m.startedHandlers))
	copy(handlers, m.startedHandlers)
	m.mu.RUnlock()

	m.logger.Debug("run started", "run_id", event.RunID, "workflow_id", event.WorkflowID, "steps", event.Steps)
	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) PublishRunCompleted(event *domain.RunCompletedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.RunCompletedEvent), len(m.completedHandlers))
	copy(handlers, m.completedHandlers)
	m.mu.RUnlock()

	m.logger.Debug("run completed", "run_id", event.RunID, "lines", event.Lines, "duration", event.Duration)
	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) PublishRunFailed(event *domain.RunFailedEvent) {
	m.mu.RLock()
	handlers := make([]func(*domain.RunFailedEvent), len(m.failedHandlers))
	copy(handlers, m.failedHandlers)
	m.mu.RUnlock()

	m.logger.Debug("run failed", "run_id", event.RunID, "error", event.Error, "cancelled", event.Cancelled)
	for _, handler := range handlers {
		m.safeCall(func() { handler(event) })
	}
}

func (m *Manager) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("event handler panicked", "panic", r)
		}
	}()
	fn()
}
