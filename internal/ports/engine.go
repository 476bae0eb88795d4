package ports

import (
	"context"
	"iter"

	"github.com/eleven-am/triggerflow/internal/domain"
)

// DebugRecorder observes step lifecycle events during one execution.
type DebugRecorder interface {
	Record(step domain.ExecutionStep, kind domain.DebugEventKind, payload map[string]interface{})
}

type CompilerPort interface {
	Compile(graph *domain.WorkflowGraph) (*domain.ExecutionPlan, error)
}

// EnginePort runs a compiled plan. The returned sequence is lazy: each line
// is produced when the consumer asks for it, and a non-nil error ends it.
type EnginePort interface {
	Execute(ctx context.Context, plan *domain.ExecutionPlan, debugger DebugRecorder) iter.Seq2[string, error]
}

type RunManagerPort interface {
	Start(ctx context.Context, graph *domain.WorkflowGraph) (string, error)
	Stream(ctx context.Context, runID string) iter.Seq2[string, error]
	WaitFor(ctx context.Context, runID string) error
	Cancel(runID string) error
	Active() []string
	Shutdown(ctx context.Context) error
}

// MetricsPort receives run and step measurements.
type MetricsPort interface {
	CompileFailed(reason string)
	RunStarted()
	RunFinished(status domain.RunStatus, seconds float64)
	StepFinished(nodeType string, outcome string, seconds float64)
	SubscriberAttached()
	SubscriberDetached()
}
