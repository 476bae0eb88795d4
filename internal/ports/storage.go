package ports

import (
	"context"

	"github.com/eleven-am/triggerflow/internal/domain"
)

// LogSink persists run log lines. Appends for one run id are sequential and
// must be returned by GetLogs in append order; an unknown run yields an
// empty slice.
type LogSink interface {
	AppendLog(ctx context.Context, runID, message string) error
	GetLogs(ctx context.Context, runID string) ([]string, error)
}

type StatusSink interface {
	SetStatus(ctx context.Context, runID string, status domain.RunStatus) error
}

type RunStore interface {
	LogSink
	StatusSink
	CreateRun(ctx context.Context, run *domain.RunRecord) error
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
	ListRuns(ctx context.Context, workflowID string) ([]*domain.RunRecord, error)
}

type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, wf *domain.WorkflowRecord) error
	GetWorkflow(ctx context.Context, id string) (*domain.WorkflowRecord, error)
	ListWorkflows(ctx context.Context) ([]*domain.WorkflowRecord, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// TimelineStore keeps the debugger timeline of finished runs.
type TimelineStore interface {
	SaveTimeline(ctx context.Context, runID string, events []domain.DebugEvent) error
	GetTimeline(ctx context.Context, runID string) ([]domain.DebugEvent, error)
}

type StoragePort interface {
	RunStore
	WorkflowStore
	TimelineStore
	Close() error
}
