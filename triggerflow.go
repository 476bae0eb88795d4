// Package triggerflow compiles workflow graphs into linear execution plans
// and runs them in the background, streaming each run's log to any number of
// observers.
//
// A workflow is a set of typed nodes joined by edges. The compiler accepts
// only straight chains: one entry node, at most one incoming and one outgoing
// edge per node, no cycles. Each node type is served by a NodeHandler; a node
// whose type has no handler passes its input through unchanged. A workflow
// may also carry debug overrides that replace a node's result with authored
// outputs.
//
// Basic usage:
//
//	manager, err := triggerflow.New("./data", logger)
//	if err != nil {
//	    return err
//	}
//	manager.Start(ctx)
//	defer manager.Stop(ctx)
//
//	runID, err := manager.Execute(ctx, &triggerflow.WorkflowGraph{
//	    ID:    "greeting",
//	    Nodes: []triggerflow.NodeSpec{{ID: "hook", Type: "trigger.http"}},
//	})
//	for line, err := range manager.StreamLogs(ctx, runID) {
//	    ...
//	}
package triggerflow

import (
	"log/slog"

	"github.com/eleven-am/triggerflow/internal/adapters/compiler"
	"github.com/eleven-am/triggerflow/internal/core"
	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
)

// Manager owns the store, the compiler, the engine, the background runs and
// the HTTP API of one process.
type Manager = core.Manager

// WorkflowGraph is an authored workflow: nodes, edges and optional debug
// overrides.
type WorkflowGraph = domain.WorkflowGraph

// NodeSpec is one node of a workflow graph.
type NodeSpec = domain.NodeSpec

// PortSpec is a connection point declared on a node. Ports are carried for
// editors and ignored by the compiler.
type PortSpec = domain.PortSpec

// EdgeSpec connects the output of one node to the input of the next.
type EdgeSpec = domain.EdgeSpec

// DebugConfig maps a node id, label or type to its override entry.
type DebugConfig = domain.DebugConfig

// OrderedMap keeps the member order of a JSON object, used for debug outputs
// authored as objects.
type OrderedMap = domain.OrderedMap

// ExecutionPlan is the compiled, linear form of a workflow.
type ExecutionPlan = domain.ExecutionPlan

// ExecutionStep is one node of an execution plan.
type ExecutionStep = domain.ExecutionStep

// DebugOverride replaces a step's handler call with authored outputs.
type DebugOverride = domain.DebugOverride

// WorkflowRecord is a stored workflow.
type WorkflowRecord = domain.WorkflowRecord

// RunRecord is a stored run with its log.
type RunRecord = domain.RunRecord

// RunStatus is the lifecycle state of a run.
type RunStatus = domain.RunStatus

const (
	RunStatusPending   = domain.RunStatusPending
	RunStatusRunning   = domain.RunStatusRunning
	RunStatusCompleted = domain.RunStatusCompleted
	RunStatusFailed    = domain.RunStatusFailed
)

// DebugEvent is one entry of a run's debug timeline.
type DebugEvent = domain.DebugEvent

// DebugEventKind names the step lifecycle point a DebugEvent records.
type DebugEventKind = domain.DebugEventKind

// NodeHandler executes one node type.
type NodeHandler = ports.NodeHandler

// NodeHandlerFunc adapts a function to NodeHandler.
type NodeHandlerFunc = ports.NodeHandlerFunc

// DefaultsProvider is implemented by handlers that ship default configuration.
type DefaultsProvider = ports.DefaultsProvider

// Run lifecycle events.
type RunStartedEvent = domain.RunStartedEvent
type RunCompletedEvent = domain.RunCompletedEvent
type RunFailedEvent = domain.RunFailedEvent

// Errors.
type CompileError = domain.CompileError
type StepError = domain.StepError

var (
	ErrNotFound                  = domain.ErrNotFound
	ErrInvalidInput              = domain.ErrInvalidInput
	ErrAtCapacity                = domain.ErrAtCapacity
	ErrRunCancelled              = domain.ErrRunCancelled
	ErrInvalidEdgeReference      = domain.ErrInvalidEdgeReference
	ErrMultiBranchUnsupported    = domain.ErrMultiBranchUnsupported
	ErrMissingEntryNode          = domain.ErrMissingEntryNode
	ErrMultipleEntryNodes        = domain.ErrMultipleEntryNodes
	ErrCyclicOrDisconnectedGraph = domain.ErrCyclicOrDisconnectedGraph
	ErrDuplicateNodeID           = domain.ErrDuplicateNodeID
)

// New creates a manager persisting to dataDir with default settings.
func New(dataDir string, logger *slog.Logger) (*Manager, error) {
	return core.New(dataDir, logger)
}

// NewWithConfig creates a manager from a full configuration.
//
//	config := triggerflow.DefaultConfig().
//	    WithInMemory().
//	    WithHTTPAddr("127.0.0.1:8000")
//	manager, err := triggerflow.NewWithConfig(config)
func NewWithConfig(config *Config) (*Manager, error) {
	return core.NewWithConfig(config)
}

// Compile validates graph and returns its plan without running it.
func Compile(graph *WorkflowGraph) (*ExecutionPlan, error) {
	return compiler.NewCompiler(slog.New(slog.DiscardHandler)).Compile(graph)
}

func IsCompileError(err error) bool {
	return domain.IsCompileError(err)
}

func IsStepError(err error) bool {
	return domain.IsStepError(err)
}

func IsNotFound(err error) bool {
	return domain.IsNotFound(err)
}
