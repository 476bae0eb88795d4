package domain

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrInvalidInput   = errors.New("invalid input")
	ErrClosed         = errors.New("closed")
	ErrRunCancelled   = errors.New("run cancelled")
	ErrAtCapacity     = errors.New("too many active runs")
)

// Compile failure reasons. Every CompileError unwraps to one of these.
var (
	ErrInvalidEdgeReference      = errors.New("edge references a node that does not exist")
	ErrMultiBranchUnsupported    = errors.New("node has more than one incoming or outgoing edge")
	ErrMissingEntryNode          = errors.New("workflow has no entry node")
	ErrMultipleEntryNodes        = errors.New("workflow has more than one entry node")
	ErrCyclicOrDisconnectedGraph = errors.New("workflow contains a cycle or a disconnected node")
	ErrDuplicateNodeID           = errors.New("node id is declared more than once")
)

type CompileError struct {
	Reason  error
	NodeID  string
	Message string
}

func (e *CompileError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.NodeID != "" {
		return fmt.Sprintf("%v: %s", e.Reason, e.NodeID)
	}
	return e.Reason.Error()
}

func (e *CompileError) Unwrap() error {
	return e.Reason
}

func NewCompileError(reason error, nodeID, message string) *CompileError {
	return &CompileError{
		Reason:  reason,
		NodeID:  nodeID,
		Message: message,
	}
}

// Code is a short stable name for the failure reason, used as a metric label.
func (e *CompileError) Code() string {
	switch {
	case errors.Is(e.Reason, ErrInvalidEdgeReference):
		return "invalid_edge"
	case errors.Is(e.Reason, ErrMultiBranchUnsupported):
		return "multi_branch"
	case errors.Is(e.Reason, ErrMissingEntryNode):
		return "missing_entry"
	case errors.Is(e.Reason, ErrMultipleEntryNodes):
		return "multiple_entries"
	case errors.Is(e.Reason, ErrCyclicOrDisconnectedGraph):
		return "cyclic_or_disconnected"
	case errors.Is(e.Reason, ErrDuplicateNodeID):
		return "duplicate_node"
	}
	return "unknown"
}

func IsCompileError(err error) bool {
	var compileErr *CompileError
	return errors.As(err, &compileErr)
}

// StepError is a fatal handler failure inside a run.
type StepError struct {
	StepID string
	Label  string
	Type   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s) failed: %v", e.Label, e.StepID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func NewStepError(step ExecutionStep, err error) *StepError {
	return &StepError{
		StepID: step.ID,
		Label:  step.Label,
		Type:   step.Type,
		Err:    err,
	}
}

func IsStepError(err error) bool {
	var stepErr *StepError
	return errors.As(err, &stepErr)
}

type NodePanicError struct {
	StepID      string      `json:"step_id"`
	NodeType    string      `json:"node_type"`
	PanicValue  interface{} `json:"panic_value"`
	StackTrace  string      `json:"stack_trace"`
	Timestamp   time.Time   `json:"timestamp"`
	RecoveredAt string      `json:"recovered_at"`
}

func (e *NodePanicError) Error() string {
	return fmt.Sprintf("handler for %s panicked: %v", e.NodeType, e.PanicValue)
}

func NewPanicError(stepID, nodeType string, panicValue interface{}) *NodePanicError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)

	pc, file, line, ok := runtime.Caller(2)
	recoveredAt := "unknown"
	if ok {
		fn := runtime.FuncForPC(pc)
		if fn != nil {
			recoveredAt = fn.Name() + " at " + file + ":" + strconv.Itoa(line)
		}
	}

	return &NodePanicError{
		StepID:      stepID,
		NodeType:    nodeType,
		PanicValue:  panicValue,
		StackTrace:  string(buf[:n]),
		Timestamp:   time.Now(),
		RecoveredAt: recoveredAt,
	}
}

type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

func NewNotFoundError(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func IsAlreadyStarted(err error) bool {
	return errors.Is(err, ErrAlreadyStarted)
}

func IsNotStarted(err error) bool {
	return errors.Is(err, ErrNotStarted)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsAtCapacity(err error) bool {
	return errors.Is(err, ErrAtCapacity)
}

func IsRunCancelled(err error) bool {
	return errors.Is(err, ErrRunCancelled)
}
