package debugger

import (
	"sync"
	"time"

	"github.com/eleven-am/triggerflow/internal/domain"
)

// NodeDebugger collects an append-only timeline of step events for one
// execution. Create one per run.
type NodeDebugger struct {
	mu     sync.Mutex
	events []domain.DebugEvent
	now    func() time.Time
}

func New() *NodeDebugger {
	return &NodeDebugger{now: time.Now}
}

func NewWithClock(now func() time.Time) *NodeDebugger {
	if now == nil {
		now = time.Now
	}
	return &NodeDebugger{now: now}
}

func (d *NodeDebugger) Record(step domain.ExecutionStep, kind domain.DebugEventKind, payload map[string]interface{}) {
	copied := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		copied[k] = v
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, domain.DebugEvent{
		Timestamp: d.now().UTC(),
		StepID:    step.ID,
		StepType:  step.Type,
		Event:     kind,
		Payload:   copied,
	})
}

func (d *NodeDebugger) Timeline(stepID string) []domain.DebugEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []domain.DebugEvent
	for _, e := range d.events {
		if e.StepID == stepID {
			out = append(out, e)
		}
	}
	return out
}

func (d *NodeDebugger) Events() []domain.DebugEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]domain.DebugEvent, len(d.events))
	copy(out, d.events)
	return out
}

func (d *NodeDebugger) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}
