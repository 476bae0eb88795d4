package domain

import "time"

type DebugEventKind string

const (
	DebugEventStart     DebugEventKind = "start"
	DebugEventCompleted DebugEventKind = "completed"
	DebugEventError     DebugEventKind = "error"
	DebugEventOverride  DebugEventKind = "override"
)

type DebugEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	StepID    string                 `json:"step_id"`
	StepType  string                 `json:"step_type"`
	Event     DebugEventKind         `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
}
