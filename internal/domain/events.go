package domain

import (
	"time"
)

type RunStartedEvent struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	Steps      int       `json:"steps"`
	StartedAt  time.Time `json:"started_at"`
}

type RunCompletedEvent struct {
	RunID       string        `json:"run_id"`
	WorkflowID  string        `json:"workflow_id"`
	Lines       int           `json:"lines"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

type RunFailedEvent struct {
	RunID      string        `json:"run_id"`
	WorkflowID string        `json:"workflow_id"`
	Error      string        `json:"error"`
	Cancelled  bool          `json:"cancelled"`
	FailedAt   time.Time     `json:"failed_at"`
	Duration   time.Duration `json:"duration"`
}
