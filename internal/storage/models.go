package storage

import (
	"encoding/json"
	"time"
)

// Run is the record of one pipeline execution. Runs are written by the
// pipeline and read only by the operator CLI: no run ever reads a record
// written by another run, so runs stay isolated from each other.
type Run struct {
	ID           int64       `json:"id"`
	RunID        string      `json:"run_id"`
	TriggerName  string      `json:"trigger_name"`
	MessageID    string      `json:"message_id"`
	FromAddr     string      `json:"from"`
	Subject      string      `json:"subject"`
	Status       RunStatus   `json:"status"`
	ErrorKind    string      `json:"error_kind,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ReceivedAt   time.Time   `json:"received_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// RunStatus represents the state of a pipeline run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StepLog is one step record within a run's audit trail
type StepLog struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Step      string    `json:"step"`
	Detail    string    `json:"detail,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  int64     `json:"duration_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// Extraction stores what the model returned for a run
type Extraction struct {
	ID             int64           `json:"id"`
	RunID          string          `json:"run_id"`
	Summary        string          `json:"summary"`
	AccountID      string          `json:"account_id"`
	SuggestedReply string          `json:"suggested_reply"`
	Invoices       json.RawMessage `json:"invoices"`
	Model          string          `json:"model"`
	TotalTokens    int             `json:"total_tokens"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RunStats summarizes run outcomes for the operator
type RunStats struct {
	TotalRuns     int64 `json:"total_runs"`
	RunningRuns   int64 `json:"running_runs"`
	CompletedRuns int64 `json:"completed_runs"`
	FailedRuns    int64 `json:"failed_runs"`
}
