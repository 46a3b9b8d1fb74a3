package dto

import "time"

// RunStatus is the outcome of a workflow run.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPaused    RunStatus = "paused"
	RunStatusFailed    RunStatus = "failed"
	RunStatusStopped   RunStatus = "stopped"
)

// RunState is the transient execution state owned by the store. It is never
// persisted and is reset on every workflow load.
type RunState struct {
	IsRunning      bool   `json:"isRunning"`
	CurrentNodeID  string `json:"currentNodeId,omitempty"`
	PausedAtNodeID string `json:"pausedAtNodeId,omitempty"`
}

// RunResult summarizes one ExecuteWorkflow or RegenerateNode call.
type RunResult struct {
	RunID        string        `json:"run_id"`
	Status       RunStatus     `json:"status"`
	StartNodeID  string        `json:"start_node_id,omitempty"`
	Executed     []string      `json:"executed"`
	PausedAt     string        `json:"paused_at,omitempty"`
	FailedNodeID string        `json:"failed_node_id,omitempty"`
	Error        string        `json:"error,omitempty"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
}

// Finish stamps the end time and duration.
func (r *RunResult) Finish(status RunStatus) *RunResult {
	r.Status = status
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	return r
}

// NotificationLevel is the severity of a user-facing notification.
type NotificationLevel string

const (
	NotifyInfo    NotificationLevel = "info"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notification is a user-facing message from the scheduler or a background
// job.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
	NodeID  string            `json:"node_id,omitempty"`
	Time    time.Time         `json:"time"`
}
