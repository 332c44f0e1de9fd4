package dto

import (
	"time"

	"github.com/noah-isme/timetable-api/internal/scheduler"
)

// RunTrigger records what started a scheduling run.
type RunTrigger string

const (
	TriggerAPI  RunTrigger = "API"
	TriggerCron RunTrigger = "CRON"
)

// RunStatus is the lifecycle position of a submitted run.
type RunStatus string

const (
	RunQueued    RunStatus = "QUEUED"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// Finished reports whether the run reached a terminal state.
func (s RunStatus) Finished() bool {
	return s == RunCompleted || s == RunFailed
}

// RunSchedulerRequest starts a scheduling run. A nil seed uses the configured default.
type RunSchedulerRequest struct {
	Seed    *int64 `json:"seed" validate:"omitempty,gte=0"`
	Rebuild bool   `json:"rebuild"`
}

// SchedulerRunQuery carries query-string switches of the run endpoint.
type SchedulerRunQuery struct {
	Sync bool `form:"sync"`
}

// SchedulerRunResponse describes a run and, once finished, its report.
type SchedulerRunResponse struct {
	RunID       string            `json:"runId"`
	Status      RunStatus         `json:"status"`
	Trigger     RunTrigger        `json:"trigger"`
	Seed        int64             `json:"seed"`
	Rebuild     bool              `json:"rebuild"`
	SubmittedAt time.Time         `json:"submittedAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	FinishedAt  *time.Time        `json:"finishedAt,omitempty"`
	Error       string            `json:"error,omitempty"`
	Report      *scheduler.Report `json:"report,omitempty"`
}
