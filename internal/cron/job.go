package cron

import (
	"time"

	"github.com/google/uuid"
)

// LastStatus is the outcome of the most recent fire of a job.
type LastStatus string

const (
	StatusIdle  LastStatus = "idle"
	StatusOK    LastStatus = "ok"
	StatusError LastStatus = "error"
)

// JobState tracks the mutable scheduling/execution state of a Job, separate
// from its immutable definition.
type JobState struct {
	NextRunAtMS int64      `json:"next_run_at_ms,omitempty"`
	LastRunAtMS int64      `json:"last_run_at_ms,omitempty"`
	LastStatus  LastStatus `json:"last_status"`
	LastError   string     `json:"last_error,omitempty"`
	RunCount    int        `json:"run_count"`
}

// Job is a persisted scheduled task handed to the Subagent Manager on fire.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Task           string   `json:"task"`
	Priority       int      `json:"priority"`
	State          JobState `json:"state"`
	CreatedAtMS    int64    `json:"created_at_ms"`
	DeleteAfterRun bool     `json:"delete_after_run"`
}

func newJobID() string {
	return uuid.NewString()[:8]
}
