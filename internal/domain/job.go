package domain

import (
	"fmt"
	"time"
)

// JobOutcome is the tri-state result of a job. It is only meaningful once
// the job has finished.
type JobOutcome int

const (
	OutcomeUnknown JobOutcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o JobOutcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "success"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Job is a snapshot of one asynchronous backend operation. Snapshots are
// never mutated after they are decoded; polling produces a new snapshot.
//
// A job is terminal iff FinishedAt is set. A terminal job always has an
// Outcome of OutcomeSucceeded or OutcomeFailed and a non-nil Duration; a
// pending job has neither.
type Job struct {
	ID        int64      `json:"id"`
	LinodeID  int64      `json:"linode_id"`
	Action    string     `json:"action"` // e.g. "linode.boot", "disk.create"
	Label     string     `json:"label"`
	EnteredAt time.Time  `json:"entered_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`

	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Duration is the runtime in seconds reported by the host.
	Duration *int       `json:"duration,omitempty"`
	Message  string     `json:"message,omitempty"`
	Outcome  JobOutcome `json:"outcome"`
}

// IsTerminal reports whether the job has finished, regardless of outcome.
func (j *Job) IsTerminal() bool {
	return j != nil && j.FinishedAt != nil
}

// Succeeded reports whether the job finished successfully.
func (j *Job) Succeeded() bool {
	return j.IsTerminal() && j.Outcome == OutcomeSucceeded
}

// Normalize enforces the terminality invariant on a freshly decoded
// snapshot. A snapshot whose finish time and success flag disagree is
// treated as still pending.
func (j Job) Normalize() Job {
	if j.FinishedAt != nil && j.Outcome != OutcomeUnknown {
		return j
	}
	j.FinishedAt = nil
	j.Outcome = OutcomeUnknown
	j.Duration = nil
	return j
}

func (j *Job) String() string {
	if j == nil {
		return "<no job>"
	}
	return fmt.Sprintf("job %d (%s) on linode %d: %s", j.ID, j.Action, j.LinodeID, j.Outcome)
}
