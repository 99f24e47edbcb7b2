package jobstore

import (
	"time"

	"nathanbeddoewebdev/linops/internal/domain"
)

// Record statuses. All but StatusAbandoned match domain.JobOutcome's
// string form.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"

	// StatusAbandoned marks a job that will never be observed finishing,
	// because its Linode was deleted while it ran.
	StatusAbandoned = "abandoned"
)

// Record is a journaled job. It keeps enough of the job to resume waiting
// on it after the CLI exits.
type Record struct {
	// ID is the auto-increment primary key (assigned on insert).
	ID int64

	// JobID and LinodeID identify the job on the API.
	JobID    int64
	LinodeID int64

	// Action is the API action that started the job, e.g. "linode.boot".
	Action string
	Label  string

	// Status is StatusPending until the job finishes or is abandoned.
	Status string

	// Message is the host message of a finished job.
	Message string

	// RunID groups the jobs started by one CLI invocation.
	RunID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FromJob builds a record from a job snapshot.
func FromJob(j domain.Job) *Record {
	r := &Record{JobID: j.ID, LinodeID: j.LinodeID}
	r.Apply(j)
	return r
}

// Apply copies the current state of j onto the record.
func (r *Record) Apply(j domain.Job) {
	if j.Action != "" {
		r.Action = j.Action
	}
	if j.Label != "" {
		r.Label = j.Label
	}
	r.Status = StatusPending
	if j.IsTerminal() {
		r.Status = j.Outcome.String()
	}
	r.Message = j.Message
}

// Abandon marks the record as never going to finish.
func (r *Record) Abandon(reason string) {
	r.Status = StatusAbandoned
	r.Message = reason
}

// Job returns the pending snapshot a handle can resume from.
func (r *Record) Job() domain.Job {
	return domain.Job{
		ID:        r.JobID,
		LinodeID:  r.LinodeID,
		Action:    r.Action,
		Label:     r.Label,
		EnteredAt: r.CreatedAt,
	}
}
