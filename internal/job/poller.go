// Package job tracks asynchronous Linode jobs: it fetches their status in
// batches and blocks until they finish.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"nathanbeddoewebdev/linops/internal/batch"
	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/linodeapi"
)

// DefaultInterval is the delay between poll cycles.
// Exported as a variable so tests can override it for speed.
var DefaultInterval = 5 * time.Second

// MaxTransientErrors is the number of consecutive transport failures a wait
// tolerates before giving up. Rate limits and API errors end it at once.
// Exported as a variable so tests can override it.
var MaxTransientErrors = 3

const listAction = "linode.job.list"

// LookupError is an error the API reported for one job of a status lookup.
// For a deleted Linode it wraps domain.ErrNotFound.
type LookupError struct {
	LinodeID int64
	JobID    int64
	Err      error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("job %d: %v", e.JobID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Poller resolves job IDs to status snapshots. Every status lookup goes
// through one batch per poll cycle, however many jobs are involved.
//
// A Poller only observes whether jobs have finished. Whether a finished job
// succeeded is left to the caller (see Handle.Wait).
type Poller struct {
	transport batch.Transport
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between poll cycles. Non-positive values
// keep the default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout bounds each wait. Zero, the default, polls until the context
// is done.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) { p.timeout = d }
}

// WithLogger sets the logger used for per-cycle debug output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a Poller that batches its lookups through t.
func NewPoller(t batch.Transport, opts ...Option) *Poller {
	p := &Poller{
		transport: t,
		interval:  DefaultInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ref identifies one job.
type ref struct {
	linodeID int64
	jobID    int64
}

func refsFor(linodeID int64, jobIDs []int64) []ref {
	refs := make([]ref, len(jobIDs))
	for i, id := range jobIDs {
		refs[i] = ref{linodeID: linodeID, jobID: id}
	}
	return refs
}

// FetchStatuses returns the current snapshot of each job, in input order.
// A nil entry means the API has no record of that job (or, with
// pendingOnly, that it is no longer pending). An error reported for a
// single job fails the whole lookup as a *LookupError.
func (p *Poller) FetchStatuses(ctx context.Context, linodeID int64, jobIDs []int64, pendingOnly bool) ([]*domain.Job, error) {
	return p.fetch(ctx, refsFor(linodeID, jobIDs), pendingOnly)
}

func (p *Poller) fetch(ctx context.Context, refs []ref, pendingOnly bool) ([]*domain.Job, error) {
	b := batch.New(p.transport)
	for _, r := range refs {
		params := linodeapi.Params{"LinodeID": r.linodeID, "JobID": r.jobID}
		if pendingOnly {
			params["pendingOnly"] = 1
		}
		b.Add(listAction, params)
	}

	results, err := b.Execute(ctx)
	if err != nil {
		return nil, err
	}

	jobs := make([]*domain.Job, len(refs))
	for i, res := range results {
		if res.Err != nil {
			return nil, &LookupError{LinodeID: refs[i].linodeID, JobID: refs[i].jobID, Err: res.Err}
		}
		if res.NotFound() {
			continue
		}
		decoded, err := linodeapi.DecodeJobs(res.Data)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", refs[i].jobID, err)
		}
		if len(decoded) == 0 {
			continue
		}
		j := decoded[0]
		jobs[i] = &j
	}
	return jobs, nil
}

// WaitAny polls until at least one of the jobs has finished and returns it.
// When several finish in the same cycle, the first in input order wins.
// An empty jobIDs returns nil immediately.
func (p *Poller) WaitAny(ctx context.Context, linodeID int64, jobIDs []int64) (*domain.Job, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}

	var found *domain.Job
	err := p.poll(ctx, refsFor(linodeID, jobIDs), func(jobs []*domain.Job) bool {
		for _, j := range jobs {
			if j.IsTerminal() {
				found = j
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// WaitAll polls until every job has finished and returns their final
// snapshots in input order. An empty jobIDs returns immediately.
func (p *Poller) WaitAll(ctx context.Context, linodeID int64, jobIDs []int64) ([]domain.Job, error) {
	return p.waitAll(ctx, refsFor(linodeID, jobIDs))
}

func (p *Poller) waitAll(ctx context.Context, refs []ref) ([]domain.Job, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	var final []domain.Job
	err := p.poll(ctx, refs, func(jobs []*domain.Job) bool {
		for _, j := range jobs {
			if !j.IsTerminal() {
				return false
			}
		}
		final = make([]domain.Job, len(jobs))
		for i, j := range jobs {
			final[i] = *j
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return final, nil
}

// poll fetches the jobs once per interval until done reports true. The
// first fetch happens immediately. Cancelling ctx or hitting the timeout
// stops local polling only; the remote jobs keep running.
func (p *Poller) poll(ctx context.Context, refs []ref, done func([]*domain.Job) bool) error {
	pollCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeoutCause(ctx, p.timeout, domain.ErrTimeout)
		defer cancel()
	}

	var consecutiveErrors int
	for cycle := 1; ; cycle++ {
		jobs, err := p.fetch(pollCtx, refs, false)
		switch {
		case err == nil:
			consecutiveErrors = 0
			p.logger.Debug("polled jobs", "cycle", cycle, "jobs", len(refs))
			if done(jobs) {
				return nil
			}
		case pollCtx.Err() != nil:
			return p.stopped(ctx, pollCtx, refs)
		case !transient(err):
			return err
		default:
			consecutiveErrors++
			if consecutiveErrors >= MaxTransientErrors {
				return fmt.Errorf("polling jobs (after %d consecutive failures): %w", consecutiveErrors, err)
			}
			p.logger.Warn("transient error polling jobs, retrying",
				"attempt", consecutiveErrors, "max", MaxTransientErrors, "error", err)
		}

		select {
		case <-pollCtx.Done():
			return p.stopped(ctx, pollCtx, refs)
		case <-time.After(p.interval):
		}
	}
}

// transient reports whether a failed lookup is worth repeating on the next
// cycle: transport failures are, rate limits and API errors are not.
func transient(err error) bool {
	var te *domain.TransportError
	return errors.As(err, &te) && !errors.Is(err, domain.ErrRateLimited)
}

// stopped explains why polling ended early.
func (p *Poller) stopped(parent, pollCtx context.Context, refs []ref) error {
	if parent.Err() == nil && errors.Is(context.Cause(pollCtx), domain.ErrTimeout) {
		ids := make([]int64, len(refs))
		for i, r := range refs {
			ids[i] = r.jobID
		}
		return fmt.Errorf("jobs %v still running after %s: %w", ids, p.timeout, domain.ErrTimeout)
	}
	return parent.Err()
}
