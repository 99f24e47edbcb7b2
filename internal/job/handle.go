package job

import (
	"context"
	"fmt"
	"sync/atomic"

	"nathanbeddoewebdev/linops/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Handle is a reference to an in-flight job returned by every action that
// starts one. Callers that want to block call Wait; others keep the handle
// and wait later, possibly together with other handles via WaitAll.
//
// The held snapshot is replaced wholesale, never mutated, so a Handle is
// safe to share between goroutines.
type Handle struct {
	poller *Poller
	snap   atomic.Pointer[domain.Job]
}

// NewHandle returns a handle for a job that has just been issued.
func NewHandle(p *Poller, linodeID, jobID int64) *Handle {
	return FromSnapshot(p, domain.Job{ID: jobID, LinodeID: linodeID})
}

// FromSnapshot returns a handle seeded with a known snapshot, e.g. one read
// back from the job journal.
func FromSnapshot(p *Poller, j domain.Job) *Handle {
	h := &Handle{poller: p}
	j = j.Normalize()
	h.snap.Store(&j)
	return h
}

// ID returns the job ID.
func (h *Handle) ID() int64 { return h.snap.Load().ID }

// LinodeID returns the ID of the Linode the job runs on.
func (h *Handle) LinodeID() int64 { return h.snap.Load().LinodeID }

// Snapshot returns a copy of the most recent known state of the job.
func (h *Handle) Snapshot() domain.Job { return *h.snap.Load() }

// Done reports whether the held snapshot is terminal.
func (h *Handle) Done() bool { return h.snap.Load().IsTerminal() }

// Wait blocks until the job finishes and returns its terminal snapshot. If
// the job failed, the snapshot is returned together with a
// *domain.JobFailedError. Once the handle holds a terminal snapshot, Wait
// returns it again without any further API calls.
func (h *Handle) Wait(ctx context.Context) (domain.Job, error) {
	if cur := h.snap.Load(); cur.IsTerminal() {
		return outcome(*cur)
	}

	cur := h.snap.Load()
	final, err := h.poller.WaitAny(ctx, cur.LinodeID, []int64{cur.ID})
	if err != nil {
		return *cur, err
	}
	h.store(*final)
	return outcome(*final)
}

// store replaces the held snapshot, keeping fields the API omits (such as
// Label on an old record) from the previous one.
func (h *Handle) store(j domain.Job) {
	if prev := h.snap.Load(); prev != nil {
		if j.Label == "" {
			j.Label = prev.Label
		}
		if j.Action == "" {
			j.Action = prev.Action
		}
	}
	h.snap.Store(&j)
}

func outcome(j domain.Job) (domain.Job, error) {
	if j.Outcome == domain.OutcomeFailed {
		return j, &domain.JobFailedError{Job: j}
	}
	return j, nil
}

// WaitAll blocks until every handle's job has finished, polling all pending
// jobs that share a Poller in a single batch per cycle. Handles from
// different Pollers are waited on concurrently, each through its own.
// Each handle receives its terminal snapshot. The returned snapshots are in
// input order; the error is the first *domain.JobFailedError in input
// order, if any.
//
// Handles that are already terminal are not polled.
func WaitAll(ctx context.Context, handles ...*Handle) ([]domain.Job, error) {
	type group struct {
		poller  *Poller
		refs    []ref
		pending []int
	}
	var groups []*group
	byPoller := map[*Poller]*group{}
	for i, h := range handles {
		if h.Done() {
			continue
		}
		g := byPoller[h.poller]
		if g == nil {
			g = &group{poller: h.poller}
			byPoller[h.poller] = g
			groups = append(groups, g)
		}
		s := h.snap.Load()
		g.refs = append(g.refs, ref{linodeID: s.LinodeID, jobID: s.ID})
		g.pending = append(g.pending, i)
	}

	eg, egctx := errgroup.WithContext(ctx)
	for _, g := range groups {
		eg.Go(func() error {
			final, err := g.poller.waitAll(egctx, g.refs)
			if err != nil {
				return err
			}
			for k, i := range g.pending {
				handles[i].store(final[k])
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	out := make([]domain.Job, len(handles))
	var firstErr error
	for i, h := range handles {
		j, err := outcome(h.Snapshot())
		out[i] = j
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return out, firstErr
}

func (h *Handle) String() string {
	s := h.snap.Load()
	return fmt.Sprintf("job %d on linode %d", s.ID, s.LinodeID)
}
