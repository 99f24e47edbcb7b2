package job

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nathanbeddoewebdev/linops/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func TestHandle_WaitSuccess(t *testing.T) {
	api := newFakeJobAPI(map[int64]scriptedJob{100: {finishAt: 2}})
	h := NewHandle(newTestPoller(api), 42, 100)

	if h.Done() {
		t.Fatal("new handle must not be terminal")
	}

	j, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !j.Succeeded() {
		t.Errorf("expected successful job, got %v", j.Outcome)
	}
	if !h.Done() {
		t.Error("expected handle to hold terminal snapshot after Wait")
	}
	if diff := cmp.Diff(j, h.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-returned +held):\n%s", diff)
	}
}

func TestHandle_WaitIsIdempotent(t *testing.T) {
	api := newFakeJobAPI(map[int64]scriptedJob{100: {finishAt: 1}})
	h := NewHandle(newTestPoller(api), 42, 100)

	first, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("first wait: %v", err)
	}
	calls := api.cycleCount()

	second, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if api.cycleCount() != calls {
		t.Errorf("expected no additional polling, got %d extra calls", api.cycleCount()-calls)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("snapshots differ (-first +second):\n%s", diff)
	}
}

func TestHandle_WaitFailedJob(t *testing.T) {
	api := newFakeJobAPI(map[int64]scriptedJob{100: {finishAt: 1, failed: true}})
	h := NewHandle(newTestPoller(api), 42, 100)

	j, err := h.Wait(context.Background())
	var failed *domain.JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *domain.JobFailedError, got %v", err)
	}
	if failed.Job.Message != "disk full" {
		t.Errorf("expected host message in error, got %q", failed.Job.Message)
	}
	if failed.Job.Duration == nil || *failed.Job.Duration != 30 {
		t.Errorf("expected duration 30 in error, got %v", failed.Job.Duration)
	}
	if diff := cmp.Diff(j, failed.Job); diff != "" {
		t.Errorf("error snapshot mismatch (-returned +error):\n%s", diff)
	}

	// A second Wait reports the same failure without polling.
	calls := api.cycleCount()
	_, err2 := h.Wait(context.Background())
	if !errors.As(err2, &failed) {
		t.Fatalf("expected failure again, got %v", err2)
	}
	if err2.Error() != err.Error() {
		t.Errorf("expected identical failure, got %q vs %q", err2, err)
	}
	if api.cycleCount() != calls {
		t.Error("expected no polling on a terminal handle")
	}
}

func TestHandle_FromTerminalSnapshotNeverPolls(t *testing.T) {
	api := newFakeJobAPI(nil)
	finished := mustTerminal(t, 5, domain.OutcomeSucceeded)
	h := FromSnapshot(newTestPoller(api), finished)

	if _, err := h.Wait(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if api.cycleCount() != 0 {
		t.Errorf("expected no polling, got %d calls", api.cycleCount())
	}
}

func TestHandle_ConcurrentWaiters(t *testing.T) {
	api := newFakeJobAPI(map[int64]scriptedJob{100: {finishAt: 2}})
	h := NewHandle(newTestPoller(api), 42, 100)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j, err := h.Wait(context.Background())
			if err == nil && !j.IsTerminal() {
				err = errors.New("non-terminal snapshot returned")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("waiter: %v", err)
		}
	}
}

func TestWaitAll_Handles(t *testing.T) {
	api := newFakeJobAPI(map[int64]scriptedJob{
		1: {finishAt: 1},
		2: {finishAt: 3},
	})
	p := newTestPoller(api)
	mainDisk := NewHandle(p, 42, 1)
	swap := NewHandle(p, 42, 2)

	jobs, err := WaitAll(context.Background(), mainDisk, swap)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if api.cycleCount() != 3 {
		t.Errorf("expected 3 poll cycles, got %d", api.cycleCount())
	}
	for _, r := range api.requests {
		if len(r) != 2 {
			t.Errorf("expected both jobs in every batch, got %d", len(r))
		}
	}
	if len(jobs) != 2 || jobs[0].ID != 1 || jobs[1].ID != 2 {
		t.Fatalf("expected jobs [1 2], got %v", jobs)
	}
	if !mainDisk.Done() || !swap.Done() {
		t.Error("expected both handles to hold terminal snapshots")
	}
}

func TestWaitAll_HandlesReportsFirstFailure(t *testing.T) {
	api := newFakeJobAPI(map[int64]scriptedJob{
		1: {finishAt: 1},
		2: {finishAt: 1, failed: true},
		3: {finishAt: 1, failed: true},
	})
	p := newTestPoller(api)
	handles := []*Handle{NewHandle(p, 42, 1), NewHandle(p, 42, 2), NewHandle(p, 42, 3)}

	jobs, err := WaitAll(context.Background(), handles...)
	var failed *domain.JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *domain.JobFailedError, got %v", err)
	}
	if failed.Job.ID != 2 {
		t.Errorf("expected first failure to be job 2, got %d", failed.Job.ID)
	}
	if len(jobs) != 3 {
		t.Errorf("expected all snapshots returned, got %d", len(jobs))
	}
}

func TestWaitAll_SkipsTerminalHandles(t *testing.T) {
	api := newFakeJobAPI(map[int64]scriptedJob{2: {finishAt: 1}})
	p := newTestPoller(api)
	done := FromSnapshot(p, mustTerminal(t, 1, domain.OutcomeSucceeded))
	pending := NewHandle(p, 42, 2)

	if _, err := WaitAll(context.Background(), done, pending); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := len(api.requests[0]); got != 1 {
		t.Errorf("expected only the pending job to be polled, got %d requests", got)
	}
}

func TestWaitAll_HandlesFromDifferentPollers(t *testing.T) {
	first := newFakeJobAPI(map[int64]scriptedJob{1: {finishAt: 1}})
	second := newFakeJobAPI(map[int64]scriptedJob{2: {finishAt: 2}})
	a := NewHandle(newTestPoller(first), 42, 1)
	b := NewHandle(newTestPoller(second), 43, 2)

	jobs, err := WaitAll(context.Background(), a, b)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != 1 || jobs[1].ID != 2 {
		t.Fatalf("expected jobs [1 2], got %v", jobs)
	}
	for name, api := range map[string]*fakeJobAPI{"first": first, "second": second} {
		for _, batch := range api.requests {
			if len(batch) != 1 {
				t.Errorf("%s poller: expected only its own job per batch, got %d", name, len(batch))
			}
		}
	}
	if first.requests[0][0].Params["JobID"] != int64(1) || second.requests[0][0].Params["JobID"] != int64(2) {
		t.Error("expected each job polled through its own handle's poller")
	}
}

func TestWaitAll_NoHandles(t *testing.T) {
	jobs, err := WaitAll(context.Background())
	if err != nil || len(jobs) != 0 {
		t.Fatalf("expected empty result, got (%v, %v)", jobs, err)
	}
}

func mustTerminal(t *testing.T, id int64, outcome domain.JobOutcome) domain.Job {
	t.Helper()
	api := newFakeJobAPI(map[int64]scriptedJob{id: {finishAt: 1, failed: outcome == domain.OutcomeFailed}})
	jobs, err := newTestPoller(api).FetchStatuses(context.Background(), 42, []int64{id}, false)
	if err != nil || jobs[0] == nil || !jobs[0].IsTerminal() {
		t.Fatalf("failed to build terminal job: %v", err)
	}
	return *jobs[0]
}
