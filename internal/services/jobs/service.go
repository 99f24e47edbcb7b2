// Package jobs journals the jobs the CLI issues and resumes waiting on
// them after an interrupted run.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/jobstore"

	"github.com/google/uuid"
)

// PruneAge is how long finished records are kept. Exported as a variable
// so tests can override it.
var PruneAge = 7 * 24 * time.Hour

// ShortRunIDLen is the run ID prefix length shown in listings.
const ShortRunIDLen = 8

// recentRunScan bounds the records searched when resolving a run prefix.
const recentRunScan = 500

type jobKey struct {
	linodeID, jobID int64
}

// Service records issued jobs in a jobstore.Repository. A nil repository
// turns tracking into a no-op so commands work without a journal. Jobs
// first tracked by one Service share its run ID.
//
// Service implements provision.Tracker.
type Service struct {
	repo   jobstore.Repository
	logger *slog.Logger
	runID  string

	mu      sync.Mutex
	records map[jobKey]*jobstore.Record
}

// NewService creates a job service.
func NewService(repo jobstore.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		logger:  logger,
		runID:   uuid.NewString(),
		records: map[jobKey]*jobstore.Record{},
	}
}

// OpenDefault opens the journal at its default location. If it cannot be
// opened the returned Service tracks nothing; commands still run.
func OpenDefault(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	repo, err := jobstore.Open()
	if err != nil {
		logger.Warn("job journal unavailable", "error", err)
		return NewService(nil, logger)
	}
	return NewService(repo, logger)
}

// RunID identifies the jobs tracked by this Service.
func (s *Service) RunID() string { return s.runID }

// Close releases repository resources.
func (s *Service) Close() error {
	if s.repo == nil {
		return nil
	}
	return s.repo.Close()
}

// Track journals a newly issued job. Failures are logged and otherwise
// ignored so a broken journal never blocks the action itself.
func (s *Service) Track(h *job.Handle) {
	if s.repo == nil || h == nil {
		return
	}
	snap := h.Snapshot()
	key := jobKey{snap.LinodeID, snap.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.repo.GetByJob(snap.LinodeID, snap.ID)
	if err != nil {
		s.logger.Warn("job journal lookup failed", "job_id", snap.ID, "error", err)
		return
	}
	if record == nil {
		record = jobstore.FromJob(snap)
		record.RunID = s.runID
	} else {
		record.Apply(snap)
	}
	if err := s.repo.Save(record); err != nil {
		s.logger.Warn("failed to journal job", "job_id", snap.ID, "linode_id", snap.LinodeID, "error", err)
		return
	}
	s.records[key] = record

	if _, err := s.repo.DeleteOlderThan(PruneAge); err != nil {
		s.logger.Debug("job journal prune failed", "error", err)
	}
}

// Finalize stores the current state of a tracked job.
func (s *Service) Finalize(h *job.Handle) {
	if s.repo == nil || h == nil {
		return
	}
	snap := h.Snapshot()
	key := jobKey{snap.LinodeID, snap.ID}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.records[key]
	if record == nil {
		var err error
		record, err = s.repo.GetByJob(snap.LinodeID, snap.ID)
		if err != nil || record == nil {
			s.logger.Warn("cannot finalize untracked job", "job_id", snap.ID, "error", err)
			return
		}
	}
	record.Apply(snap)
	if err := s.repo.Save(record); err != nil {
		s.logger.Warn("failed to finalize job", "job_id", snap.ID, "error", err)
		return
	}
	if record.Status != jobstore.StatusPending {
		delete(s.records, key)
	}
}

// AbandonLinode marks every pending job of a Linode as abandoned. It is
// called once the Linode has been deleted, since its jobs will never be
// observed finishing.
func (s *Service) AbandonLinode(linodeID int64, reason string) {
	if s.repo == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.repo.ListPending()
	if err != nil {
		s.logger.Warn("job journal lookup failed", "linode_id", linodeID, "error", err)
		return
	}
	for i := range pending {
		record := &pending[i]
		if record.LinodeID != linodeID {
			continue
		}
		record.Abandon(reason)
		if err := s.repo.Save(record); err != nil {
			s.logger.Warn("failed to abandon job", "job_id", record.JobID, "linode_id", linodeID, "error", err)
			continue
		}
		delete(s.records, jobKey{record.LinodeID, record.JobID})
	}
}

// ListPending returns all journaled jobs that have not finished.
func (s *Service) ListPending() ([]jobstore.Record, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("jobs: repository unavailable")
	}
	return s.repo.ListPending()
}

// ListRecent returns the most recent n journaled jobs.
func (s *Service) ListRecent(n int) ([]jobstore.Record, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("jobs: repository unavailable")
	}
	return s.repo.ListRecent(n)
}

// ListRun returns the journaled jobs of one run. A prefix of at least
// eight characters selects the most recent run it matches.
func (s *Service) ListRun(runID string) ([]jobstore.Record, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("jobs: repository unavailable")
	}
	runID = strings.ToLower(strings.TrimSpace(runID))
	if id, err := uuid.Parse(runID); err == nil {
		return s.repo.ListRun(id.String())
	}
	if len(runID) < ShortRunIDLen {
		return nil, fmt.Errorf("jobs: run ID %q is too short", runID)
	}
	recent, err := s.repo.ListRecent(recentRunScan)
	if err != nil {
		return nil, err
	}
	for _, r := range recent {
		if strings.HasPrefix(r.RunID, runID) {
			return s.repo.ListRun(r.RunID)
		}
	}
	return nil, nil
}

// Cleanup removes finished records older than maxAge.
func (s *Service) Cleanup(maxAge time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("jobs: repository unavailable")
	}
	return s.repo.DeleteOlderThan(maxAge)
}

// Resume waits for the jobs in records together and journals their final
// state. Jobs on a Linode that no longer exists are journaled as abandoned
// and the rest are still waited on. The returned snapshots are in input
// order, abandoned ones left non-terminal; the error is the first job
// failure, as with job.WaitAll.
func (s *Service) Resume(ctx context.Context, p *job.Poller, records []jobstore.Record) ([]domain.Job, error) {
	handles := make([]*job.Handle, len(records))
	for i := range records {
		rec := records[i]
		s.mu.Lock()
		s.records[jobKey{rec.LinodeID, rec.JobID}] = &rec
		s.mu.Unlock()
		handles[i] = job.FromSnapshot(p, rec.Job())
	}

	gone := map[int64]bool{}
	var err error
	for {
		var live []*job.Handle
		for _, h := range handles {
			if !gone[h.LinodeID()] {
				live = append(live, h)
			}
		}
		_, err = job.WaitAll(ctx, live...)

		var lookupErr *job.LookupError
		if !errors.As(err, &lookupErr) || !errors.Is(lookupErr, domain.ErrNotFound) {
			break
		}
		s.logger.Warn("linode no longer exists, abandoning its jobs", "linode_id", lookupErr.LinodeID)
		gone[lookupErr.LinodeID] = true
		s.AbandonLinode(lookupErr.LinodeID, "linode deleted")
	}

	final := make([]domain.Job, len(handles))
	var firstFailure error
	for i, h := range handles {
		final[i] = h.Snapshot()
		if h.Done() {
			s.Finalize(h)
			if !final[i].Succeeded() && firstFailure == nil {
				firstFailure = &domain.JobFailedError{Job: final[i]}
			}
		}
	}
	var failed *domain.JobFailedError
	if err != nil && !errors.As(err, &failed) {
		return final, fmt.Errorf("jobs: resume: %w", err)
	}
	if firstFailure != nil {
		return final, fmt.Errorf("jobs: resume: %w", firstFailure)
	}
	return final, nil
}
