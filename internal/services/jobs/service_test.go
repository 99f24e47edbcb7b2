package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nathanbeddoewebdev/linops/internal/catalog"
	"nathanbeddoewebdev/linops/internal/database"
	"nathanbeddoewebdev/linops/internal/domain"
	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/jobstore"
	"nathanbeddoewebdev/linops/internal/linodeapi"
	"nathanbeddoewebdev/linops/internal/linodeapi/linodetest"
	"nathanbeddoewebdev/linops/internal/providers"
	"nathanbeddoewebdev/linops/internal/provision"
	"nathanbeddoewebdev/linops/internal/retry"
)

func setup(t *testing.T) (*providers.LinodeProvider, *linodetest.Server, string) {
	t.Helper()
	srv := linodetest.NewServer(t)
	client := linodeapi.NewClient("test-key",
		linodeapi.WithEndpoint(srv.URL),
		linodeapi.WithRetry(retry.NoRetry()),
	)
	p := providers.NewLinodeProvider(client,
		providers.WithPollerOptions(job.WithInterval(linodetest.PollInterval)))
	return p, srv, filepath.Join(t.TempDir(), "linops.db")
}

func openService(t *testing.T, path string) *Service {
	t.Helper()
	repo, err := jobstore.OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	s := NewService(repo, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTrackAndFinalize(t *testing.T) {
	p, _, path := setup(t)
	s := openService(t, path)
	ctx := context.Background()

	l, _ := p.CreateLinode(ctx, 6, 1, 1)
	h, err := p.BootLinode(ctx, l.ID, 0)
	if err != nil {
		t.Fatalf("boot: %v", err)
	}

	s.Track(h)
	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].JobID != h.ID() || pending[0].Action != "linode.boot" {
		t.Fatalf("unexpected pending records: %+v", pending)
	}

	if _, err := h.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	s.Finalize(h)

	pending, _ = s.ListPending()
	if len(pending) != 0 {
		t.Errorf("expected no pending records, got %+v", pending)
	}
	recent, _ := s.ListRecent(10)
	if len(recent) != 1 || recent[0].Status != jobstore.StatusSuccess || recent[0].Label != "System Boot" {
		t.Errorf("unexpected recent records: %+v", recent)
	}
}

func TestTrack_SameJobTwiceKeepsOneRecord(t *testing.T) {
	p, _, path := setup(t)
	s := openService(t, path)
	ctx := context.Background()

	l, _ := p.CreateLinode(ctx, 6, 1, 1)
	h, _ := p.BootLinode(ctx, l.ID, 0)

	s.Track(h)
	s.Track(h)

	recent, _ := s.ListRecent(10)
	if len(recent) != 1 {
		t.Errorf("expected 1 record, got %d", len(recent))
	}
}

func TestResume_AfterRestart(t *testing.T) {
	p, srv, path := setup(t)
	srv.JobPolls = 2
	ctx := context.Background()

	l, _ := p.CreateLinode(ctx, 6, 1, 1)
	boot, _ := p.BootLinode(ctx, l.ID, 0)
	_, swap, _ := p.CreateSwapDisk(ctx, l.ID, 256, "")

	first := openService(t, path)
	first.Track(boot)
	first.Track(swap)
	first.Close()

	second := openService(t, path)
	pending, err := second.ListPending()
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(pending))
	}

	final, err := second.Resume(ctx, p.Poller(), pending)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	for _, j := range final {
		if !j.Succeeded() {
			t.Errorf("expected success, got %v", &j)
		}
	}
	if pending, _ := second.ListPending(); len(pending) != 0 {
		t.Errorf("expected no pending records after resume, got %d", len(pending))
	}
	if srv.Batches() != 2 {
		t.Errorf("expected both jobs polled together in 2 batches, got %d", srv.Batches())
	}
}

func TestResume_RecordsFailure(t *testing.T) {
	p, srv, path := setup(t)
	srv.FailJobs["linode.boot"] = "No config profile"
	s := openService(t, path)
	ctx := context.Background()

	l, _ := p.CreateLinode(ctx, 6, 1, 1)
	h, _ := p.BootLinode(ctx, l.ID, 0)
	s.Track(h)

	pending, _ := s.ListPending()
	_, err := s.Resume(ctx, p.Poller(), pending)

	var failed *domain.JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *domain.JobFailedError, got %v", err)
	}
	recent, _ := s.ListRecent(1)
	if recent[0].Status != jobstore.StatusFailed || recent[0].Message != "No config profile" {
		t.Errorf("unexpected record: %+v", recent[0])
	}
}

func TestService_NilRepository(t *testing.T) {
	s := NewService(nil, nil)

	s.Track(nil)
	s.Finalize(nil)
	if _, err := s.ListPending(); err == nil {
		t.Error("expected error without a repository")
	}
	if _, err := s.Cleanup(0); err == nil {
		t.Error("expected error without a repository")
	}
	if err := s.Close(); err != nil {
		t.Errorf("expected nil close, got %v", err)
	}
}

func TestOpenDefault_UsesDatabasePath(t *testing.T) {
	p, _, path := setup(t)
	database.SetPath(path)
	t.Cleanup(database.ResetPath)

	s := OpenDefault(nil)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	l, _ := p.CreateLinode(ctx, 6, 1, 1)
	h, err := p.ShutdownLinode(ctx, l.ID)
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	s.Track(h)

	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Action != "linode.shutdown" {
		t.Errorf("unexpected pending records: %+v", pending)
	}
}

func TestListRun_GroupsJobsByService(t *testing.T) {
	p, _, path := setup(t)
	ctx := context.Background()
	l, _ := p.CreateLinode(ctx, 6, 1, 1)

	first := openService(t, path)
	boot, _ := p.BootLinode(ctx, l.ID, 0)
	first.Track(boot)

	second := openService(t, path)
	if first.RunID() == second.RunID() {
		t.Fatal("expected distinct run IDs")
	}
	down, _ := p.ShutdownLinode(ctx, l.ID)
	second.Track(down)

	got, err := second.ListRun(first.RunID())
	if err != nil {
		t.Fatalf("ListRun failed: %v", err)
	}
	if len(got) != 1 || got[0].JobID != boot.ID() {
		t.Errorf("expected only the boot job, got %+v", got)
	}

	short := second.RunID()[:ShortRunIDLen]
	got, err = first.ListRun(strings.ToUpper(short))
	if err != nil {
		t.Fatalf("ListRun by prefix failed: %v", err)
	}
	if len(got) != 1 || got[0].JobID != down.ID() {
		t.Errorf("expected only the shutdown job, got %+v", got)
	}

	if _, err := first.ListRun("abc"); err == nil {
		t.Error("expected error for a too-short prefix")
	}
}

func TestResume_AbandonsJobsOfDeletedLinode(t *testing.T) {
	p, srv, path := setup(t)
	srv.JobPolls = 2
	s := openService(t, path)
	ctx := context.Background()

	gone, _ := p.CreateLinode(ctx, 6, 1, 1)
	kept, _ := p.CreateLinode(ctx, 6, 1, 1)
	stale, _ := p.BootLinode(ctx, gone.ID, 0)
	healthy, _ := p.BootLinode(ctx, kept.ID, 0)
	s.Track(stale)
	s.Track(healthy)
	if err := p.DeleteLinode(ctx, gone.ID, true); err != nil {
		t.Fatalf("delete: %v", err)
	}

	pending, _ := s.ListPending()
	final, err := s.Resume(ctx, p.Poller(), pending)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	for _, j := range final {
		switch j.LinodeID {
		case gone.ID:
			if j.IsTerminal() {
				t.Errorf("expected the deleted linode's job left unfinished, got %v", &j)
			}
		case kept.ID:
			if !j.Succeeded() {
				t.Errorf("expected the healthy job to succeed, got %v", &j)
			}
		}
	}

	if pending, _ := s.ListPending(); len(pending) != 0 {
		t.Errorf("expected no pending records after resume, got %+v", pending)
	}
	record, _ := s.repo.GetByJob(gone.ID, stale.ID())
	if record == nil || record.Status != jobstore.StatusAbandoned {
		t.Errorf("expected the stale job abandoned, got %+v", record)
	}
}

func TestAbandonLinode_AfterProvisionRollback(t *testing.T) {
	p, srv, path := setup(t)
	s := openService(t, path)
	srv.JobPolls = 1 << 30

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	prov := provision.New(p, catalog.NewResolver(p, nil, nil), provision.WithTracker(s))
	_, err := prov.Provision(ctx, provision.NewRequest("s3cret", "newark", "Debian 7 64bit"))

	var perr *provision.ProvisionError
	if !errors.As(err, &perr) || !perr.RolledBack() {
		t.Fatalf("expected a rolled back provision, got %v", err)
	}
	if pending, _ := s.ListPending(); len(pending) != 0 {
		t.Fatalf("expected the rolled back jobs abandoned, got %+v", pending)
	}
	recent, _ := s.ListRecent(10)
	if len(recent) == 0 {
		t.Fatal("expected the provision's jobs journaled")
	}
	for _, r := range recent {
		if r.LinodeID == perr.LinodeID && r.Status != jobstore.StatusAbandoned {
			t.Errorf("expected job %d abandoned, got %q", r.JobID, r.Status)
		}
	}

	// Later runs resume only what is still alive.
	srv.JobPolls = 1
	l, _ := p.CreateLinode(context.Background(), 6, 1, 1)
	boot, _ := p.BootLinode(context.Background(), l.ID, 0)
	s.Track(boot)

	pending, _ := s.ListPending()
	if _, err := s.Resume(context.Background(), p.Poller(), pending); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if pending, _ := s.ListPending(); len(pending) != 0 {
		t.Errorf("expected nothing left pending, got %+v", pending)
	}
}

func TestAbandonLinode_NilRepository(t *testing.T) {
	NewService(nil, nil).AbandonLinode(42, "linode deleted")
}
