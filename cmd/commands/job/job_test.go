package job

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"nathanbeddoewebdev/linops/internal/database"
	"nathanbeddoewebdev/linops/internal/job"
	"nathanbeddoewebdev/linops/internal/jobstore"
	"nathanbeddoewebdev/linops/internal/linodeapi"
	"nathanbeddoewebdev/linops/internal/linodeapi/linodetest"
	"nathanbeddoewebdev/linops/internal/providers"
	"nathanbeddoewebdev/linops/internal/retry"
	"nathanbeddoewebdev/linops/internal/services/auth"
	"nathanbeddoewebdev/linops/internal/services/jobs"
)

func setupFake(t *testing.T) (*linodetest.Server, *providers.LinodeProvider, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "linops.db")
	database.SetPath(dbPath)
	t.Cleanup(database.ResetPath)

	srv := linodetest.NewServer(t)
	client := linodeapi.NewClient("test-key",
		linodeapi.WithEndpoint(srv.URL),
		linodeapi.WithRetry(retry.NoRetry()),
	)
	p := providers.NewLinodeProvider(client,
		providers.WithPollerOptions(job.WithInterval(linodetest.PollInterval)))

	providers.Reset()
	t.Cleanup(providers.Reset)
	providers.Register(providers.DefaultAccount, func(auth.Store) (*providers.LinodeProvider, error) {
		return p, nil
	})
	return srv, p, dbPath
}

func execJob(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	cmd.Execute()
	return outBuf.String(), errBuf.String()
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// startTracked issues a shutdown and a reboot on a new Linode and journals
// both without waiting, as an interrupted command would leave them.
func startTracked(t *testing.T, srv *linodetest.Server, p *providers.LinodeProvider) (int64, []*job.Handle) {
	t.Helper()
	ctx := context.Background()
	id := srv.AddLinode("web01", 6, 1)

	down, err := p.ShutdownLinode(ctx, id)
	if err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	up, err := p.RebootLinode(ctx, id, 0)
	if err != nil {
		t.Fatalf("reboot: %v", err)
	}

	journal := jobs.OpenDefault(nil)
	defer journal.Close()
	journal.Track(down)
	journal.Track(up)
	return id, []*job.Handle{down, up}
}

func TestListCommand_Pending(t *testing.T) {
	srv, p, _ := setupFake(t)

	stdout, _ := execJob(t, "list")
	if !strings.Contains(stdout, "No pending jobs") {
		t.Errorf("expected empty message, got:\n%s", stdout)
	}

	startTracked(t, srv, p)

	stdout, stderr := execJob(t, "list")
	if !strings.Contains(stdout, "linode.shutdown") || !strings.Contains(stdout, "linode.reboot") {
		t.Errorf("expected both jobs listed, got:\n%s", stdout)
	}
	if !strings.Contains(stderr, "linops job resume") {
		t.Errorf("expected resume hint, got:\n%s", stderr)
	}
}

func TestResumeCommand(t *testing.T) {
	srv, p, dbPath := setupFake(t)
	srv.JobPolls = 3
	_, handles := startTracked(t, srv, p)
	batchesBefore := srv.Batches()

	stdout, stderr := execJob(t, "resume")

	if !strings.Contains(stderr, "Resuming 2 pending job(s)") {
		t.Errorf("expected progress on stderr, got:\n%s", stderr)
	}
	for _, h := range handles {
		if !strings.Contains(stdout, itoa(h.ID())) {
			t.Errorf("expected job %d in output, got:\n%s", h.ID(), stdout)
		}
	}
	if n := srv.Batches() - batchesBefore; n != 3 {
		t.Errorf("expected both jobs polled together in 3 batches, got %d", n)
	}

	repo, err := jobstore.OpenAt(dbPath)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	defer repo.Close()
	pending, _ := repo.ListPending()
	if len(pending) != 0 {
		t.Errorf("expected no pending records, got %+v", pending)
	}

	stdout, _ = execJob(t, "resume")
	if !strings.Contains(stdout, "No pending jobs to resume") {
		t.Errorf("expected nothing left to resume, got:\n%s", stdout)
	}
}

func TestResumeCommand_ReportsFailure(t *testing.T) {
	srv, p, _ := setupFake(t)
	srv.FailJobs["linode.reboot"] = "Kernel panic"
	startTracked(t, srv, p)

	stdout, stderr := execJob(t, "resume")

	if !strings.Contains(stdout, "Kernel panic") {
		t.Errorf("expected failed job in table, got:\n%s", stdout)
	}
	if !strings.Contains(stderr, "1 job(s) failed") {
		t.Errorf("expected failure count on stderr, got:\n%s", stderr)
	}
}

func TestWaitCommand_All(t *testing.T) {
	srv, p, _ := setupFake(t)
	id, handles := startTracked(t, srv, p)

	stdout, stderr := execJob(t, "wait", "--linode", itoa(id),
		"--job", itoa(handles[0].ID()), "--job", itoa(handles[1].ID()))

	if stderr != "" {
		t.Errorf("unexpected stderr: %s", stderr)
	}
	if strings.Count(stdout, "success") != 2 {
		t.Errorf("expected 2 successful jobs, got:\n%s", stdout)
	}
}

func TestWaitCommand_Any(t *testing.T) {
	srv, p, _ := setupFake(t)
	id, handles := startTracked(t, srv, p)

	stdout, _ := execJob(t, "wait", "--linode", itoa(id), "--any",
		"--job", itoa(handles[0].ID()), "--job", itoa(handles[1].ID()))

	if !strings.Contains(stdout, "linode.shutdown") || strings.Contains(stdout, "linode.reboot") {
		t.Errorf("expected only the first job, got:\n%s", stdout)
	}
}

func TestWaitCommand_Failure(t *testing.T) {
	srv, p, _ := setupFake(t)
	srv.FailJobs["linode.shutdown"] = "Timed out"
	id, handles := startTracked(t, srv, p)

	_, stderr := execJob(t, "wait", "--linode", itoa(id),
		"--job", itoa(handles[0].ID()), "--job", itoa(handles[1].ID()))

	if !strings.Contains(stderr, "1 job(s) failed") {
		t.Errorf("expected failure on stderr, got:\n%s", stderr)
	}
}

func TestStatusCommand(t *testing.T) {
	srv, p, _ := setupFake(t)
	srv.JobPolls = 2
	id, _ := startTracked(t, srv, p)

	stdout, _ := execJob(t, "status", "--linode", itoa(id), "--pending")
	if !strings.Contains(stdout, "System Shutdown") || !strings.Contains(stdout, "pending") {
		t.Errorf("expected pending jobs, got:\n%s", stdout)
	}

	stdout, _ = execJob(t, "status", "--linode", itoa(id), "--pending")
	if !strings.Contains(stdout, "No jobs found") {
		t.Errorf("expected no pending jobs after one poll, got:\n%s", stdout)
	}
}

func TestPruneCommand(t *testing.T) {
	srv, p, dbPath := setupFake(t)
	_, handles := startTracked(t, srv, p)

	// Finish the shutdown so one record is prunable.
	if _, err := handles[0].Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	journal := jobs.OpenDefault(nil)
	journal.Finalize(handles[0])
	journal.Close()

	_, stderr := execJob(t, "prune", "--older-than", "-1h")
	if !strings.Contains(stderr, "must not be negative") {
		t.Errorf("expected negative age to be rejected, got:\n%s", stderr)
	}

	stdout, _ := execJob(t, "prune", "--older-than", "1h")
	if !strings.Contains(stdout, "Removed 0 job(s)") {
		t.Errorf("expected nothing removed, got:\n%s", stdout)
	}

	stdout, _ = execJob(t, "prune", "--older-than", "0s")
	if !strings.Contains(stdout, "Removed 1 job(s)") {
		t.Errorf("expected one record removed, got:\n%s", stdout)
	}

	repo, err := jobstore.OpenAt(dbPath)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	defer repo.Close()
	recent, _ := repo.ListRecent(10)
	if len(recent) != 1 || recent[0].Action != "linode.reboot" {
		t.Errorf("expected only the pending reboot left, got %+v", recent)
	}
}

func TestResumeCommand_OneRun(t *testing.T) {
	srv, p, dbPath := setupFake(t)
	first, _ := startTracked(t, srv, p)
	second, _ := startTracked(t, srv, p)

	repo, err := jobstore.OpenAt(dbPath)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	defer repo.Close()
	pending, _ := repo.ListPending()
	var runID string
	for _, r := range pending {
		if r.LinodeID == first {
			runID = r.RunID
		}
	}
	if runID == "" {
		t.Fatalf("expected a run ID on the first run's records, got %+v", pending)
	}

	stdout, _ := execJob(t, "list", "--run", runID[:8])
	if strings.Count(stdout, runID[:8]) != 2 {
		t.Errorf("expected both jobs of the run listed, got:\n%s", stdout)
	}

	_, stderr := execJob(t, "resume", "--run", runID[:8])
	if !strings.Contains(stderr, "Resuming 2 pending job(s)") {
		t.Errorf("expected only the first run resumed, got:\n%s", stderr)
	}

	pending, _ = repo.ListPending()
	if len(pending) != 2 {
		t.Fatalf("expected the second run still pending, got %+v", pending)
	}
	for _, r := range pending {
		if r.LinodeID != second {
			t.Errorf("unexpected pending record %+v", r)
		}
	}
}

func TestResumeCommand_DeletedLinode(t *testing.T) {
	srv, p, _ := setupFake(t)
	gone, _ := startTracked(t, srv, p)
	_, healthy := startTracked(t, srv, p)
	if err := p.DeleteLinode(context.Background(), gone, true); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stdout, stderr := execJob(t, "resume")

	if !strings.Contains(stderr, "2 job(s) abandoned") {
		t.Errorf("expected abandoned jobs reported, got:\n%s", stderr)
	}
	if strings.Contains(stderr, "not found") {
		t.Errorf("expected the deleted linode not to fail the resume, got:\n%s", stderr)
	}
	for _, h := range healthy {
		if !strings.Contains(stdout, itoa(h.ID())) {
			t.Errorf("expected healthy job %d waited on, got:\n%s", h.ID(), stdout)
		}
	}

	stdout, _ = execJob(t, "resume")
	if !strings.Contains(stdout, "No pending jobs to resume") {
		t.Errorf("expected nothing left to resume, got:\n%s", stdout)
	}
	stdout, _ = execJob(t, "list", "--all")
	if !strings.Contains(stdout, "abandoned: linode deleted") {
		t.Errorf("expected abandoned records listed, got:\n%s", stdout)
	}
}
