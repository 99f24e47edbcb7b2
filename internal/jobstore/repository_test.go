package jobstore

import (
	"path/filepath"
	"testing"
	"time"

	"nathanbeddoewebdev/linops/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func tempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "linops.db")
	r, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSave_Insert(t *testing.T) {
	r := tempRepo(t)

	record := &Record{JobID: 501, LinodeID: 42, Action: "linode.boot", Status: StatusPending}
	if err := r.Save(record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if record.ID == 0 {
		t.Error("expected ID to be assigned after insert")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestSave_Update(t *testing.T) {
	r := tempRepo(t)

	record := &Record{JobID: 501, LinodeID: 42, Action: "linode.boot", Status: StatusPending}
	if err := r.Save(record); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	record.Status = StatusFailed
	record.Message = "No config profile"
	if err := r.Save(record); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := r.Get(record.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusFailed || got.Message != "No config profile" {
		t.Errorf("unexpected record after update: %+v", got)
	}
}

func TestSave_UpdateNotFound(t *testing.T) {
	r := tempRepo(t)

	if err := r.Save(&Record{ID: 999, Status: StatusPending}); err == nil {
		t.Fatal("expected error updating non-existent record")
	}
}

func TestSave_DuplicateJobRejected(t *testing.T) {
	r := tempRepo(t)

	if err := r.Save(&Record{JobID: 7, LinodeID: 1, Status: StatusPending}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := r.Save(&Record{JobID: 7, LinodeID: 1, Status: StatusPending}); err == nil {
		t.Fatal("expected error inserting the same job twice")
	}
	if err := r.Save(&Record{JobID: 7, LinodeID: 2, Status: StatusPending}); err != nil {
		t.Fatalf("expected same job ID on another linode to be allowed, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	r := tempRepo(t)

	got, err := r.Get(999)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for non-existent record, got %+v", got)
	}
}

func TestGetByJob(t *testing.T) {
	r := tempRepo(t)

	record := &Record{JobID: 501, LinodeID: 42, Action: "linode.disk.create", Status: StatusPending}
	r.Save(record)

	got, err := r.GetByJob(42, 501)
	if err != nil {
		t.Fatalf("GetByJob failed: %v", err)
	}
	if got == nil || got.ID != record.ID || got.Action != "linode.disk.create" {
		t.Errorf("unexpected record: %+v", got)
	}

	missing, err := r.GetByJob(43, 501)
	if err != nil {
		t.Fatalf("GetByJob failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for another linode, got %+v", missing)
	}
}

func TestListPending(t *testing.T) {
	r := tempRepo(t)

	for i, status := range []string{StatusPending, StatusSuccess, StatusPending, StatusFailed} {
		r.Save(&Record{JobID: int64(i + 1), LinodeID: 42, Status: status})
	}

	pending, err := r.ListPending()
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(pending))
	}
	for _, record := range pending {
		if record.Status != StatusPending {
			t.Errorf("expected status %q, got %q", StatusPending, record.Status)
		}
	}
}

func TestListRecent(t *testing.T) {
	r := tempRepo(t)

	for i := range 5 {
		r.Save(&Record{
			JobID:     int64(i + 1),
			LinodeID:  42,
			Status:    StatusSuccess,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
	}

	recent, err := r.ListRecent(3)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent records, got %d", len(recent))
	}
	if recent[0].JobID != 5 {
		t.Errorf("expected newest job first, got %d", recent[0].JobID)
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].CreatedAt.After(recent[i-1].CreatedAt) {
			t.Error("expected records sorted by created_at descending")
		}
	}
}

func TestDeleteOlderThan_KeepsPending(t *testing.T) {
	r := tempRepo(t)

	r.Save(&Record{JobID: 1, LinodeID: 42, Status: StatusPending})
	r.Save(&Record{JobID: 2, LinodeID: 42, Status: StatusSuccess})
	r.Save(&Record{JobID: 3, LinodeID: 42, Status: StatusFailed})

	removed, err := r.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected 0 removed, got %d", removed)
	}

	// A negative age puts the cutoff in the future.
	removed, err = r.DeleteOlderThan(-time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	pending, _ := r.ListPending()
	if len(pending) != 1 {
		t.Errorf("expected 1 pending record remaining, got %d", len(pending))
	}
}

func TestSQLiteRepository_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linops.db")

	r1, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	record := &Record{JobID: 501, LinodeID: 42, Action: "linode.boot", Label: "System Boot", Status: StatusPending}
	if err := r1.Save(record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	r1.Close()

	r2, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	defer r2.Close()

	got, err := r2.GetByJob(42, 501)
	if err != nil {
		t.Fatalf("GetByJob failed: %v", err)
	}
	if got == nil || got.Label != "System Boot" {
		t.Fatalf("expected record to be persisted, got %+v", got)
	}
}

func TestRecord_FromJobAndApply(t *testing.T) {
	finished := time.Date(2024, 3, 1, 10, 0, 9, 0, time.UTC)
	secs := 8

	r := FromJob(domain.Job{ID: 9, LinodeID: 3, Action: "linode.boot"})
	if r.Status != StatusPending || r.Action != "linode.boot" {
		t.Fatalf("unexpected record: %+v", r)
	}

	r.Apply(domain.Job{
		ID: 9, LinodeID: 3, Label: "System Boot",
		FinishedAt: &finished, Duration: &secs,
		Outcome: domain.OutcomeFailed, Message: "Kernel panic",
	})
	if r.Status != StatusFailed || r.Message != "Kernel panic" || r.Label != "System Boot" {
		t.Errorf("unexpected record after apply: %+v", r)
	}
	if r.Action != "linode.boot" {
		t.Errorf("expected action to be kept, got %q", r.Action)
	}

	j := r.Job()
	if j.IsTerminal() || j.ID != 9 || j.LinodeID != 3 {
		t.Errorf("expected pending snapshot for job 9, got %v", &j)
	}
}

func TestSQLiteRepository_ListRun(t *testing.T) {
	r := tempRepo(t)

	r.Save(&Record{JobID: 1, LinodeID: 42, Action: "linode.create", Status: StatusSuccess, RunID: "run-a"})
	r.Save(&Record{JobID: 2, LinodeID: 42, Action: "linode.boot", Status: StatusPending, RunID: "run-a"})
	r.Save(&Record{JobID: 3, LinodeID: 43, Action: "linode.boot", Status: StatusPending, RunID: "run-b"})

	got, err := r.ListRun("run-a")
	if err != nil {
		t.Fatalf("ListRun failed: %v", err)
	}
	var ids []int64
	for _, rec := range got {
		ids = append(ids, rec.JobID)
	}
	if diff := cmp.Diff([]int64{1, 2}, ids); diff != "" {
		t.Errorf("run jobs mismatch (-want +got):\n%s", diff)
	}

	none, _ := r.ListRun("run-c")
	if len(none) != 0 {
		t.Errorf("expected no records for unknown run, got %+v", none)
	}
}

func TestRecordAbandon_LeavesPendingAndIsPrunable(t *testing.T) {
	r := tempRepo(t)

	record := &Record{JobID: 7, LinodeID: 42, Action: "linode.disk.createfromdistribution", Status: StatusPending}
	if err := r.Save(record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	record.Abandon("linode deleted")
	if err := r.Save(record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	pending, _ := r.ListPending()
	if len(pending) != 0 {
		t.Errorf("expected no pending records, got %+v", pending)
	}
	got, _ := r.GetByJob(42, 7)
	if got == nil || got.Status != StatusAbandoned || got.Message != "linode deleted" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if removed, _ := r.DeleteOlderThan(-time.Hour); removed != 1 {
		t.Errorf("expected the abandoned record pruned, got %d removed", removed)
	}
}
