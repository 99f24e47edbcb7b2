// Package jobstore persists the jobs the CLI has issued.
//
// Every job a command starts is journaled while it runs, so that if the
// process is interrupted the wait can be resumed with "linops job resume".
// Storage is the shared SQLite database from internal/database.
package jobstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nathanbeddoewebdev/linops/internal/database"
)

// timeLayout has a fixed width so stored timestamps order as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository defines the persistence interface for job records.
type Repository interface {
	// Save inserts or updates a record. On insert (ID == 0), an ID is
	// assigned to the record.
	Save(record *Record) error

	// Get retrieves a record by primary key, or nil if absent.
	Get(id int64) (*Record, error)

	// GetByJob retrieves the record for a job, or nil if absent.
	GetByJob(linodeID, jobID int64) (*Record, error)

	// ListPending returns all pending records, newest first.
	ListPending() ([]Record, error)

	// ListRecent returns the most recent n records regardless of status.
	ListRecent(n int) ([]Record, error)

	// ListRun returns the records of one run, oldest first.
	ListRun(runID string) ([]Record, error)

	// DeleteOlderThan removes finished records not updated within d and
	// returns how many were removed.
	DeleteOlderThan(d time.Duration) (int64, error)

	Close() error
}

// SQLiteRepository implements Repository backed by a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// Open creates or opens the journal at the default database path.
func Open() (*SQLiteRepository, error) {
	path, err := database.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("jobs: %w", err)
	}
	return OpenAt(path)
}

// OpenAt creates or opens the journal in the SQLite database at path.
func OpenAt(path string) (*SQLiteRepository, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("jobs: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS jobs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id     INTEGER NOT NULL,
			linode_id  INTEGER NOT NULL,
			action     TEXT    NOT NULL DEFAULT '',
			label      TEXT    NOT NULL DEFAULT '',
			status     TEXT    NOT NULL DEFAULT 'pending',
			message    TEXT    NOT NULL DEFAULT '',
			run_id     TEXT    NOT NULL DEFAULT '',
			created_at TEXT    NOT NULL,
			updated_at TEXT    NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_job ON jobs(linode_id, job_id);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
		CREATE INDEX IF NOT EXISTS idx_jobs_run ON jobs(run_id);
	`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("jobs: migration failed: %w", err)
	}
	return nil
}

// Save inserts a new record (ID == 0) or updates an existing one.
func (r *SQLiteRepository) Save(record *Record) error {
	record.UpdatedAt = time.Now().UTC()

	if record.ID == 0 {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = record.UpdatedAt
		}
		result, err := r.db.Exec(`
			INSERT INTO jobs (job_id, linode_id, action, label, status, message, run_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.JobID, record.LinodeID, record.Action, record.Label, record.Status, record.Message, record.RunID,
			record.CreatedAt.UTC().Format(timeLayout), record.UpdatedAt.Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("jobs: insert failed: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("jobs: failed to get last insert ID: %w", err)
		}
		record.ID = id
		return nil
	}

	result, err := r.db.Exec(`
		UPDATE jobs SET job_id=?, linode_id=?, action=?, label=?, status=?, message=?, run_id=?, updated_at=?
		WHERE id=?`,
		record.JobID, record.LinodeID, record.Action, record.Label, record.Status, record.Message, record.RunID,
		record.UpdatedAt.Format(timeLayout), record.ID,
	)
	if err != nil {
		return fmt.Errorf("jobs: update failed: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("jobs: record with ID %d not found", record.ID)
	}
	return nil
}

const selectColumns = `SELECT id, job_id, linode_id, action, label, status, message, run_id, created_at, updated_at FROM jobs`

// Get retrieves a single record by primary key.
func (r *SQLiteRepository) Get(id int64) (*Record, error) {
	return r.queryOne(selectColumns+` WHERE id = ?`, id)
}

// GetByJob retrieves the record for a job.
func (r *SQLiteRepository) GetByJob(linodeID, jobID int64) (*Record, error) {
	return r.queryOne(selectColumns+` WHERE linode_id = ? AND job_id = ?`, linodeID, jobID)
}

// ListPending returns all pending records.
func (r *SQLiteRepository) ListPending() ([]Record, error) {
	return r.query(selectColumns+` WHERE status = ? ORDER BY created_at DESC, id DESC`, StatusPending)
}

// ListRecent returns the most recent n records regardless of status.
func (r *SQLiteRepository) ListRecent(n int) ([]Record, error) {
	return r.query(selectColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, n)
}

// ListRun returns the records of one run, oldest first.
func (r *SQLiteRepository) ListRun(runID string) ([]Record, error) {
	return r.query(selectColumns+` WHERE run_id = ? ORDER BY created_at, id`, runID)
}

// DeleteOlderThan removes finished records older than d.
func (r *SQLiteRepository) DeleteOlderThan(d time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-d).Format(timeLayout)
	result, err := r.db.Exec(`DELETE FROM jobs WHERE status != ? AND updated_at < ?`, StatusPending, cutoff)
	if err != nil {
		return 0, fmt.Errorf("jobs: delete failed: %w", err)
	}
	return result.RowsAffected()
}

// Close releases database resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) queryOne(query string, args ...any) (*Record, error) {
	var record Record
	err := scan(r.db.QueryRow(query, args...), &record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: query failed: %w", err)
	}
	return &record, nil
}

func (r *SQLiteRepository) query(query string, args ...any) ([]Record, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("jobs: query failed: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		if err := scan(rows, &record); err != nil {
			return nil, fmt.Errorf("jobs: scan failed: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner, record *Record) error {
	var createdStr, updatedStr string
	err := s.Scan(
		&record.ID, &record.JobID, &record.LinodeID, &record.Action, &record.Label,
		&record.Status, &record.Message, &record.RunID, &createdStr, &updatedStr,
	)
	if err != nil {
		return err
	}
	record.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	record.UpdatedAt, _ = time.Parse(timeLayout, updatedStr)
	return nil
}
