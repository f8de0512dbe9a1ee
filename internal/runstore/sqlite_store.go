// Package runstore provides persistent storage for bake job state and baked
// trails using SQLite.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/atlasmap-sc/orbitscene/internal/animator"
)

// JobStatus represents the current state of a bake job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// BakeJobParams contains the parameters for a bake job.
type BakeJobParams struct {
	SceneID    string          `json:"scene_id"`
	Animation  animator.Params `json:"animation"`
	WriteTrace bool            `json:"write_trace"`
}

// BakeJobProgress represents the progress of a bake job.
type BakeJobProgress struct {
	Phase string `json:"phase"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// BakeJob is one asynchronous bake of a scene's timeline.
type BakeJob struct {
	ID         string          `json:"job_id"`
	SceneID    string          `json:"scene_id"`
	Status     JobStatus       `json:"status"`
	Params     BakeJobParams   `json:"params"`
	Progress   BakeJobProgress `json:"progress"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	TracePath  string          `json:"trace_path,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// TrailRow is one baked trail point with the frame that produced it.
type TrailRow struct {
	Frame int `json:"frame"`
	animator.TrailPoint
}

// Store provides persistent storage for bake jobs using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a new SQLite-based bake store.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bake_jobs (
		job_id TEXT PRIMARY KEY,
		scene_id TEXT NOT NULL,
		status TEXT NOT NULL,
		params_json TEXT NOT NULL,
		phase TEXT DEFAULT '',
		done INTEGER DEFAULT 0,
		total INTEGER DEFAULT 0,
		trace_path TEXT DEFAULT '',
		error TEXT DEFAULT '',
		created_at TEXT NOT NULL,
		started_at TEXT,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_bake_jobs_scene ON bake_jobs(scene_id);
	CREATE INDEX IF NOT EXISTS idx_bake_jobs_status ON bake_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_bake_jobs_finished ON bake_jobs(finished_at);

	CREATE TABLE IF NOT EXISTS trail_points (
		job_id TEXT NOT NULL,
		frame INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		w REAL NOT NULL,
		PRIMARY KEY (job_id, frame),
		FOREIGN KEY (job_id) REFERENCES bake_jobs(job_id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const jobColumns = `job_id, scene_id, status, params_json, phase, done, total, trace_path, error, created_at, started_at, finished_at`

// CreateJob creates a new job record.
func (s *Store) CreateJob(job *BakeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paramsJSON, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO bake_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID,
		job.Params.SceneID,
		string(job.Status),
		string(paramsJSON),
		job.Progress.Phase,
		job.Progress.Done,
		job.Progress.Total,
		job.TracePath,
		job.Error,
		job.CreatedAt.Format(time.RFC3339),
		nil,
		nil,
	)
	return err
}

// GetJob retrieves a job by ID. It returns nil, nil when no job matches.
func (s *Store) GetJob(jobID string) (*BakeJob, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM bake_jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return job, err
}

// UpdateJobStatus updates the job status, stamping finished_at on terminal states.
func (s *Store) UpdateJobStatus(jobID string, status JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finishedAt *string
	if status.Terminal() {
		t := time.Now().Format(time.RFC3339)
		finishedAt = &t
	}

	_, err := s.db.Exec(`
		UPDATE bake_jobs SET status = ?, error = ?, finished_at = COALESCE(?, finished_at)
		WHERE job_id = ?
	`, string(status), errMsg, finishedAt, jobID)
	return err
}

// StartJob moves a queued job to running and stamps started_at. It reports
// false when the job is no longer queued, e.g. cancelled in the meantime.
func (s *Store) StartJob(jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE bake_jobs SET status = ?, started_at = ?
		WHERE job_id = ? AND status = ?
	`, string(JobStatusRunning), now, jobID, string(JobStatusQueued))
	return affected(res, err)
}

// CancelQueuedJob cancels a job that has not started yet. It reports false
// when the job is not queued.
func (s *Store) CancelQueuedJob(jobID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE bake_jobs SET status = ?, error = ?, finished_at = ?
		WHERE job_id = ? AND status = ?
	`, string(JobStatusCancelled), reason, now, jobID, string(JobStatusQueued))
	return affected(res, err)
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateJobProgress updates the progress fields.
func (s *Store) UpdateJobProgress(jobID string, phase string, done, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE bake_jobs SET phase = ?, done = ?, total = ?
		WHERE job_id = ?
	`, phase, done, total, jobID)
	return err
}

// UpdateJobTrace records where the job's trace file was written.
func (s *Store) UpdateJobTrace(jobID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE bake_jobs SET trace_path = ? WHERE job_id = ?`, path, jobID)
	return err
}

// InsertTrailPoints inserts baked trail points in a batch transaction.
func (s *Store) InsertTrailPoints(jobID string, rows []TrailRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trail_points (job_id, frame, x, y, z, w)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(jobID, r.Frame, r.X, r.Y, r.Z, r.W); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// QueryTrail returns a page of a job's trail in frame order, with the total
// number of stored points.
func (s *Store) QueryTrail(jobID string, offset, limit int) ([]TrailRow, int, error) {
	var total int
	err := s.db.QueryRow("SELECT COUNT(*) FROM trail_points WHERE job_id = ?", jobID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT frame, x, y, z, w
		FROM trail_points
		WHERE job_id = ?
		ORDER BY frame ASC
		LIMIT ? OFFSET ?
	`, jobID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]TrailRow, 0, limit)
	for rows.Next() {
		var r TrailRow
		if err := rows.Scan(&r.Frame, &r.X, &r.Y, &r.Z, &r.W); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// ListJobsByScene returns all jobs for a scene, newest first.
func (s *Store) ListJobsByScene(sceneID string) ([]*BakeJob, error) {
	rows, err := s.db.Query(`
		SELECT `+jobColumns+`
		FROM bake_jobs WHERE scene_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, sceneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListQueuedJobs returns all queued jobs (for restart recovery).
func (s *Store) ListQueuedJobs() ([]*BakeJob, error) {
	rows, err := s.db.Query(`
		SELECT `+jobColumns+`
		FROM bake_jobs WHERE status = ?
		ORDER BY created_at ASC, rowid ASC
	`, string(JobStatusQueued))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// MarkRunningAsFailed marks all running jobs as failed (for restart recovery).
func (s *Store) MarkRunningAsFailed(errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Format(time.RFC3339)
	_, err := s.db.Exec(`
		UPDATE bake_jobs SET status = ?, error = ?, finished_at = ?
		WHERE status = ?
	`, string(JobStatusFailed), errMsg, now, string(JobStatusRunning))
	return err
}

// DeleteExpiredJobs deletes jobs that finished more than retentionDays ago.
func (s *Store) DeleteExpiredJobs(retentionDays int) (int64, error) {
	return s.DeleteJobsFinishedBefore(time.Now().AddDate(0, 0, -retentionDays))
}

// DeleteJobsFinishedBefore deletes finished jobs and their trails.
func (s *Store) DeleteJobsFinishedBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := cutoff.Format(time.RFC3339)

	// Delete trails first (foreign key)
	_, err := s.db.Exec(`
		DELETE FROM trail_points WHERE job_id IN (
			SELECT job_id FROM bake_jobs WHERE finished_at IS NOT NULL AND finished_at < ?
		)
	`, c)
	if err != nil {
		return 0, err
	}

	result, err := s.db.Exec(`
		DELETE FROM bake_jobs WHERE finished_at IS NOT NULL AND finished_at < ?
	`, c)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteJob deletes a job and its trail.
func (s *Store) DeleteJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM trail_points WHERE job_id = ?", jobID); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM bake_jobs WHERE job_id = ?", jobID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*BakeJob, error) {
	var job BakeJob
	var paramsJSON string
	var createdAtStr string
	var startedAtStr, finishedAtStr sql.NullString

	err := row.Scan(
		&job.ID,
		&job.SceneID,
		&job.Status,
		&paramsJSON,
		&job.Progress.Phase,
		&job.Progress.Done,
		&job.Progress.Total,
		&job.TracePath,
		&job.Error,
		&createdAtStr,
		&startedAtStr,
		&finishedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(paramsJSON), &job.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	if startedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339, startedAtStr.String)
		job.StartedAt = &t
	}
	if finishedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339, finishedAtStr.String)
		job.FinishedAt = &t
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*BakeJob, error) {
	var jobs []*BakeJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
