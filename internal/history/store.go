package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"streamclean/internal/api"
)

// ErrNotFound is returned when a job has no history entry.
var ErrNotFound = errors.New("history: job not found")

const (
	lockRetryDelay = 50 * time.Millisecond
	// Fixed width so timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one recorded job.
type Entry struct {
	JobID       string
	Dir         string
	OutputDir   string
	Status      api.Status
	FileCount   int
	Languages   []string
	SubmittedAt time.Time
	UpdatedAt   time.Time
	FinishedAt  *time.Time
}

// Store persists job history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create state dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("history: acquire lock: %w", err)
	}
	if !locked {
		return nil, errors.New("history: database lock not acquired")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: %w", err)
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a newly submitted job. Recording the same job twice keeps the
// first entry.
func (s *Store) Record(ctx context.Context, jobID string, req api.ProcessRequest) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, dir, output_dir, status, file_count, languages, submitted_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id) DO NOTHING`,
		jobID,
		req.Dir,
		req.OutputDir,
		api.StatusPending,
		len(req.Selections),
		strings.Join(req.AudioLanguages, ","),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("history: record job %s: %w", jobID, err)
	}
	return nil
}

// UpdateStatus stores the latest status; terminal statuses also set the
// finish time.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status api.Status) error {
	now := formatTime(time.Now())
	var finished any
	if status.Terminal() {
		finished = now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ?, finished_at = COALESCE(?, finished_at)
         WHERE job_id = ?`,
		status, now, finished, jobID,
	)
	if err != nil {
		return fmt.Errorf("history: update job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the entry for jobID.
func (s *Store) Get(ctx context.Context, jobID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE job_id = ?`, jobID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

// List returns the most recent entries first. A non-positive limit returns
// everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := selectColumns + ` ORDER BY submitted_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate: %w", err)
	}
	return entries, nil
}

const selectColumns = `SELECT job_id, dir, output_dir, status, file_count, languages, submitted_at, updated_at, finished_at FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry     Entry
		status    string
		languages string
		submitted string
		updated   string
		finished  sql.NullString
	)
	if err := row.Scan(&entry.JobID, &entry.Dir, &entry.OutputDir, &status, &entry.FileCount, &languages, &submitted, &updated, &finished); err != nil {
		return Entry{}, err
	}
	entry.Status = api.Status(status)
	if languages != "" {
		entry.Languages = strings.Split(languages, ",")
	}
	entry.SubmittedAt = parseTime(submitted)
	entry.UpdatedAt = parseTime(updated)
	if finished.Valid {
		t := parseTime(finished.String)
		entry.FinishedAt = &t
	}
	return entry, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
