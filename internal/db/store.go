package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwulff/voiceclone/internal/backend"
	"github.com/jwulff/voiceclone/internal/pipeline"
)

const schema = `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY,
		status TEXT NOT NULL,
		voiceId TEXT,
		createdAt REAL NOT NULL,
		updatedAt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS responses (
		id INTEGER NOT NULL,
		voiceId TEXT NOT NULL,
		question TEXT NOT NULL,
		audioUrl TEXT NOT NULL,
		position INTEGER NOT NULL,
		loadedAt REAL NOT NULL,
		PRIMARY KEY (voiceId, id)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_updated ON jobs(updatedAt);
`

// Store provides access to the voiceclone SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, _ = os.UserHomeDir()
	}
	return filepath.Join(dir, "voiceclone", "voiceclone.sqlite")
}

// Open opens the database for reading and writing, creating the file and
// schema when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenReadOnly opens an existing database without write access, for
// processes that only inspect history.
func OpenReadOnly(path string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveJob inserts or updates a job row.
func (s *Store) SaveJob(job pipeline.Job) error {
	created, updated := job.CreatedAt, job.UpdatedAt
	if created.IsZero() {
		created = s.now()
	}
	if updated.IsZero() {
		updated = created
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, status, voiceId, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			voiceId = excluded.voiceId,
			updatedAt = excluded.updatedAt
	`, job.ID, string(job.Status), nullString(job.VoiceID), unixFromTime(created), unixFromTime(updated))
	if err != nil {
		return fmt.Errorf("save job %d: %w", job.ID, err)
	}
	return nil
}

// LatestJob returns the most recently updated job, if any.
func (s *Store) LatestJob() (*Job, error) {
	return s.scanJob(s.db.QueryRow(`
		SELECT id, status, voiceId, createdAt, updatedAt
		FROM jobs
		ORDER BY updatedAt DESC, id DESC
		LIMIT 1
	`))
}

// JobByID returns a single job, or nil when it is unknown.
func (s *Store) JobByID(id int) (*Job, error) {
	return s.scanJob(s.db.QueryRow(`
		SELECT id, status, voiceId, createdAt, updatedAt
		FROM jobs
		WHERE id = ?
	`, id))
}

// RecentJobs returns up to limit jobs, newest first.
func (s *Store) RecentJobs(limit int) ([]Job, error) {
	rows, err := s.db.Query(`
		SELECT id, status, voiceId, createdAt, updatedAt
		FROM jobs
		ORDER BY updatedAt DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// ReplaceResponses swaps the cached responses for voiceID with clips.
func (s *Store) ReplaceResponses(voiceID string, clips []backend.ResponseClip) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM responses WHERE voiceId = ?`, voiceID); err != nil {
		return fmt.Errorf("clear responses: %w", err)
	}
	loaded := unixFromTime(s.now())
	for i, c := range clips {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO responses (id, voiceId, question, audioUrl, position, loadedAt)
			VALUES (?, ?, ?, ?, ?, ?)
		`, c.ID, voiceID, c.Question, c.AudioURL, i, loaded); err != nil {
			return fmt.Errorf("insert response %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// ResponsesForVoice returns the cached responses in load order.
func (s *Store) ResponsesForVoice(voiceID string) ([]Response, error) {
	rows, err := s.db.Query(`
		SELECT id, voiceId, question, audioUrl, position, loadedAt
		FROM responses
		WHERE voiceId = ?
		ORDER BY position ASC
	`, voiceID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var r Response
		var loadedAt float64
		if err := rows.Scan(&r.ID, &r.VoiceID, &r.Question, &r.AudioURL, &r.Position, &loadedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r.LoadedAt = timeFromUnix(loadedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanJob(row scanner) (*Job, error) {
	var j Job
	var voiceID sql.NullString
	var createdAt, updatedAt float64
	if err := row.Scan(&j.ID, &j.Status, &voiceID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	j.VoiceID = voiceID.String
	j.CreatedAt = timeFromUnix(createdAt)
	j.UpdatedAt = timeFromUnix(updatedAt)
	return &j, nil
}

// PipelineJob converts a stored row back into the orchestrator's view so an
// interrupted job can be resumed.
func (j Job) PipelineJob() pipeline.Job {
	return pipeline.Job{
		ID:        j.ID,
		Status:    backend.JobState(j.Status),
		VoiceID:   j.VoiceID,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
