// ABOUTME: SQLite storage implementation for tracking sessions and completions
// ABOUTME: Provides local-only persistence using pure Go SQLite driver

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/harper/courserun/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements Repository with a local SQLite database.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// Compile-time check that SQLiteDB implements Repository.
var _ Repository = (*SQLiteDB)(nil)

// DefaultDataDir returns the default directory for local data,
// honoring XDG_DATA_HOME.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "courserun")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "courserun")
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "courserun.db")
}

// NewSQLiteDB creates a new SQLite database at the given path.
// Creates the directory and database file if they don't exist.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil { //nolint:gosec // 0750 is appropriate for user data directory
		return nil, fmt.Errorf("create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteDB{db: db, path: path}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// migrate creates or updates the database schema.
// Records are stored as JSON documents; the extra columns exist for lookups and ordering.
func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			start_time DATETIME NOT NULL,
			is_active INTEGER NOT NULL,
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS active_session (
			slot INTEGER PRIMARY KEY CHECK (slot = 1),
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS completions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE REFERENCES sessions(id),
			course_id TEXT NOT NULL,
			recommendation TEXT NOT NULL,
			confidence REAL NOT NULL,
			recorded_at DATETIME NOT NULL,
			data TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions(start_time);
		CREATE INDEX IF NOT EXISTS idx_completions_course_id ON completions(course_id);
		CREATE INDEX IF NOT EXISTS idx_completions_recorded_at ON completions(recorded_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Reset clears all data from the database.
func (s *SQLiteDB) Reset() error {
	_, err := s.db.Exec("DELETE FROM completions; DELETE FROM active_session; DELETE FROM sessions;")
	return err
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func putSession(e execer, sess *models.TrackingSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = e.Exec(
		`INSERT INTO sessions (id, course_id, start_time, is_active, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
			course_id = excluded.course_id,
			start_time = excluded.start_time,
			is_active = excluded.is_active,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP`,
		sess.ID.String(), sess.CourseID, sess.StartTime, sess.IsActive, string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// PutSession stores a session without changing the active pointer.
func (s *SQLiteDB) PutSession(sess *models.TrackingSession) error {
	return putSession(s.db, sess)
}

// SaveActiveSession upserts the session and marks it active.
func (s *SQLiteDB) SaveActiveSession(sess *models.TrackingSession) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := putSession(tx, sess); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO active_session (slot, session_id) VALUES (1, ?)
		 ON CONFLICT(slot) DO UPDATE SET session_id = excluded.session_id`,
		sess.ID.String(),
	); err != nil {
		return fmt.Errorf("set active session: %w", err)
	}
	return tx.Commit()
}

// LoadActiveSession returns the session the active pointer names.
func (s *SQLiteDB) LoadActiveSession() (*models.TrackingSession, error) {
	row := s.db.QueryRow(
		`SELECT s.data FROM active_session a
		 JOIN sessions s ON s.id = a.session_id
		 WHERE a.slot = 1`,
	)
	return scanSession(row)
}

// ClearActiveSession drops the active pointer and deletes the session unless
// a completion references it.
func (s *SQLiteDB) ClearActiveSession() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRow("SELECT session_id FROM active_session WHERE slot = 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read active session: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM active_session WHERE slot = 1"); err != nil {
		return fmt.Errorf("clear active session: %w", err)
	}
	if _, err := tx.Exec(
		"DELETE FROM sessions WHERE id = ? AND id NOT IN (SELECT session_id FROM completions)",
		id,
	); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

// GetSession retrieves a session by its UUID.
func (s *SQLiteDB) GetSession(id uuid.UUID) (*models.TrackingSession, error) {
	row := s.db.QueryRow("SELECT data FROM sessions WHERE id = ?", id.String())
	return scanSession(row)
}

// ListSessions returns all sessions, newest first.
func (s *SQLiteDB) ListSessions() ([]*models.TrackingSession, error) {
	rows, err := s.db.Query("SELECT data FROM sessions ORDER BY start_time DESC")
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*models.TrackingSession
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		var sess models.TrackingSession
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func scanSession(row *sql.Row) (*models.TrackingSession, error) {
	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	var sess models.TrackingSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// RecordCompletion stores the completion together with its track.
func (s *SQLiteDB) RecordCompletion(c *models.Completion, track *models.TrackingSession) error {
	if track == nil || track.ID != c.Summary.SessionID {
		return fmt.Errorf("record completion: track does not match session %s", c.Summary.SessionID)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode completion: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRow("SELECT id FROM completions WHERE session_id = ?", track.ID.String()).Scan(&existing)
	if err == nil {
		return fmt.Errorf("session %s: %w", track.ID, ErrAlreadyRecorded)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check completion: %w", err)
	}

	if err := putSession(tx, track); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO completions (id, session_id, course_id, recommendation, confidence, recorded_at, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), track.ID.String(), c.Summary.CourseID,
		string(c.Result.Recommendation), c.Result.Confidence, c.RecordedAt, string(data),
	); err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return tx.Commit()
}

// GetCompletion retrieves a completion by its UUID.
func (s *SQLiteDB) GetCompletion(id uuid.UUID) (*models.Completion, error) {
	row := s.db.QueryRow("SELECT data FROM completions WHERE id = ?", id.String())
	return scanCompletion(row)
}

// GetCompletionBySession retrieves the completion recorded for a session.
func (s *SQLiteDB) GetCompletionBySession(sessionID uuid.UUID) (*models.Completion, error) {
	row := s.db.QueryRow("SELECT data FROM completions WHERE session_id = ?", sessionID.String())
	return scanCompletion(row)
}

// ListCompletions returns all completions, newest first.
func (s *SQLiteDB) ListCompletions() ([]*models.Completion, error) {
	rows, err := s.db.Query("SELECT data FROM completions ORDER BY recorded_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var completions []*models.Completion
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		var c models.Completion
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, fmt.Errorf("decode completion: %w", err)
		}
		completions = append(completions, &c)
	}
	return completions, rows.Err()
}

// DeleteCompletion removes a completion. Its track stays.
func (s *SQLiteDB) DeleteCompletion(id uuid.UUID) error {
	res, err := s.db.Exec("DELETE FROM completions WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCompletion(row *sql.Row) (*models.Completion, error) {
	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan completion: %w", err)
	}
	var c models.Completion
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	return &c, nil
}
