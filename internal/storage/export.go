// ABOUTME: Export and import functionality for sessions and completions
// ABOUTME: Supports YAML backup format and markdown completion reports

package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harper/courserun/internal/models"
	"gopkg.in/yaml.v3"
)

// BackupVersion is the current backup format version.
const BackupVersion = "1.0"

// Backup represents the YAML backup format.
type Backup struct {
	Version         string             `yaml:"version"`
	ExportedAt      time.Time          `yaml:"exported_at"`
	Tool            string             `yaml:"tool"`
	ActiveSessionID string             `yaml:"active_session_id,omitempty"`
	Sessions        []SessionBackup    `yaml:"sessions"`
	Completions     []CompletionBackup `yaml:"completions"`
}

// SessionBackup represents a tracking session in the backup format.
type SessionBackup struct {
	ID        string      `yaml:"id"`
	CourseID  string      `yaml:"course_id"`
	StartTime time.Time   `yaml:"start_time"`
	EndTime   *time.Time  `yaml:"end_time,omitempty"`
	IsActive  bool        `yaml:"is_active"`
	Fixes     []FixBackup `yaml:"fixes"`
}

// FixBackup represents one fix in the backup format.
type FixBackup struct {
	Lat       float64   `yaml:"lat"`
	Lng       float64   `yaml:"lng"`
	Timestamp time.Time `yaml:"timestamp"`
	Accuracy  float64   `yaml:"accuracy"`
	Speed     *float64  `yaml:"speed,omitempty"`
	Heading   *float64  `yaml:"heading,omitempty"`
}

// CompletionBackup represents a completion in the backup format.
type CompletionBackup struct {
	ID         string                    `yaml:"id"`
	Summary    models.SessionSummary     `yaml:"summary"`
	Result     models.VerificationResult `yaml:"result"`
	RecordedAt time.Time                 `yaml:"recorded_at"`
}

func sessionToBackup(s *models.TrackingSession) SessionBackup {
	b := SessionBackup{
		ID:        s.ID.String(),
		CourseID:  s.CourseID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		IsActive:  s.IsActive,
		Fixes:     make([]FixBackup, len(s.Fixes)),
	}
	for i, f := range s.Fixes {
		b.Fixes[i] = FixBackup{
			Lat:       f.Lat,
			Lng:       f.Lng,
			Timestamp: f.Timestamp,
			Accuracy:  f.Accuracy,
			Speed:     f.Speed,
			Heading:   f.Heading,
		}
	}
	return b
}

func sessionFromBackup(b SessionBackup) (*models.TrackingSession, error) {
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid session ID %s: %w", b.ID, err)
	}
	s := &models.TrackingSession{
		ID:        id,
		CourseID:  b.CourseID,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		IsActive:  b.IsActive,
		Fixes:     make([]models.Fix, len(b.Fixes)),
	}
	for i, f := range b.Fixes {
		s.Fixes[i] = models.Fix{
			Lat:       f.Lat,
			Lng:       f.Lng,
			Timestamp: f.Timestamp,
			Accuracy:  f.Accuracy,
			Speed:     f.Speed,
			Heading:   f.Heading,
		}
	}
	return s, nil
}

// ExportToYAML exports all data to YAML format.
func ExportToYAML(repo Repository) ([]byte, error) {
	sessions, err := repo.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	completions, err := repo.ListCompletions()
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	backup := Backup{
		Version:     BackupVersion,
		ExportedAt:  time.Now().UTC(),
		Tool:        "courserun",
		Sessions:    make([]SessionBackup, len(sessions)),
		Completions: make([]CompletionBackup, len(completions)),
	}

	active, err := repo.LoadActiveSession()
	switch {
	case err == nil:
		backup.ActiveSessionID = active.ID.String()
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("load active session: %w", err)
	}

	for i, s := range sessions {
		backup.Sessions[i] = sessionToBackup(s)
	}

	for i, c := range completions {
		backup.Completions[i] = CompletionBackup{
			ID:         c.ID.String(),
			Summary:    c.Summary,
			Result:     c.Result,
			RecordedAt: c.RecordedAt,
		}
	}

	return yaml.Marshal(backup)
}

// ImportFromYAML imports data from YAML format into repo.
func ImportFromYAML(repo Repository, data []byte) error {
	var backup Backup
	if err := yaml.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	if backup.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version: %s (expected %s)", backup.Version, BackupVersion)
	}

	if backup.Tool != "courserun" {
		return fmt.Errorf("wrong tool: %s (expected courserun)", backup.Tool)
	}

	tracks := make(map[uuid.UUID]*models.TrackingSession, len(backup.Sessions))
	for _, sb := range backup.Sessions {
		s, err := sessionFromBackup(sb)
		if err != nil {
			return err
		}
		if err := repo.PutSession(s); err != nil {
			return fmt.Errorf("put session %s: %w", sb.ID, err)
		}
		tracks[s.ID] = s
	}

	for _, cb := range backup.Completions {
		id, err := uuid.Parse(cb.ID)
		if err != nil {
			return fmt.Errorf("invalid completion ID %s: %w", cb.ID, err)
		}
		track, ok := tracks[cb.Summary.SessionID]
		if !ok {
			return fmt.Errorf("completion %s: session %s missing from backup", cb.ID, cb.Summary.SessionID)
		}
		c := &models.Completion{ID: id, Summary: cb.Summary, Result: cb.Result, RecordedAt: cb.RecordedAt}
		if err := repo.RecordCompletion(c, track); err != nil {
			return fmt.Errorf("record completion %s: %w", cb.ID, err)
		}
	}

	if backup.ActiveSessionID != "" {
		id, err := uuid.Parse(backup.ActiveSessionID)
		if err != nil {
			return fmt.Errorf("invalid active session ID %s: %w", backup.ActiveSessionID, err)
		}
		if s, ok := tracks[id]; ok {
			if err := repo.SaveActiveSession(s); err != nil {
				return fmt.Errorf("restore active session: %w", err)
			}
		}
	}

	return nil
}

// ExportToMarkdown renders completions as a markdown report.
// If courseID is empty, all courses are included.
func ExportToMarkdown(repo Repository, courseID string) ([]byte, error) {
	completions, err := repo.ListCompletions()
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	var sb strings.Builder

	now := time.Now().UTC()
	sb.WriteString(fmt.Sprintf("# Course Completions - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	rows := 0
	for _, c := range completions {
		if courseID != "" && c.Summary.CourseID != courseID {
			continue
		}
		if rows == 0 {
			sb.WriteString("| Date | Course | Distance | Time | Confidence | Recommendation | Source |\n")
			sb.WriteString("|------|--------|----------|------|------------|----------------|--------|\n")
		}
		rows++
		sb.WriteString(fmt.Sprintf("| %s | %s | %.2f km | %s | %.2f | %s | %s |\n",
			c.Summary.EndTime.Format("2006-01-02 15:04"),
			c.Summary.CourseID,
			c.Summary.Distance/1000,
			c.Summary.Elapsed.Round(time.Second),
			c.Result.Confidence,
			c.Result.Recommendation,
			c.Result.Source,
		))
	}

	if rows == 0 {
		sb.WriteString("No completions recorded.\n")
	}

	return []byte(sb.String()), nil
}

// ExportBackup creates a YAML backup (alias for ExportToYAML).
func ExportBackup(repo Repository) ([]byte, error) {
	return ExportToYAML(repo)
}

// ImportBackup restores from a YAML backup (alias for ImportFromYAML).
func ImportBackup(repo Repository, data []byte) error {
	return ImportFromYAML(repo, data)
}
