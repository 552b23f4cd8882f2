// ABOUTME: Data migration between storage backends
// ABOUTME: Copies sessions, completions, and the active pointer from source to destination

package storage

import (
	"errors"
	"fmt"
	"os"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Sessions    int
	Completions int
	Active      bool
}

// MigrateData copies all data from src to dst storage.
// Sessions go first so every completion finds its track. The destination
// should be empty before calling this function.
func MigrateData(src, dst Repository) (*MigrateSummary, error) {
	summary := &MigrateSummary{}

	sessions, err := src.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("list source sessions: %w", err)
	}

	for _, s := range sessions {
		if err := dst.PutSession(s); err != nil {
			return nil, fmt.Errorf("put session %s: %w", s.ID, err)
		}
		summary.Sessions++
	}

	completions, err := src.ListCompletions()
	if err != nil {
		return nil, fmt.Errorf("list source completions: %w", err)
	}

	for _, c := range completions {
		track, err := src.GetSession(c.Summary.SessionID)
		if err != nil {
			return nil, fmt.Errorf("get track for completion %s: %w", c.ID, err)
		}
		if err := dst.RecordCompletion(c, track); err != nil {
			return nil, fmt.Errorf("record completion %s: %w", c.ID, err)
		}
		summary.Completions++
	}

	active, err := src.LoadActiveSession()
	switch {
	case err == nil:
		if err := dst.SaveActiveSession(active); err != nil {
			return nil, fmt.Errorf("set active session: %w", err)
		}
		summary.Active = true
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("load active session: %w", err)
	}

	return summary, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}

// FileExists reports whether a regular file exists at path.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
	return info.Mode().IsRegular(), nil
}
