// ABOUTME: Repository interfaces for tracking-session and completion storage
// ABOUTME: Enables testability and storage backend swapping

package storage

import (
	"github.com/google/uuid"
	"github.com/harper/courserun/internal/models"
)

// SessionStore holds the active, recoverable tracking session. Each session is
// one record keyed by its id; a single pointer marks which one is active.
type SessionStore interface {
	SaveActiveSession(s *models.TrackingSession) error
	LoadActiveSession() (*models.TrackingSession, error)
	// ClearActiveSession drops the active pointer. The session record is
	// deleted too unless a completion already references it.
	ClearActiveSession() error
}

// CompletionRepository durably records finished runs and their tracks.
type CompletionRepository interface {
	RecordCompletion(c *models.Completion, track *models.TrackingSession) error
	GetCompletion(id uuid.UUID) (*models.Completion, error)
	GetCompletionBySession(sessionID uuid.UUID) (*models.Completion, error)
	ListCompletions() ([]*models.Completion, error)
	GetSession(id uuid.UUID) (*models.TrackingSession, error)
	DeleteCompletion(id uuid.UUID) error
}

// Repository combines all repository operations with lifecycle management.
type Repository interface {
	SessionStore
	CompletionRepository
	// PutSession stores a session record without touching the active pointer.
	PutSession(s *models.TrackingSession) error
	ListSessions() ([]*models.TrackingSession, error)
	Close() error
	Reset() error
}
