// ABOUTME: Background GPS sampler owning the single active tracking session
// ABOUTME: Buffers fixes, persists after each one, and recovers interrupted sessions

package sampler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/storage"
	"go.uber.org/zap"
)

// ErrAlreadyTracking is returned by Start while a subscription is active.
var ErrAlreadyTracking = errors.New("already tracking")

// ErrNotTracking is returned by Stop when no session is held.
var ErrNotTracking = errors.New("no active tracking session")

const (
	// DefaultMaxBuffer is the fix count that triggers a trim.
	DefaultMaxBuffer = 1000
	// DefaultTrimTo is how many of the newest fixes survive a trim.
	DefaultTrimTo = 800
	// DefaultStaleAfter is the age past which a persisted session is discarded.
	DefaultStaleAfter = 24 * time.Hour
)

// Handler receives every fix delivered while watching.
type Handler func(models.Fix)

// Status is a point-in-time view of the sampler.
type Status struct {
	IsTracking bool                    `json:"is_tracking"`
	Session    *models.TrackingSession `json:"session,omitempty"`
	PointCount int                     `json:"point_count"`
}

// Sampler subscribes to a LocationProvider and records fixes into the
// current TrackingSession.
type Sampler struct {
	provider LocationProvider
	store    storage.SessionStore
	logger   *zap.Logger
	now      func() time.Time

	watchOpts  WatchOptions
	maxBuffer  int
	trimTo     int
	staleAfter time.Duration

	mu       sync.Mutex
	session  *models.TrackingSession
	watchID  WatchID
	watching bool
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithWatchOptions overrides the options passed to the provider.
func WithWatchOptions(o WatchOptions) Option {
	return func(s *Sampler) { s.watchOpts = o }
}

// WithBufferLimits sets the trim trigger and the retained count.
func WithBufferLimits(limit, keep int) Option {
	return func(s *Sampler) {
		if limit > 0 && keep > 0 && keep <= limit {
			s.maxBuffer = limit
			s.trimTo = keep
		}
	}
}

// WithStaleAfter sets the recovery age limit.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// New creates a sampler over provider, persisting to store.
func New(provider LocationProvider, store storage.SessionStore, opts ...Option) *Sampler {
	s := &Sampler{
		provider:   provider,
		store:      store,
		logger:     zap.NewNop(),
		now:        time.Now,
		watchOpts:  DefaultWatchOptions(),
		maxBuffer:  DefaultMaxBuffer,
		trimTo:     DefaultTrimTo,
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a new session for courseID and subscribes to the provider.
// Fixes go to handler; a nil handler records them with Record. If the
// provider refuses the subscription no session is created.
func (s *Sampler) Start(courseID string, handler Handler) (*models.TrackingSession, error) {
	return s.begin(models.NewTrackingSession(courseID, s.now()), handler)
}

// Continue resumes watching for a recovered session, keeping its fixes.
func (s *Sampler) Continue(sess *models.TrackingSession, handler Handler) error {
	if sess == nil {
		return fmt.Errorf("continue session: session is required")
	}
	resumed := sess.Clone()
	resumed.IsActive = true
	resumed.EndTime = nil
	_, err := s.begin(resumed, handler)
	return err
}

func (s *Sampler) begin(sess *models.TrackingSession, handler Handler) (*models.TrackingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watching {
		return nil, ErrAlreadyTracking
	}
	if handler == nil {
		handler = s.Record
	}

	id, err := s.provider.WatchPosition(s.deliver(handler), s.onError, s.watchOpts)
	if err != nil {
		return nil, fmt.Errorf("watch position: %w", err)
	}

	s.session = sess
	s.watchID = id
	s.watching = true

	if err := s.persistLocked(); err != nil {
		s.logger.Warn("Initial session save failed", zap.String("session", sess.ID.String()), zap.Error(err))
	}

	s.logger.Info("Tracking started",
		zap.String("session", sess.ID.String()),
		zap.String("course", sess.CourseID),
		zap.Int("fixes", len(sess.Fixes)))

	return sess.Clone(), nil
}

// deliver wraps handler so fixes arriving after Stop are dropped.
func (s *Sampler) deliver(handler Handler) func(models.RawPosition) {
	return func(raw models.RawPosition) {
		s.mu.Lock()
		active := s.watching && s.session != nil
		now := s.now()
		s.mu.Unlock()
		if !active {
			return
		}
		handler(models.NewFix(raw, now))
	}
}

func (s *Sampler) onError(err error) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		s.logger.Error("Location permission denied", zap.Error(err))
	case errors.Is(err, ErrPositionUnavailable), errors.Is(err, ErrTimeout):
		s.logger.Warn("Transient location error", zap.Error(err))
	default:
		s.logger.Warn("Location error", zap.Error(err))
	}
}

// Record appends a fix and persists the session.
func (s *Sampler) Record(fix models.Fix) {
	s.Append(fix)
	if err := s.Persist(); err != nil {
		s.logger.Warn("Session save failed", zap.Error(err))
	}
}

// Append adds a fix to the buffer, trimming to the newest fixes once the
// buffer exceeds its limit. It reports false when no session is held.
func (s *Sampler) Append(fix models.Fix) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || !s.session.IsActive {
		return false
	}
	s.session.Fixes = append(s.session.Fixes, fix)
	if n := len(s.session.Fixes); n > s.maxBuffer {
		kept := make([]models.Fix, s.trimTo)
		copy(kept, s.session.Fixes[n-s.trimTo:])
		s.session.Fixes = kept
		s.logger.Debug("Trimmed fix buffer", zap.Int("from", n), zap.Int("to", s.trimTo))
	}
	return true
}

// Persist writes the current session to the store.
func (s *Sampler) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Sampler) persistLocked() error {
	if s.session == nil {
		return nil
	}
	if err := s.store.SaveActiveSession(s.session.Clone()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Stop clears the watch, stamps the end time, persists, and releases the
// session. The stored record remains until Clear.
func (s *Sampler) Stop() (*models.TrackingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNotTracking
	}
	if s.watching {
		s.provider.ClearWatch(s.watchID)
		s.watching = false
	}

	end := s.now()
	s.session.EndTime = &end
	s.session.IsActive = false
	err := s.persistLocked()

	done := s.session
	s.session = nil

	s.logger.Info("Tracking stopped",
		zap.String("session", done.ID.String()),
		zap.Duration("duration", done.Duration()),
		zap.Int("fixes", len(done.Fixes)))

	return done, err
}

// Suspend clears the watch and releases the session without ending it. The
// stored record stays active with no end time, as if the process had died,
// so Recover offers it again.
func (s *Sampler) Suspend() (*models.TrackingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNotTracking
	}
	if s.watching {
		s.provider.ClearWatch(s.watchID)
		s.watching = false
	}
	err := s.persistLocked()

	held := s.session
	s.session = nil

	s.logger.Info("Tracking suspended",
		zap.String("session", held.ID.String()),
		zap.Int("fixes", len(held.Fixes)))

	return held, err
}

// Clear removes the persisted active session.
func (s *Sampler) Clear() error {
	if err := s.store.ClearActiveSession(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Recover returns the persisted session if it is younger than the stale
// limit. Older sessions are cleared and nil is returned.
func (s *Sampler) Recover() (*models.TrackingSession, error) {
	sess, err := s.store.LoadActiveSession()
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	age := s.now().Sub(sess.StartTime)
	if age > s.staleAfter {
		s.logger.Info("Discarding stale session", zap.String("session", sess.ID.String()), zap.Duration("age", age))
		if err := s.Clear(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	s.logger.Info("Recovered session",
		zap.String("session", sess.ID.String()),
		zap.Int("fixes", len(sess.Fixes)),
		zap.Duration("age", age))
	return sess, nil
}

// Session returns a copy of the current session, or nil.
func (s *Sampler) Session() *models.TrackingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

// IsTracking reports whether a subscription is active.
func (s *Sampler) IsTracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watching
}

// Status returns the tracking status.
func (s *Sampler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{IsTracking: s.watching, Session: s.session.Clone()}
	if s.session != nil {
		st.PointCount = len(s.session.Fixes)
	}
	return st
}
