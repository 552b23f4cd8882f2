// ABOUTME: Orchestrates a tracked run from start to recorded completion
// ABOUTME: Feeds each fix through session, route, and checkpoint logic, then persists

package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harper/courserun/internal/checkpoint"
	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/route"
	"github.com/harper/courserun/internal/sampler"
	"github.com/harper/courserun/internal/screenshot"
	"github.com/harper/courserun/internal/session"
	"github.com/harper/courserun/internal/storage"
	"github.com/harper/courserun/internal/verify"
	"go.uber.org/zap"
)

// ErrNoSession is returned when an operation needs a run and none exists.
var ErrNoSession = errors.New("no session")

// ErrAlreadyFinished is returned when a recovered session already reached
// the finish and can only be recorded.
var ErrAlreadyFinished = errors.New("session already reached the finish")

// Update is the outcome of processing one fix.
type Update struct {
	Phase    session.Phase       `json:"phase"`
	Accepted bool                `json:"accepted"`
	Stats    models.RunningStats `json:"stats"`
	Progress route.Progress      `json:"progress"`
	Events   []checkpoint.Event  `json:"events,omitempty"`
	Turn     *route.Turn         `json:"turn,omitempty"`
	Finished bool                `json:"finished"`

	// Set when the fix completed the course.
	Check      *route.CompletionCheck     `json:"check,omitempty"`
	Result     *models.VerificationResult `json:"result,omitempty"`
	Completion *models.Completion         `json:"completion,omitempty"`
	Err        error                      `json:"-"`
}

// Snapshot is a read-only view of the current run.
type Snapshot struct {
	Phase           session.Phase       `json:"phase"`
	SessionID       string              `json:"session_id,omitempty"`
	CourseID        string              `json:"course_id,omitempty"`
	Elapsed         time.Duration       `json:"elapsed"`
	Stats           models.RunningStats `json:"stats"`
	Progress        route.Progress      `json:"progress"`
	CheckpointIndex int                 `json:"checkpoint_index"`
	Waypoints       int                 `json:"waypoints"`
}

// Tracker owns one run at a time. Fix processing is serialised by its mutex.
type Tracker struct {
	sampler     *sampler.Sampler
	completions storage.CompletionRepository
	verifier    *verify.Verifier
	screenshots *screenshot.Verifier
	logger      *zap.Logger
	now         func() time.Time
	onUpdate    func(Update)

	routeOpts      []route.Option
	checkpointOpts []checkpoint.Option
	criteria       route.CompletionCriteria

	mu           sync.Mutex
	state        session.State
	route        *route.Route
	checkpoints  *checkpoint.Engine
	sessionID    uuid.UUID
	lastProgress route.Progress
	window       route.CompletionWindow
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides the time source used for elapsed time.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithVerifier replaces the default GPS verifier.
func WithVerifier(v *verify.Verifier) Option {
	return func(t *Tracker) {
		if v != nil {
			t.verifier = v
		}
	}
}

// WithScreenshotVerifier enables the screenshot fallback.
func WithScreenshotVerifier(v *screenshot.Verifier) Option {
	return func(t *Tracker) { t.screenshots = v }
}

// WithRouteOptions passes options to route indexing.
func WithRouteOptions(opts ...route.Option) Option {
	return func(t *Tracker) { t.routeOpts = append(t.routeOpts, opts...) }
}

// WithCheckpointOptions passes options to the checkpoint engine.
func WithCheckpointOptions(opts ...checkpoint.Option) Option {
	return func(t *Tracker) { t.checkpointOpts = append(t.checkpointOpts, opts...) }
}

// WithCompletionCriteria sets the rules a finished run is checked against.
// A run that misses them is never auto-approved.
func WithCompletionCriteria(c route.CompletionCriteria) Option {
	return func(t *Tracker) { t.criteria = c }
}

// WithUpdateHandler registers a callback invoked after every fix cycle.
func WithUpdateHandler(fn func(Update)) Option {
	return func(t *Tracker) { t.onUpdate = fn }
}

// New creates a tracker.
func New(s *sampler.Sampler, completions storage.CompletionRepository, opts ...Option) *Tracker {
	t := &Tracker{
		sampler:     s,
		completions: completions,
		verifier:    verify.New(verify.DefaultConfig()),
		logger:      zap.NewNop(),
		now:         time.Now,
		criteria:    route.DefaultCompletionCriteria(),
		state:       session.Idle{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartSession begins tracking course. If the provider refuses, no run is created.
func (t *Tracker) StartSession(course *models.Course) error {
	if course == nil {
		return fmt.Errorf("start session: course is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := route.Index(course.Polyline, t.routeOpts...)
	if err != nil {
		return fmt.Errorf("index course %q: %w", course.ID, err)
	}

	next, err := session.Start(t.state, course, t.now())
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	sess, err := t.sampler.Start(course.ID, t.handle)
	if err != nil {
		return fmt.Errorf("start sampler: %w", err)
	}

	t.begin(next, r, course, sess.ID)
	t.logger.Info("Session started", zap.String("session", sess.ID.String()), zap.String("course", course.ID))
	return nil
}

func (t *Tracker) begin(st session.State, r *route.Route, course *models.Course, id uuid.UUID) {
	t.state = st
	t.route = r
	t.checkpoints = checkpoint.New(course, t.checkpointOpts...)
	t.sessionID = id
	t.lastProgress = route.Progress{TotalDistance: r.TotalDistance(), RemainingDistance: r.TotalDistance()}
	t.window = route.CompletionWindow{}
}

// PauseSession freezes the clock. Pausing twice is a no-op.
func (t *Tracker) PauseSession() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, err := session.Pause(t.state, t.now())
	if err != nil {
		return fmt.Errorf("pause session: %w", err)
	}
	t.state = next
	return nil
}

// ResumeSession restarts the clock after a pause.
func (t *Tracker) ResumeSession() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, err := session.Resume(t.state, t.now())
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	t.state = next
	return nil
}

// StopSession abandons the run and deletes it from the store. The returned
// session is the final in-memory copy.
func (t *Tracker) StopSession() (*models.TrackingSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, err := session.Stop(t.state)
	if err != nil {
		return nil, fmt.Errorf("stop session: %w", err)
	}
	t.state = next

	if !t.sampler.IsTracking() {
		return nil, nil
	}
	sess, stopErr := t.sampler.Stop()
	if sess == nil {
		return nil, fmt.Errorf("stop sampler: %w", stopErr)
	}
	if err := t.sampler.Clear(); err != nil {
		return sess, err
	}
	if stopErr != nil {
		t.logger.Warn("Final session save failed", zap.Error(stopErr))
	}
	t.logger.Info("Session stopped", zap.String("session", sess.ID.String()))
	return sess, nil
}

// SuspendSession stops watching but keeps the run saved as interrupted, so
// Recover can resume or record it later. The tracker itself returns to idle.
func (t *Tracker) SuspendSession() (*models.TrackingSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state.(type) {
	case session.Running, session.Paused:
	default:
		return nil, fmt.Errorf("suspend session: %w", ErrNoSession)
	}
	t.state = session.Idle{}

	sess, err := t.sampler.Suspend()
	if err != nil {
		return sess, fmt.Errorf("suspend sampler: %w", err)
	}
	t.logger.Info("Session suspended", zap.String("session", sess.ID.String()), zap.Int("fixes", len(sess.Fixes)))
	return sess, nil
}

// OnFix processes a raw device position.
func (t *Tracker) OnFix(raw models.RawPosition) Update {
	return t.HandleFix(models.NewFix(raw, t.now()))
}

// handle is the sampler callback.
func (t *Tracker) handle(fix models.Fix) {
	t.HandleFix(fix)
}

// HandleFix runs one fix cycle: record, stats, progress, checkpoints, and
// finally persistence. Fixes outside a running session are not accepted.
func (t *Tracker) HandleFix(fix models.Fix) Update {
	t.mu.Lock()
	u := t.process(fix)
	t.mu.Unlock()

	if t.onUpdate != nil {
		t.onUpdate(u)
	}
	return u
}

func (t *Tracker) process(fix models.Fix) Update {
	now := t.now()

	if _, running := t.state.(session.Running); !running {
		_, stats, _ := session.ApplyFix(t.state, fix.Point(), t.lastProgress.Fraction(), now)
		return Update{Phase: t.state.Phase(), Stats: stats, Progress: t.lastProgress}
	}

	t.sampler.Append(fix)

	u := t.advance(fix, now)

	if u.Finished {
		t.finish(&u, now)
		return u
	}

	if err := t.sampler.Persist(); err != nil {
		t.logger.Warn("Session save failed", zap.Error(err))
		u.Err = err
	}
	return u
}

// advance applies a fix to the in-memory run without touching storage.
func (t *Tracker) advance(fix models.Fix, now time.Time) Update {
	p := fix.Point()
	progress := t.route.Progress(p, 0)

	next, stats, accepted := session.ApplyFix(t.state, p, progress.Fraction(), now)
	t.state = next

	if stats.Pace > 0 {
		progress.AveragePace = stats.Pace
		progress.EstimatedRemainingTime = progress.RemainingDistance / 1000 * stats.Pace
	}
	t.lastProgress = progress
	t.window.Add(route.Record{Timestamp: fix.Timestamp.UnixMilli(), Progress: progress})

	events := t.checkpoints.Evaluate(p, fix.Timestamp)
	for _, ev := range events {
		t.logger.Info("Checkpoint reached",
			zap.String("kind", string(ev.Kind)),
			zap.Int("index", ev.Index),
			zap.Float64("distance", ev.Distance))
	}

	u := Update{
		Phase:    next.Phase(),
		Accepted: accepted,
		Stats:    stats,
		Progress: progress,
		Events:   events,
		Finished: t.checkpoints.Finished(),
	}
	if turn, ok := t.route.NextTurn(progress.CurrentSegmentIndex, route.DefaultLookahead); ok {
		u.Turn = &turn
	}
	return u
}

// finish completes the run, stops the sampler, verifies, and hands off the
// completion. The stored session is cleared only after a successful hand-off.
func (t *Tracker) finish(u *Update, now time.Time) {
	completed, err := session.Complete(t.state, now)
	if err != nil {
		u.Err = err
		return
	}
	t.state = completed
	u.Phase = completed.Phase()

	sess, err := t.sampler.Stop()
	if err != nil {
		t.logger.Warn("Final session save failed", zap.Error(err))
	}
	if sess == nil {
		u.Err = fmt.Errorf("finish: %w", ErrNoSession)
		return
	}

	check := t.window.Check(t.criteria)
	u.Check = &check

	run, _ := session.RunOf(completed)
	completion, result, err := t.record(sess, run.Course, session.Elapsed(completed, now), run.Stats.Distance, &check)
	u.Result = &result
	u.Completion = completion
	u.Err = err
}

// record verifies sess and stores the completion, then clears the active
// session from the store. A failed completion check adds an issue and caps
// the recommendation at manual review.
func (t *Tracker) record(sess *models.TrackingSession, course *models.Course, elapsed time.Duration, distance float64, check *route.CompletionCheck) (*models.Completion, models.VerificationResult, error) {
	result := t.verifier.Verify(sess, course)

	var criteria *models.CriteriaCheck
	if check != nil {
		criteria = &models.CriteriaCheck{Met: check.Completed, Reason: check.Reason}
		if !check.Completed {
			t.logger.Info("Completion criteria not met", zap.String("reason", check.Reason))
			result.Issues = append(result.Issues, "completion criteria not met: "+check.Reason)
			if result.Recommendation == models.AutoApprove {
				result.Recommendation = models.ManualReview
			}
		}
	}

	end := sess.StartTime.Add(elapsed)
	if sess.EndTime != nil {
		end = *sess.EndTime
	}
	passed := 0
	if t.checkpoints != nil && t.sessionID == sess.ID {
		passed = len(t.checkpoints.Passed())
	}

	summary := models.SessionSummary{
		SessionID:         sess.ID,
		CourseID:          sess.CourseID,
		StartTime:         sess.StartTime,
		EndTime:           end,
		Elapsed:           elapsed,
		Distance:          distance,
		FixCount:          len(sess.Fixes),
		CheckpointsPassed: passed,
		Criteria:          criteria,
	}
	completion := models.NewCompletion(summary, result)

	if err := t.completions.RecordCompletion(completion, sess); err != nil {
		t.logger.Error("Recording completion failed", zap.String("session", sess.ID.String()), zap.Error(err))
		return nil, result, fmt.Errorf("record completion: %w", err)
	}
	if err := t.sampler.Clear(); err != nil {
		t.logger.Warn("Clearing recorded session failed", zap.Error(err))
	}

	t.logger.Info("Completion recorded",
		zap.String("session", sess.ID.String()),
		zap.String("recommendation", string(result.Recommendation)),
		zap.Float64("confidence", result.Confidence))
	return completion, result, nil
}

// Recover returns a persisted session younger than the stale limit, or nil.
func (t *Tracker) Recover() (*models.TrackingSession, error) {
	return t.sampler.Recover()
}

// ResumeRecovered continues a recovered session on course. Stored fixes are
// replayed to rebuild distance and checkpoint state before watching resumes.
func (t *Tracker) ResumeRecovered(sess *models.TrackingSession, course *models.Course) error {
	if sess == nil || course == nil {
		return fmt.Errorf("resume recovered: session and course are required")
	}
	if sess.CourseID != course.ID {
		return fmt.Errorf("resume recovered: session is for course %q, not %q", sess.CourseID, course.ID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := route.Index(course.Polyline, t.routeOpts...)
	if err != nil {
		return fmt.Errorf("index course %q: %w", course.ID, err)
	}
	st, err := session.Start(t.state, course, sess.StartTime)
	if err != nil {
		return fmt.Errorf("resume recovered: %w", err)
	}

	t.begin(st, r, course, sess.ID)
	for _, fix := range sess.Fixes {
		t.advance(fix, fix.Timestamp)
	}
	if t.checkpoints.Finished() {
		t.state = session.Idle{}
		return fmt.Errorf("resume recovered: %w", ErrAlreadyFinished)
	}

	if err := t.sampler.Continue(sess, t.handle); err != nil {
		t.state = session.Idle{}
		return fmt.Errorf("continue sampler: %w", err)
	}
	t.logger.Info("Session resumed", zap.String("session", sess.ID.String()), zap.Int("fixes", len(sess.Fixes)))
	return nil
}

// RecordSession verifies and records a finished session that was not handed
// off, such as one stopped before a crash.
func (t *Tracker) RecordSession(sess *models.TrackingSession, course *models.Course) (*models.Completion, error) {
	if sess == nil {
		return nil, fmt.Errorf("record session: %w", ErrNoSession)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	c, _, err := t.record(sess, course, sess.Duration(), geo.PathLength(sess.Points()), t.checkFixes(sess, course))
	return c, err
}

// checkFixes runs the completion check over a stored session's fixes. It
// returns nil when there is no course to check against.
func (t *Tracker) checkFixes(sess *models.TrackingSession, course *models.Course) *route.CompletionCheck {
	if course == nil {
		return nil
	}
	r, err := route.Index(course.Polyline, t.routeOpts...)
	if err != nil {
		return nil
	}
	var w route.CompletionWindow
	for _, fix := range sess.Fixes {
		w.Add(route.Record{Timestamp: fix.Timestamp.UnixMilli(), Progress: r.Progress(fix.Point(), 0)})
	}
	check := w.Check(t.criteria)
	return &check
}

// VerifySession scores a session against an optional course.
func (t *Tracker) VerifySession(sess *models.TrackingSession, course *models.Course) models.VerificationResult {
	return t.verifier.Verify(sess, course)
}

// VerifyScreenshot runs the screenshot fallback. Without a configured
// screenshot verifier the result asks for a screenshot it cannot check.
func (t *Tracker) VerifyScreenshot(ctx context.Context, image []byte) models.VerificationResult {
	if t.screenshots == nil {
		return models.VerificationResult{
			Issues:         []string{"screenshot verification is not configured"},
			Recommendation: models.ScreenshotRequired,
			Source:         models.SourceScreenshot,
		}
	}
	return t.screenshots.Verify(ctx, image)
}

// Snapshot reports the current run.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Phase:    t.state.Phase(),
		Elapsed:  session.Elapsed(t.state, t.now()),
		Progress: t.lastProgress,
	}
	if run, ok := session.RunOf(t.state); ok {
		snap.Stats = run.Stats
		snap.Stats.Duration = snap.Elapsed
		snap.CourseID = run.Course.ID
		snap.SessionID = t.sessionID.String()
	}
	if t.checkpoints != nil {
		snap.CheckpointIndex = t.checkpoints.CurrentIndex()
		snap.Waypoints = t.checkpoints.Waypoints()
	}
	return snap
}
