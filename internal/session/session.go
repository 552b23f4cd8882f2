// ABOUTME: Session state machine for a tracked run (idle, running, paused, completed)
// ABOUTME: Pure transition functions with wall-clock elapsed time across pauses

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
)

// ErrInvalidTransition is returned when a transition is not allowed from the current phase.
var ErrInvalidTransition = errors.New("invalid session transition")

// Phase names the variant of a State.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
)

// State is one of Idle, Running, Paused, or Completed.
// The set is closed; other packages cannot add variants.
type State interface {
	Phase() Phase
	sealed()
}

// Run is the data shared by every non-idle phase.
type Run struct {
	Course      *models.Course
	StartTime   time.Time
	PausedTotal time.Duration
	Stats       models.RunningStats
	// LastPoint is the last accepted position; nil until the first fix
	// and again right after a resume.
	LastPoint *geo.Point
}

// Idle is the state before a run starts and after it is stopped.
type Idle struct{}

// Running accepts fixes.
type Running struct{ Run }

// Paused freezes the clock at PausedAt and ignores fixes.
type Paused struct {
	Run
	PausedAt time.Time
}

// Completed retains the finished run's data.
type Completed struct {
	Run
	CompletedAt time.Time
}

func (Idle) Phase() Phase      { return PhaseIdle }
func (Running) Phase() Phase   { return PhaseRunning }
func (Paused) Phase() Phase    { return PhasePaused }
func (Completed) Phase() Phase { return PhaseCompleted }

func (Idle) sealed()      {}
func (Running) sealed()   {}
func (Paused) sealed()    {}
func (Completed) sealed() {}

func invalid(op string, st State) error {
	return fmt.Errorf("%s from %s: %w", op, st.Phase(), ErrInvalidTransition)
}

// Start begins a run on course. Allowed from idle and completed; a completed
// run is discarded in favor of the new one.
func Start(st State, course *models.Course, now time.Time) (State, error) {
	if course == nil {
		return st, fmt.Errorf("start: course is required")
	}
	switch st.(type) {
	case Idle, Completed:
		return Running{Run{Course: course, StartTime: now}}, nil
	default:
		return st, invalid("start", st)
	}
}

// Pause freezes the clock. Pausing an already paused run is a no-op.
func Pause(st State, now time.Time) (State, error) {
	switch s := st.(type) {
	case Running:
		return Paused{Run: s.Run, PausedAt: now}, nil
	case Paused:
		return s, nil
	default:
		return st, invalid("pause", st)
	}
}

// Resume restarts the clock without resetting the start time. Resuming a
// running run is a no-op. The next fix re-anchors distance so movement made
// while paused is not counted.
func Resume(st State, now time.Time) (State, error) {
	switch s := st.(type) {
	case Paused:
		run := s.Run
		if now.After(s.PausedAt) {
			run.PausedTotal += now.Sub(s.PausedAt)
		}
		run.LastPoint = nil
		return Running{run}, nil
	case Running:
		return s, nil
	default:
		return st, invalid("resume", st)
	}
}

// Complete finalizes the run, keeping its data.
func Complete(st State, now time.Time) (State, error) {
	switch s := st.(type) {
	case Running:
		run := s.Run
		run.Stats.Duration = elapsed(run, now)
		return Completed{Run: run, CompletedAt: now}, nil
	case Paused:
		run := s.Run
		run.Stats.Duration = elapsed(run, s.PausedAt)
		return Completed{Run: run, CompletedAt: s.PausedAt}, nil
	default:
		return st, invalid("complete", st)
	}
}

// Stop discards the run and returns to idle.
func Stop(st State) (State, error) {
	switch st.(type) {
	case Running, Paused, Completed:
		return Idle{}, nil
	default:
		return st, invalid("stop", st)
	}
}

func elapsed(run Run, at time.Time) time.Duration {
	d := at.Sub(run.StartTime) - run.PausedTotal
	if d < 0 {
		return 0
	}
	return d
}

// Elapsed returns active running time: now minus start minus time spent paused.
// It is frozen while paused and after completion.
func Elapsed(st State, now time.Time) time.Duration {
	switch s := st.(type) {
	case Running:
		return elapsed(s.Run, now)
	case Paused:
		return elapsed(s.Run, s.PausedAt)
	case Completed:
		return elapsed(s.Run, s.CompletedAt)
	default:
		return 0
	}
}

// RunOf returns the run data for non-idle states.
func RunOf(st State) (Run, bool) {
	switch s := st.(type) {
	case Running:
		return s.Run, true
	case Paused:
		return s.Run, true
	case Completed:
		return s.Run, true
	default:
		return Run{}, false
	}
}

// ApplyFix accepts a position while running and recomputes stats. progress is
// the route progress fraction in [0, 1]. In any other phase the fix is not
// accepted and the state is returned unchanged with accepted=false.
func ApplyFix(st State, p geo.Point, progress float64, now time.Time) (next State, stats models.RunningStats, accepted bool) {
	s, ok := st.(Running)
	if !ok {
		run, _ := RunOf(st)
		stats = run.Stats
		stats.Duration = Elapsed(st, now)
		return st, stats, false
	}

	run := s.Run
	if run.LastPoint != nil {
		run.Stats.Distance += geo.Distance(*run.LastPoint, p)
	}
	pt := p
	run.LastPoint = &pt

	run.Stats.Duration = elapsed(run, now)
	run.Stats.Speed, run.Stats.Pace = speedAndPace(run.Stats.Distance, run.Stats.Duration)
	run.Stats.Progress = clamp01(progress)

	return Running{run}, run.Stats, true
}

// speedAndPace returns km/h and min/km, zero when either input is zero.
func speedAndPace(meters float64, d time.Duration) (speed, pace float64) {
	km := meters / 1000
	if km <= 0 || d <= 0 {
		return 0, 0
	}
	return km / d.Hours(), d.Minutes() / km
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
