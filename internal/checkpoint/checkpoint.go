// ABOUTME: Sequential checkpoint detection against a course's ordered waypoints
// ABOUTME: Emits checkpoint and finish events; the index only ever moves forward

package checkpoint

import (
	"time"

	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
)

const (
	// DefaultRadius is the reach distance in meters for intermediate waypoints.
	DefaultRadius = 30.0
	// DefaultFinishRadius is the reach distance in meters for the final waypoint.
	DefaultFinishRadius = 50.0
)

// Kind distinguishes intermediate checkpoints from the finish.
type Kind string

const (
	KindCheckpoint Kind = "checkpoint"
	KindFinish     Kind = "finish"
)

// Event reports a reached waypoint.
type Event struct {
	Kind     Kind      `json:"kind"`
	Index    int       `json:"index"`
	Point    geo.Point `json:"point"`
	Distance float64   `json:"distance"` // meters from the fix to the waypoint
	At       time.Time `json:"at"`
}

// Engine tracks which waypoint comes next. It is not safe for concurrent use;
// the tracker serialises calls.
type Engine struct {
	waypoints    []geo.Point
	radius       float64
	finishRadius float64

	current int
	passed  []int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRadius overrides the intermediate waypoint radius.
func WithRadius(meters float64) Option {
	return func(e *Engine) {
		if meters > 0 {
			e.radius = meters
		}
	}
}

// WithFinishRadius overrides the final waypoint radius.
func WithFinishRadius(meters float64) Option {
	return func(e *Engine) {
		if meters > 0 {
			e.finishRadius = meters
		}
	}
}

// New builds an engine for a course. The runner starts at waypoint 0, so the
// first waypoint evaluated is index 1.
func New(course *models.Course, opts ...Option) *Engine {
	e := &Engine{
		waypoints:    course.Waypoints(),
		radius:       DefaultRadius,
		finishRadius: DefaultFinishRadius,
		passed:       []int{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CurrentIndex is the index of the last reached waypoint.
func (e *Engine) CurrentIndex() int { return e.current }

// Passed returns the reached waypoint indices in order.
func (e *Engine) Passed() []int {
	out := make([]int, len(e.passed))
	copy(out, e.passed)
	return out
}

// Waypoints returns the number of waypoints including start and finish.
func (e *Engine) Waypoints() int { return len(e.waypoints) }

// Finished reports whether the final waypoint has been reached.
func (e *Engine) Finished() bool { return e.current >= len(e.waypoints)-1 }

// Evaluate checks a fix against the next waypoint. Only waypoint current+1 is
// considered; when it is reached evaluation continues with the following one
// for the same fix, so a waypoint is never skipped.
func (e *Engine) Evaluate(p geo.Point, at time.Time) []Event {
	var events []Event
	last := len(e.waypoints) - 1

	for e.current < last {
		next := e.current + 1
		radius := e.radius
		kind := KindCheckpoint
		if next == last {
			radius = e.finishRadius
			kind = KindFinish
		}

		d := geo.Distance(p, e.waypoints[next])
		if d > radius {
			break
		}

		e.current = next
		e.passed = append(e.passed, next)
		events = append(events, Event{
			Kind:     kind,
			Index:    next,
			Point:    e.waypoints[next],
			Distance: d,
			At:       at,
		})
	}
	return events
}
