// ABOUTME: Turn hints and completion criteria derived from route progress
// ABOUTME: Lightweight on-route guidance; road routing is left to the map provider

package route

import (
	"fmt"
	"math"

	"github.com/harper/courserun/internal/geo"
)

// TurnType classifies the next change of direction along the route.
type TurnType string

const (
	TurnStraight   TurnType = "straight"
	TurnLeft       TurnType = "left"
	TurnRight      TurnType = "right"
	TurnSharpLeft  TurnType = "sharp_left"
	TurnSharpRight TurnType = "sharp_right"
	TurnUTurn      TurnType = "u_turn"
)

const (
	// DefaultLookahead is how far ahead in meters NextTurn searches for a turn.
	DefaultLookahead = 100.0
	turnThreshold    = 30.0
)

// Turn describes the next turn ahead of the runner.
type Turn struct {
	Type        TurnType `json:"type"`
	Angle       float64  `json:"angle"`    // degrees, negative is left
	Distance    float64  `json:"distance"` // meters to the turn vertex
	Description string   `json:"description"`
}

// NextTurn looks ahead from the given segment for the first vertex where the
// heading changes by more than 30 degrees. It returns false at the end of the route.
func (r *Route) NextTurn(segmentIndex int, lookahead float64) (Turn, bool) {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	n := len(r.points)
	if segmentIndex < 0 || segmentIndex >= n-2 {
		return Turn{}, false
	}

	current := geo.Bearing(r.points[segmentIndex].Point, r.points[segmentIndex+1].Point)

	turnAt := -1
	angle := 0.0
	for i := segmentIndex + 1; i < n-1; i++ {
		if r.points[i].DistanceFromStart-r.points[segmentIndex+1].DistanceFromStart > lookahead {
			break
		}
		// Skip zero-length segments; their bearing is meaningless.
		if r.points[i].Point == r.points[i+1].Point {
			continue
		}
		delta := geo.AngleDelta(current, geo.Bearing(r.points[i].Point, r.points[i+1].Point))
		if math.Abs(delta) > turnThreshold {
			turnAt = i
			angle = delta
			break
		}
	}

	if turnAt == -1 {
		return Turn{Type: TurnStraight, Distance: lookahead, Description: "continue straight"}, true
	}

	dist := r.points[turnAt].DistanceFromStart - r.points[segmentIndex].DistanceFromStart
	t := Turn{Type: classifyTurn(angle), Angle: angle, Distance: dist}
	t.Description = describeTurn(t)
	return t, true
}

func classifyTurn(angle float64) TurnType {
	abs := math.Abs(angle)
	switch {
	case abs < turnThreshold:
		return TurnStraight
	case abs > 135:
		return TurnUTurn
	case angle > 90:
		return TurnSharpRight
	case angle > 0:
		return TurnRight
	case angle < -90:
		return TurnSharpLeft
	default:
		return TurnLeft
	}
}

func describeTurn(t Turn) string {
	m := int(math.Round(t.Distance))
	switch t.Type {
	case TurnUTurn:
		return fmt.Sprintf("u-turn in %dm", m)
	case TurnSharpRight:
		return fmt.Sprintf("sharp right in %dm", m)
	case TurnRight:
		return fmt.Sprintf("turn right in %dm", m)
	case TurnSharpLeft:
		return fmt.Sprintf("sharp left in %dm", m)
	case TurnLeft:
		return fmt.Sprintf("turn left in %dm", m)
	default:
		return "continue straight"
	}
}

// CompletionCriteria bounds what counts as a finished course.
type CompletionCriteria struct {
	MinProgressPercent float64 `json:"min_progress_percent" env:"MIN_PROGRESS_PERCENT"`
	MaxOffCourseTime   float64 `json:"max_off_course_time" env:"MAX_OFF_COURSE_TIME"` // seconds
	MinTotalTime       float64 `json:"min_total_time" env:"MIN_TOTAL_TIME"`           // seconds
	MaxTotalTime       float64 `json:"max_total_time" env:"MAX_TOTAL_TIME"`           // seconds
}

// DefaultCompletionCriteria returns the stock completion rules.
func DefaultCompletionCriteria() CompletionCriteria {
	return CompletionCriteria{
		MinProgressPercent: 90,
		MaxOffCourseTime:   300,
		MinTotalTime:       600,
		MaxTotalTime:       7200,
	}
}

// Record is one progress sample used for completion checks.
type Record struct {
	Timestamp int64 // unix milliseconds
	Progress  Progress
}

// CompletionStats summarizes a sequence of progress records.
type CompletionStats struct {
	MaxProgress     float64 `json:"max_progress"`
	TotalTime       float64 `json:"total_time"`
	OffCourseTime   float64 `json:"off_course_time"`
	OnCoursePercent float64 `json:"on_course_percent"`
}

// CompletionCheck is the outcome of CheckCompletion.
type CompletionCheck struct {
	Completed bool            `json:"completed"`
	Reason    string          `json:"reason,omitempty"`
	Stats     CompletionStats `json:"stats"`
}

// CompletionWindow accumulates progress records into the running totals
// CheckCompletion needs, so a long run does not keep every record.
type CompletionWindow struct {
	count       int
	first, last int64
	maxProgress float64
	offCourse   float64
}

// Add folds one record into the window. Off-course time is the sum of
// intervals that end in an off-course sample.
func (w *CompletionWindow) Add(rec Record) {
	if w.count == 0 {
		w.first = rec.Timestamp
	} else if rec.Progress.IsOffCourse {
		w.offCourse += float64(rec.Timestamp-w.last) / 1000
	}
	w.count++
	w.last = rec.Timestamp
	w.maxProgress = math.Max(w.maxProgress, rec.Progress.ProgressPercent)
}

// Len reports how many records have been added.
func (w *CompletionWindow) Len() int { return w.count }

// Check evaluates the accumulated records against c.
func (w *CompletionWindow) Check(c CompletionCriteria) CompletionCheck {
	if w.count == 0 {
		return CompletionCheck{Reason: "no records"}
	}

	totalTime := float64(w.last-w.first) / 1000
	stats := CompletionStats{
		MaxProgress:   w.maxProgress,
		TotalTime:     totalTime,
		OffCourseTime: w.offCourse,
	}
	if totalTime > 0 {
		stats.OnCoursePercent = (totalTime - stats.OffCourseTime) / totalTime * 100
	}

	check := CompletionCheck{Stats: stats}
	switch {
	case stats.MaxProgress < c.MinProgressPercent:
		check.Reason = fmt.Sprintf("insufficient progress (%.1f%% < %.0f%%)", stats.MaxProgress, c.MinProgressPercent)
	case totalTime < c.MinTotalTime:
		check.Reason = fmt.Sprintf("too fast (%.0fs < %.0fs)", totalTime, c.MinTotalTime)
	case totalTime > c.MaxTotalTime:
		check.Reason = fmt.Sprintf("too slow (%.0fs > %.0fs)", totalTime, c.MaxTotalTime)
	case stats.OffCourseTime > c.MaxOffCourseTime:
		check.Reason = fmt.Sprintf("off course too long (%.0fs > %.0fs)", stats.OffCourseTime, c.MaxOffCourseTime)
	default:
		check.Completed = true
	}
	return check
}

// CheckCompletion decides whether a sequence of records satisfies the criteria.
func CheckCompletion(records []Record, c CompletionCriteria) CompletionCheck {
	var w CompletionWindow
	for _, rec := range records {
		w.Add(rec)
	}
	return w.Check(c)
}

// Simplify keeps every ceil(len/maxPoints)-th point, which is at most
// maxPoints of them, plus the last point when the stride misses it.
func Simplify(points []geo.Point, maxPoints int) []geo.Point {
	if maxPoints < 2 || len(points) <= maxPoints {
		return points
	}

	step := (len(points) + maxPoints - 1) / maxPoints
	out := make([]geo.Point, 0, maxPoints+1)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	if last := points[len(points)-1]; out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}
