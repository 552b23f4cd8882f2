// ABOUTME: Route indexing and progress tracking along a course polyline
// ABOUTME: Projects positions onto the route and derives passed/remaining distance

package route

import (
	"errors"
	"math"

	"github.com/harper/courserun/internal/geo"
)

// DefaultOffCourseThreshold is the distance in meters beyond which a runner is off course.
const DefaultOffCourseThreshold = 40.0

// tieEpsilon absorbs floating point noise when comparing segment distances.
const tieEpsilon = 1e-6

// ErrTooFewPoints is returned when a polyline has fewer than two points.
var ErrTooFewPoints = errors.New("route needs at least 2 points")

// RoutePoint is a polyline vertex annotated with its distance from the start.
type RoutePoint struct {
	geo.Point
	DistanceFromStart float64 `json:"distance_from_start"`
}

// Route is an indexed polyline. It is immutable once built.
type Route struct {
	points             []RoutePoint
	offCourseThreshold float64
}

// Option configures a Route.
type Option func(*Route)

// WithOffCourseThreshold overrides the off-course distance in meters.
func WithOffCourseThreshold(meters float64) Option {
	return func(r *Route) {
		if meters > 0 {
			r.offCourseThreshold = meters
		}
	}
}

// Index computes cumulative distances for a polyline.
func Index(polyline []geo.Point, opts ...Option) (*Route, error) {
	if len(polyline) < 2 {
		return nil, ErrTooFewPoints
	}

	points := make([]RoutePoint, len(polyline))
	cum := 0.0
	for i, p := range polyline {
		if i > 0 {
			cum += geo.Distance(polyline[i-1], p)
		}
		points[i] = RoutePoint{Point: p, DistanceFromStart: cum}
	}

	r := &Route{points: points, offCourseThreshold: DefaultOffCourseThreshold}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Points returns a copy of the indexed vertices.
func (r *Route) Points() []RoutePoint {
	out := make([]RoutePoint, len(r.points))
	copy(out, r.points)
	return out
}

// Polyline returns the raw vertices.
func (r *Route) Polyline() []geo.Point {
	out := make([]geo.Point, len(r.points))
	for i, p := range r.points {
		out[i] = p.Point
	}
	return out
}

// TotalDistance is the route length in meters.
func (r *Route) TotalDistance() float64 {
	return r.points[len(r.points)-1].DistanceFromStart
}

// OffCourseThreshold returns the configured off-course distance.
func (r *Route) OffCourseThreshold() float64 {
	return r.offCourseThreshold
}

// Projection locates a position relative to the route.
type Projection struct {
	SegmentIndex     int
	ClosestPoint     geo.Point
	DistanceToRoute  float64
	ProgressDistance float64
}

// Project finds the segment nearest to p. Ties go to the lowest segment index,
// so a position on a looping route resolves to its earliest occurrence.
func (r *Route) Project(p geo.Point) Projection {
	best := Projection{DistanceToRoute: math.Inf(1)}

	for i := 0; i < len(r.points)-1; i++ {
		a, b := r.points[i], r.points[i+1]
		proj := geo.ProjectOntoSegment(p, a.Point, b.Point)
		if proj.Distance < best.DistanceToRoute-tieEpsilon {
			segLen := b.DistanceFromStart - a.DistanceFromStart
			best = Projection{
				SegmentIndex:     i,
				ClosestPoint:     proj.Point,
				DistanceToRoute:  proj.Distance,
				ProgressDistance: a.DistanceFromStart + proj.Fraction*segLen,
			}
		}
	}
	return best
}

// Progress is a snapshot of a runner's position along the route.
type Progress struct {
	ProgressPercent        float64 `json:"progress_percent"`
	PassedDistance         float64 `json:"passed_distance"`
	RemainingDistance      float64 `json:"remaining_distance"`
	TotalDistance          float64 `json:"total_distance"`
	IsOffCourse            bool    `json:"is_off_course"`
	DistanceToRoute        float64 `json:"distance_to_route"`
	CurrentSegmentIndex    int     `json:"current_segment_index"`
	EstimatedRemainingTime float64 `json:"estimated_remaining_time"` // minutes
	AveragePace            float64 `json:"average_pace,omitempty"`   // min/km
}

// Fraction returns progress as a value in [0, 1].
func (p Progress) Fraction() float64 {
	return p.ProgressPercent / 100
}

// Progress computes the runner's progress for position p. paceMinPerKm is
// optional; when it is not positive the remaining-time estimate is zero.
func (r *Route) Progress(p geo.Point, paceMinPerKm float64) Progress {
	total := r.TotalDistance()
	proj := r.Project(p)

	percent := 0.0
	if total > 0 {
		percent = 100 * proj.ProgressDistance / total
	}
	percent = math.Max(0, math.Min(100, percent))

	remaining := math.Max(0, total-proj.ProgressDistance)

	eta := 0.0
	pace := 0.0
	if paceMinPerKm > 0 && !math.IsInf(paceMinPerKm, 0) && !math.IsNaN(paceMinPerKm) {
		pace = paceMinPerKm
		eta = remaining / 1000 * paceMinPerKm
	}

	return Progress{
		ProgressPercent:        percent,
		PassedDistance:         proj.ProgressDistance,
		RemainingDistance:      remaining,
		TotalDistance:          total,
		IsOffCourse:            proj.DistanceToRoute > r.offCourseThreshold,
		DistanceToRoute:        proj.DistanceToRoute,
		CurrentSegmentIndex:    proj.SegmentIndex,
		EstimatedRemainingTime: eta,
		AveragePace:            pace,
	}
}

// Split divides the route into the vertices already passed and those still
// ahead, sharing the current segment's start vertex.
func (r *Route) Split(progress Progress) (passed, upcoming []geo.Point) {
	line := r.Polyline()
	idx := progress.CurrentSegmentIndex
	if idx < 0 {
		idx = 0
	}
	if idx > len(line)-1 {
		idx = len(line) - 1
	}
	end := idx + 1
	return line[:end:end], line[idx:]
}
