// ABOUTME: Core data models for courses, fixes, tracking sessions, and verification
// ABOUTME: Provides validation helpers and constructor functions for new entities

package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harper/courserun/internal/geo"
)

// ValidateCoordinates checks if latitude and longitude are within valid ranges.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return fmt.Errorf("coordinates cannot be NaN")
	}
	if math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return fmt.Errorf("coordinates cannot be infinite")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateName checks if a name is valid (non-empty, within length limits).
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("name cannot be empty or whitespace")
	}
	if len(name) > 255 {
		return fmt.Errorf("name too long (max 255 characters)")
	}
	return nil
}

// Course is a predefined polyline a runner follows. Immutable once loaded into a session.
type Course struct {
	ID            string      `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	Polyline      []geo.Point `json:"polyline" yaml:"polyline"`
	Checkpoints   []int       `json:"checkpoints,omitempty" yaml:"checkpoints,omitempty"`
	TotalDistance float64     `json:"total_distance" yaml:"-"`
}

// NewCourse validates a polyline and builds a course with its derived length.
func NewCourse(id, name string, polyline []geo.Point) (*Course, error) {
	c := &Course{ID: id, Name: name, Polyline: polyline}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.TotalDistance = geo.PathLength(polyline)
	return c, nil
}

// Validate checks the course shape. A course with fewer than two points is a
// programmer error, not a recoverable condition.
func (c *Course) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("course id cannot be empty")
	}
	if len(c.Polyline) < 2 {
		return fmt.Errorf("course %q needs at least 2 points, got %d", c.ID, len(c.Polyline))
	}
	for i, p := range c.Polyline {
		if err := ValidateCoordinates(p.Lat, p.Lng); err != nil {
			return fmt.Errorf("course %q point %d: %w", c.ID, i, err)
		}
	}
	for _, idx := range c.Checkpoints {
		if idx < 0 || idx >= len(c.Polyline) {
			return fmt.Errorf("course %q checkpoint index %d out of range", c.ID, idx)
		}
	}
	return nil
}

// Waypoints returns the checkpoint vertices in order. Without designated
// checkpoints every vertex counts. The start and finish vertices are always included.
func (c *Course) Waypoints() []geo.Point {
	if len(c.Checkpoints) == 0 {
		out := make([]geo.Point, len(c.Polyline))
		copy(out, c.Polyline)
		return out
	}

	last := len(c.Polyline) - 1
	out := []geo.Point{c.Polyline[0]}
	prev := 0
	for _, idx := range c.Checkpoints {
		if idx <= prev || idx >= last {
			continue
		}
		out = append(out, c.Polyline[idx])
		prev = idx
	}
	return append(out, c.Polyline[last])
}

// Start returns the first vertex.
func (c *Course) Start() geo.Point { return c.Polyline[0] }

// Finish returns the last vertex.
func (c *Course) Finish() geo.Point { return c.Polyline[len(c.Polyline)-1] }

// RawPosition is a position as delivered by the device location provider.
type RawPosition struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Fix is one recorded position sample. Immutable once recorded.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Accuracy  float64   `json:"accuracy"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
}

// Point returns the fix coordinates.
func (f Fix) Point() geo.Point {
	return geo.Point{Lat: f.Lat, Lng: f.Lng}
}

// NewFix stamps a raw position. A zero provider timestamp falls back to now.
func NewFix(raw RawPosition, now time.Time) Fix {
	ts := raw.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return Fix{
		Lat:       raw.Lat,
		Lng:       raw.Lng,
		Timestamp: ts,
		Accuracy:  raw.Accuracy,
		Speed:     raw.Speed,
		Heading:   raw.Heading,
	}
}

// TrackingSession is the persisted record of one tracked run.
type TrackingSession struct {
	ID        uuid.UUID  `json:"id"`
	CourseID  string     `json:"course_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	IsActive  bool       `json:"is_active"`
	Fixes     []Fix      `json:"fixes"`
}

// NewTrackingSession creates an active session with a generated UUID.
func NewTrackingSession(courseID string, start time.Time) *TrackingSession {
	return &TrackingSession{
		ID:        uuid.New(),
		CourseID:  courseID,
		StartTime: start,
		IsActive:  true,
		Fixes:     []Fix{},
	}
}

// Clone returns a deep copy so callers cannot mutate the sampler's buffer.
func (s *TrackingSession) Clone() *TrackingSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Fixes = make([]Fix, len(s.Fixes))
	copy(out.Fixes, s.Fixes)
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	return &out
}

// Points returns the fix coordinates in order.
func (s *TrackingSession) Points() []geo.Point {
	pts := make([]geo.Point, len(s.Fixes))
	for i, f := range s.Fixes {
		pts[i] = f.Point()
	}
	return pts
}

// Duration is the wall-clock span of the session, or zero without an end time.
func (s *TrackingSession) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// RunningStats is a derived snapshot recomputed per fix. Never persisted on its own.
type RunningStats struct {
	Distance float64       `json:"distance"` // meters
	Duration time.Duration `json:"duration"`
	Speed    float64       `json:"speed"`    // km/h
	Pace     float64       `json:"pace"`     // min/km
	Progress float64       `json:"progress"` // 0..1
}

// Recommendation routes a verification outcome.
type Recommendation string

const (
	AutoApprove        Recommendation = "AUTO_APPROVE"
	ManualReview       Recommendation = "MANUAL_REVIEW"
	ScreenshotRequired Recommendation = "SCREENSHOT_REQUIRED"
)

// VerificationSource records which path produced a result.
type VerificationSource string

const (
	SourceGPS        VerificationSource = "gps"
	SourceScreenshot VerificationSource = "screenshot"
)

// VerificationMetrics holds the sub-scores of a verification.
type VerificationMetrics struct {
	DataQuality      float64 `json:"data_quality" yaml:"data_quality"`
	RouteConsistency float64 `json:"route_consistency" yaml:"route_consistency"`
	SpeedProfile     float64 `json:"speed_profile" yaml:"speed_profile"`
	Duration         float64 `json:"duration" yaml:"duration"`
	Distance         float64 `json:"distance" yaml:"distance"` // km
}

// VerificationResult is produced once per completed session and never mutated.
type VerificationResult struct {
	IsValid        bool                `json:"is_valid" yaml:"is_valid"`
	Confidence     float64             `json:"confidence" yaml:"confidence"`
	Issues         []string            `json:"issues" yaml:"issues"`
	Metrics        VerificationMetrics `json:"metrics" yaml:"metrics"`
	Recommendation Recommendation      `json:"recommendation" yaml:"recommendation"`
	Source         VerificationSource  `json:"source" yaml:"source"`
}

// SessionSummary is the hand-off record for completion persistence.
type SessionSummary struct {
	SessionID         uuid.UUID     `json:"session_id" yaml:"session_id"`
	CourseID          string        `json:"course_id" yaml:"course_id"`
	StartTime         time.Time     `json:"start_time" yaml:"start_time"`
	EndTime           time.Time     `json:"end_time" yaml:"end_time"`
	Elapsed           time.Duration `json:"elapsed" yaml:"elapsed"`
	Distance          float64       `json:"distance" yaml:"distance"` // meters
	FixCount          int           `json:"fix_count" yaml:"fix_count"`
	CheckpointsPassed int           `json:"checkpoints_passed" yaml:"checkpoints_passed"`

	// Criteria is nil when the run could not be checked against its course.
	Criteria *CriteriaCheck `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

// CriteriaCheck records whether a run met the course completion rules.
type CriteriaCheck struct {
	Met    bool   `json:"met" yaml:"met"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Completion is a durably recorded finished run.
type Completion struct {
	ID         uuid.UUID          `json:"id" yaml:"id"`
	Summary    SessionSummary     `json:"summary" yaml:"summary"`
	Result     VerificationResult `json:"result" yaml:"result"`
	RecordedAt time.Time          `json:"recorded_at" yaml:"recorded_at"`
}

// NewCompletion creates a completion with generated UUID and timestamp.
func NewCompletion(summary SessionSummary, result VerificationResult) *Completion {
	return &Completion{
		ID:         uuid.New(),
		Summary:    summary,
		Result:     result,
		RecordedAt: time.Now(),
	}
}
