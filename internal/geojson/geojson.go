// ABOUTME: GeoJSON generation utilities
// ABOUTME: Converts courses, progress splits, and recorded sessions to FeatureCollections

package geojson

import (
	"encoding/json"
	"time"

	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
	"github.com/harper/courserun/internal/route"
)

// FeatureCollection represents a GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature represents a GeoJSON Feature.
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Geometry represents a GeoJSON Geometry.
type Geometry struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

// PointCoordinates represents [longitude, latitude] for a Point.
type PointCoordinates [2]float64

// LineCoordinates represents [[lng, lat], [lng, lat], ...] for a LineString.
type LineCoordinates []PointCoordinates

// NewFeatureCollection returns an empty collection.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
}

// Add appends features and returns the collection.
func (fc *FeatureCollection) Add(features ...Feature) *FeatureCollection {
	fc.Features = append(fc.Features, features...)
	return fc
}

func point(p geo.Point, props map[string]interface{}) Feature {
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "Point", Coordinates: PointCoordinates{p.Lng, p.Lat}},
		Properties: props,
	}
}

func line(points []geo.Point, props map[string]interface{}) Feature {
	coords := make(LineCoordinates, len(points))
	for i, p := range points {
		coords[i] = PointCoordinates{p.Lng, p.Lat}
	}
	return Feature{
		Type:       "Feature",
		Geometry:   Geometry{Type: "LineString", Coordinates: coords},
		Properties: props,
	}
}

// Course renders the course line followed by its waypoints. Waypoints carry
// a kind of "start", "checkpoint", or "finish".
func Course(c *models.Course) *FeatureCollection {
	fc := NewFeatureCollection()
	fc.Add(line(c.Polyline, map[string]interface{}{
		"id":             c.ID,
		"name":           c.Name,
		"total_distance": c.TotalDistance,
	}))

	wps := c.Waypoints()
	for i, wp := range wps {
		kind := "checkpoint"
		switch i {
		case 0:
			kind = "start"
		case len(wps) - 1:
			kind = "finish"
		}
		fc.Add(point(wp, map[string]interface{}{
			"kind":  kind,
			"index": i,
		}))
	}
	return fc
}

// Progress splits the route at the runner's progress into a "passed" and an
// "upcoming" line, ending with the runner's position.
func Progress(r *route.Route, progress route.Progress, position geo.Point) *FeatureCollection {
	passed, upcoming := r.Split(progress)
	fc := NewFeatureCollection()
	if len(passed) >= 2 {
		fc.Add(line(passed, map[string]interface{}{"segment": "passed"}))
	}
	if len(upcoming) >= 2 {
		fc.Add(line(upcoming, map[string]interface{}{"segment": "upcoming"}))
	}
	fc.Add(point(position, map[string]interface{}{
		"kind":             "runner",
		"progress_percent": progress.ProgressPercent,
		"off_course":       progress.IsOffCourse,
	}))
	return fc
}

// Session renders a recorded track as a LineString. Sessions with fewer than
// two fixes produce an empty collection.
func Session(s *models.TrackingSession) *FeatureCollection {
	fc := NewFeatureCollection()
	if len(s.Fixes) < 2 {
		return fc
	}

	props := map[string]interface{}{
		"session_id":  s.ID.String(),
		"course_id":   s.CourseID,
		"start_time":  s.StartTime.Format(time.RFC3339),
		"point_count": len(s.Fixes),
		"distance":    geo.PathLength(s.Points()),
	}
	if s.EndTime != nil {
		props["end_time"] = s.EndTime.Format(time.RFC3339)
	}
	return fc.Add(line(s.Points(), props))
}

// Fixes renders each fix as a Point with its timestamp and accuracy.
func Fixes(s *models.TrackingSession) *FeatureCollection {
	fc := NewFeatureCollection()
	for _, f := range s.Fixes {
		props := map[string]interface{}{
			"recorded_at": f.Timestamp.Format(time.RFC3339),
			"accuracy":    f.Accuracy,
		}
		if f.Speed != nil {
			props["speed"] = *f.Speed
		}
		if f.Heading != nil {
			props["heading"] = *f.Heading
		}
		fc.Add(point(f.Point(), props))
	}
	return fc
}

// ToJSON serializes a FeatureCollection to JSON.
func (fc *FeatureCollection) ToJSON() ([]byte, error) {
	return json.Marshal(fc)
}

// ToJSONIndent serializes a FeatureCollection to indented JSON.
func (fc *FeatureCollection) ToJSONIndent() ([]byte, error) {
	return json.MarshalIndent(fc, "", "  ")
}
