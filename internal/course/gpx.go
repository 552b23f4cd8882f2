// ABOUTME: GPX parsing for course polylines and recorded tracks
// ABOUTME: Reads track points, falling back to route points and then waypoints

package course

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/harper/courserun/internal/geo"
	"github.com/harper/courserun/internal/models"
)

// ErrEmptyTrack is returned when a file holds no usable points.
var ErrEmptyTrack = errors.New("no points in track")

// DefaultAccuracy is assigned to replayed fixes whose source carries no accuracy.
const DefaultAccuracy = 5.0

type gpxDoc struct {
	XMLName  xml.Name `xml:"gpx"`
	Metadata struct {
		Name        string `xml:"name"`
		Description string `xml:"desc"`
	} `xml:"metadata"`
	Waypoints []gpxPoint `xml:"wpt"`
	Routes    []struct {
		Name   string     `xml:"name"`
		Points []gpxPoint `xml:"rtept"`
	} `xml:"rte"`
	Tracks []struct {
		Name     string `xml:"name"`
		Segments []struct {
			Points []gpxPoint `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

type gpxPoint struct {
	Lat       float64  `xml:"lat,attr"`
	Lon       float64  `xml:"lon,attr"`
	Elevation *float64 `xml:"ele"`
	Time      string   `xml:"time"`
}

// TrackPoint is one parsed GPX point.
type TrackPoint struct {
	geo.Point
	Elevation *float64
	Time      time.Time
}

// Track is the content of a GPX file reduced to one ordered point list.
type Track struct {
	Name        string
	Description string
	Points      []TrackPoint
}

// ParseGPX reads a GPX document. Track points win; route points are used when
// there are none, and waypoints after that. Points at exactly 0,0 are dropped
// as placeholders.
func ParseGPX(r io.Reader) (*Track, error) {
	var doc gpxDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	t := &Track{Name: doc.Metadata.Name, Description: doc.Metadata.Description}

	var raw []gpxPoint
	for _, trk := range doc.Tracks {
		if t.Name == "" {
			t.Name = trk.Name
		}
		for _, seg := range trk.Segments {
			raw = append(raw, seg.Points...)
		}
	}
	if len(raw) == 0 {
		for _, rte := range doc.Routes {
			if t.Name == "" {
				t.Name = rte.Name
			}
			raw = append(raw, rte.Points...)
		}
	}
	if len(raw) == 0 {
		raw = doc.Waypoints
	}

	for i, p := range raw {
		if p.Lat == 0 && p.Lon == 0 {
			continue
		}
		if err := models.ValidateCoordinates(p.Lat, p.Lon); err != nil {
			return nil, fmt.Errorf("gpx point %d: %w", i, err)
		}
		tp := TrackPoint{Point: geo.Point{Lat: p.Lat, Lng: p.Lon}, Elevation: p.Elevation}
		if s := strings.TrimSpace(p.Time); s != "" {
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, fmt.Errorf("gpx point %d time %q: %w", i, s, err)
			}
			tp.Time = ts
		}
		t.Points = append(t.Points, tp)
	}

	if len(t.Points) == 0 {
		return nil, ErrEmptyTrack
	}
	return t, nil
}

// Polyline returns the point coordinates in order.
func (t *Track) Polyline() []geo.Point {
	out := make([]geo.Point, len(t.Points))
	for i, p := range t.Points {
		out[i] = p.Point
	}
	return out
}

// Positions converts the track to provider positions for replay.
func (t *Track) Positions() []models.RawPosition {
	out := make([]models.RawPosition, len(t.Points))
	for i, p := range t.Points {
		out[i] = models.RawPosition{
			Lat:       p.Lat,
			Lng:       p.Lng,
			Accuracy:  DefaultAccuracy,
			Timestamp: p.Time,
		}
	}
	return out
}

// Distance is the summed length of the track in meters.
func (t *Track) Distance() float64 {
	return geo.PathLength(t.Polyline())
}
