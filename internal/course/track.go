// ABOUTME: Reads recorded position tracks from GPX or CSV files for replay
// ABOUTME: CSV needs a header with lat and lng; other columns are optional

package course

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/harper/courserun/internal/models"
)

// ReadTrack loads positions from a .gpx or .csv file.
func ReadTrack(path string) ([]models.RawPosition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpx":
		t, err := ParseGPX(f)
		if err != nil {
			return nil, err
		}
		return t.Positions(), nil
	case ".csv":
		return ParseCSV(f)
	default:
		return nil, fmt.Errorf("unsupported track format %q (want .gpx or .csv)", filepath.Ext(path))
	}
}

// ParseCSV reads positions from CSV with a header row. Recognized columns:
// lat, lng (or lon), timestamp (RFC 3339 or unix milliseconds), accuracy,
// speed, heading.
func ParseCSV(r io.Reader) ([]models.RawPosition, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTrack
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["lng"]; !ok {
		if i, ok := cols["lon"]; ok {
			cols["lng"] = i
		}
	}
	for _, need := range []string{"lat", "lng"} {
		if _, ok := cols[need]; !ok {
			return nil, fmt.Errorf("csv header missing %q column", need)
		}
	}

	var out []models.RawPosition
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		pos, err := csvPosition(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, pos)
	}

	if len(out) == 0 {
		return nil, ErrEmptyTrack
	}
	return out, nil
}

func csvPosition(rec []string, cols map[string]int) (models.RawPosition, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	float := func(name string) (*float64, error) {
		s := field(name)
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", name, s, err)
		}
		return &v, nil
	}

	pos := models.RawPosition{Accuracy: DefaultAccuracy}

	lat, err := float("lat")
	if err != nil {
		return pos, err
	}
	lng, err := float("lng")
	if err != nil {
		return pos, err
	}
	if lat == nil || lng == nil {
		return pos, fmt.Errorf("lat and lng are required")
	}
	if err := models.ValidateCoordinates(*lat, *lng); err != nil {
		return pos, err
	}
	pos.Lat, pos.Lng = *lat, *lng

	if acc, err := float("accuracy"); err != nil {
		return pos, err
	} else if acc != nil {
		pos.Accuracy = *acc
	}
	if pos.Speed, err = float("speed"); err != nil {
		return pos, err
	}
	if pos.Heading, err = float("heading"); err != nil {
		return pos, err
	}

	if s := field("timestamp"); s != "" {
		ts, err := parseTimestamp(s)
		if err != nil {
			return pos, err
		}
		pos.Timestamp = ts
	}
	return pos, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return ts, nil
}
