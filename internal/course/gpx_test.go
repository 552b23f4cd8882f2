// ABOUTME: Tests for GPX parsing and CSV track reading
// ABOUTME: Covers point fallbacks, timestamps, and malformed input

package course

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <metadata><name>Bucheon Loop</name></metadata>
  <trk>
    <name>ignored because metadata wins</name>
    <trkseg>
      <trkpt lat="37.5000" lon="127.0000"><ele>12.5</ele><time>2026-05-01T07:00:00Z</time></trkpt>
      <trkpt lat="37.5010" lon="127.0000"><time>2026-05-01T07:00:30Z</time></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="0" lon="0"></trkpt>
      <trkpt lat="37.5020" lon="127.0000"><time>2026-05-01T07:01:00Z</time></trkpt>
    </trkseg>
  </trk>
  <wpt lat="1" lon="1"><name>not used</name></wpt>
</gpx>`

func TestParseGPX_TrackPoints(t *testing.T) {
	track, err := ParseGPX(strings.NewReader(trackGPX))
	require.NoError(t, err)

	assert.Equal(t, "Bucheon Loop", track.Name)
	require.Len(t, track.Points, 3)
	assert.Equal(t, 37.5, track.Points[0].Lat)
	assert.Equal(t, 127.0, track.Points[0].Lng)
	require.NotNil(t, track.Points[0].Elevation)
	assert.Equal(t, 12.5, *track.Points[0].Elevation)
	assert.Nil(t, track.Points[1].Elevation)
	assert.Equal(t, time.Date(2026, 5, 1, 7, 1, 0, 0, time.UTC), track.Points[2].Time.UTC())
	assert.InDelta(t, 222.4, track.Distance(), 0.5)

	pos := track.Positions()
	require.Len(t, pos, 3)
	assert.Equal(t, DefaultAccuracy, pos[1].Accuracy)
	assert.True(t, pos[1].Timestamp.Equal(track.Points[1].Time))
}

func TestParseGPX_RouteFallback(t *testing.T) {
	doc := `<gpx><rte><name>Route</name>
	<rtept lat="37.5" lon="127.0"/><rtept lat="37.6" lon="127.0"/>
	</rte><wpt lat="1" lon="1"/></gpx>`

	track, err := ParseGPX(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Route", track.Name)
	assert.Len(t, track.Points, 2)
}

func TestParseGPX_WaypointFallback(t *testing.T) {
	doc := `<gpx><wpt lat="37.5" lon="127.0"/><wpt lat="37.6" lon="127.1"/></gpx>`

	track, err := ParseGPX(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, track.Points, 2)
	assert.Equal(t, 127.1, track.Points[1].Lng)
	assert.True(t, track.Points[0].Time.IsZero())
}

func TestParseGPX_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "hello"},
		{"bad latitude", `<gpx><trk><trkseg><trkpt lat="95" lon="1"/></trkseg></trk></gpx>`},
		{"bad time", `<gpx><trk><trkseg><trkpt lat="1" lon="1"><time>yesterday</time></trkpt></trkseg></trk></gpx>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGPX(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}

	_, err := ParseGPX(strings.NewReader(`<gpx><trk><trkseg></trkseg></trk></gpx>`))
	assert.ErrorIs(t, err, ErrEmptyTrack)
}

func TestParseCSV(t *testing.T) {
	data := `lat,lon,timestamp,accuracy,speed
37.5,127.0,2026-05-01T07:00:00Z,8,2.5
37.501,127.0,1777618830000,,
`
	pos, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, pos, 2)

	assert.Equal(t, 8.0, pos[0].Accuracy)
	require.NotNil(t, pos[0].Speed)
	assert.Equal(t, 2.5, *pos[0].Speed)
	assert.Nil(t, pos[0].Heading)

	assert.Equal(t, DefaultAccuracy, pos[1].Accuracy)
	assert.Nil(t, pos[1].Speed)
	assert.Equal(t, int64(1777618830000), pos[1].Timestamp.UnixMilli())
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing lng", "lat,timestamp\n1,2\n"},
		{"bad number", "lat,lng\nabc,1\n"},
		{"out of range", "lat,lng\n91,1\n"},
		{"bad timestamp", "lat,lng,timestamp\n1,1,noon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := ParseCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyTrack)
	_, err = ParseCSV(strings.NewReader("lat,lng\n"))
	assert.ErrorIs(t, err, ErrEmptyTrack)
}

func TestReadTrack(t *testing.T) {
	dir := t.TempDir()
	gpxPath := filepath.Join(dir, "run.GPX")
	csvPath := filepath.Join(dir, "run.csv")
	require.NoError(t, os.WriteFile(gpxPath, []byte(trackGPX), 0600))
	require.NoError(t, os.WriteFile(csvPath, []byte("lat,lng\n37.5,127\n"), 0600))

	pos, err := ReadTrack(gpxPath)
	require.NoError(t, err)
	assert.Len(t, pos, 3)

	pos, err = ReadTrack(csvPath)
	require.NoError(t, err)
	assert.Len(t, pos, 1)

	_, err = ReadTrack(filepath.Join(dir, "run.kml"))
	assert.Error(t, err)
}
