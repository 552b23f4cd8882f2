// ABOUTME: Tests for geodesy primitives
// ABOUTME: Covers haversine symmetry, bearings, and segment projection edge cases

package geo

import (
	"math"
	"testing"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{{37.5, 127.0}, {37.501, 127.0}},
		{{41.8781, -87.6298}, {40.7128, -74.0060}},
		{{-33.8688, 151.2093}, {51.5074, -0.1278}},
		{{0, 0}, {0, 0.0001}},
	}
	for _, p := range pairs {
		ab := Distance(p[0], p[1])
		ba := Distance(p[1], p[0])
		if ab != ba {
			t.Errorf("Distance(%v, %v)=%f but reverse=%f", p[0], p[1], ab, ba)
		}
	}
}

func TestDistance_SamePointIsZero(t *testing.T) {
	p := Point{Lat: 37.5665, Lng: 126.9780}
	if d := Distance(p, p); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestDistance_KnownValues(t *testing.T) {
	// 0.001 degree of latitude is about 111.2 m.
	d := Distance(Point{37.500, 127.000}, Point{37.501, 127.000})
	if !approx(d, 111.19, 0.1) {
		t.Errorf("expected ~111.19m, got %f", d)
	}

	// Chicago to New York is about 1145 km.
	d = Distance(Point{41.8781, -87.6298}, Point{40.7128, -74.0060})
	if !approx(d, 1144291, 1000) {
		t.Errorf("expected ~1145km, got %f", d)
	}
}

func TestBearing(t *testing.T) {
	origin := Point{Lat: 37.5, Lng: 127.0}
	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{"north", Point{37.6, 127.0}, 0},
		{"east", Point{37.5, 127.1}, 90},
		{"south", Point{37.4, 127.0}, 180},
		{"west", Point{37.5, 126.9}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(origin, tt.to)
			if !approx(got, tt.want, 0.1) {
				t.Errorf("got %f, want %f", got, tt.want)
			}
			if got < 0 || got >= 360 {
				t.Errorf("bearing %f out of [0,360)", got)
			}
		})
	}
}

func TestAngleDelta(t *testing.T) {
	tests := []struct {
		from, to, want float64
	}{
		{0, 90, 90},
		{90, 0, -90},
		{350, 10, 20},
		{10, 350, -20},
		{0, 180, 180},
	}
	for _, tt := range tests {
		if got := AngleDelta(tt.from, tt.to); !approx(got, tt.want, 1e-9) {
			t.Errorf("AngleDelta(%v,%v)=%v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestProjectOntoSegment_Interior(t *testing.T) {
	start := Point{37.500, 127.000}
	end := Point{37.502, 127.000}
	p := Offset(Point{37.501, 127.000}, 0, 20)

	proj := ProjectOntoSegment(p, start, end)
	if !approx(proj.Fraction, 0.5, 0.001) {
		t.Errorf("expected fraction 0.5, got %f", proj.Fraction)
	}
	if !approx(proj.Distance, 20, 0.2) {
		t.Errorf("expected distance ~20m, got %f", proj.Distance)
	}
}

func TestProjectOntoSegment_ClampsToEndpoints(t *testing.T) {
	start := Point{37.500, 127.000}
	end := Point{37.501, 127.000}

	before := ProjectOntoSegment(Point{37.499, 127.000}, start, end)
	if before.Fraction != 0 || before.Point != start {
		t.Errorf("expected clamp to start, got %+v", before)
	}

	after := ProjectOntoSegment(Point{37.503, 127.000}, start, end)
	if after.Fraction != 1 || after.Point != end {
		t.Errorf("expected clamp to end, got %+v", after)
	}
}

func TestProjectOntoSegment_Degenerate(t *testing.T) {
	a := Point{37.5, 127.0}
	p := Point{37.501, 127.0}
	proj := ProjectOntoSegment(p, a, a)
	if proj.Point != a {
		t.Errorf("expected projection onto the single point, got %+v", proj.Point)
	}
	if !approx(proj.Distance, Distance(p, a), 1e-9) {
		t.Errorf("expected distance %f, got %f", Distance(p, a), proj.Distance)
	}
}

func TestPathLength(t *testing.T) {
	if PathLength(nil) != 0 {
		t.Error("expected 0 for empty path")
	}
	pts := []Point{{37.500, 127.000}, {37.501, 127.000}, {37.502, 127.000}}
	if got := PathLength(pts); !approx(got, 222.39, 0.2) {
		t.Errorf("expected ~222.39m, got %f", got)
	}
}

func TestOffset(t *testing.T) {
	p := Point{37.5, 127.0}
	q := Offset(p, 300, 400)
	if d := Distance(p, q); !approx(d, 500, 1) {
		t.Errorf("expected ~500m, got %f", d)
	}
}
