// ABOUTME: Geodesy primitives over WGS84 coordinates
// ABOUTME: Haversine distance, initial bearing, and point-to-segment projection

package geo

import "math"

// EarthRadius is the mean Earth radius in meters used by the haversine formula.
const EarthRadius = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Projection is the closest point on a segment to a query point.
type Projection struct {
	Point    Point
	Distance float64 // meters from the query point to Point
	Fraction float64 // position along the segment, 0 at start and 1 at end
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h a hair past 1 for antipodal points.
	h = math.Min(1, h)

	return 2 * EarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial bearing from a to b in degrees within [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	brg := math.Mod(toDeg(math.Atan2(y, x))+360, 360)
	if brg >= 360 {
		brg = 0
	}
	return brg
}

// AngleDelta returns the signed turn from bearing "from" to bearing "to",
// normalized to (-180, 180]. Positive values turn right.
func AngleDelta(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d > 180 {
		d -= 360
	}
	if d <= -180 {
		d += 360
	}
	return d
}

// ProjectOntoSegment finds the point on the closed segment [start, end]
// nearest to p. Coordinates are flattened with an equirectangular projection
// around the segment, which is accurate at course scale. A degenerate segment
// (start == end) projects onto start.
func ProjectOntoSegment(p, start, end Point) Projection {
	kx := math.Cos(toRad((start.Lat + end.Lat) / 2))

	dx := (end.Lng - start.Lng) * kx
	dy := end.Lat - start.Lat
	lenSq := dx*dx + dy*dy

	if lenSq == 0 {
		return Projection{Point: start, Distance: Distance(p, start), Fraction: 0}
	}

	px := (p.Lng - start.Lng) * kx
	py := p.Lat - start.Lat
	t := (px*dx + py*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	closest := Point{
		Lat: start.Lat + t*(end.Lat-start.Lat),
		Lng: start.Lng + t*(end.Lng-start.Lng),
	}
	return Projection{Point: closest, Distance: Distance(p, closest), Fraction: t}
}

// PathLength sums the haversine distance between consecutive points.
func PathLength(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// Offset returns the point reached by moving the given meters north and east of p.
// Useful for building synthetic tracks; accurate for short offsets.
func Offset(p Point, north, east float64) Point {
	dLat := toDeg(north / EarthRadius)
	dLng := toDeg(east / (EarthRadius * math.Cos(toRad(p.Lat))))
	return Point{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}
