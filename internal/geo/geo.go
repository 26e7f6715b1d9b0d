// Package geo holds the small amount of spherical and flat-earth geometry the
// tracking engine needs. Distances are in kilometres, coordinates in decimal
// degrees (WGS84).
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// EarthRadiusKm is the mean earth radius used for haversine distances.
	EarthRadiusKm = 6371.0

	// KmPerDegree is the flat-earth conversion between kilometres and degrees
	// of latitude. Acceptable at the corridor scale this system operates in.
	KmPerDegree = 111.0
)

// HaversineKm returns the great-circle distance between two points.
// Points are orb.Point{lon, lat}.
func HaversineKm(a, b orb.Point) float64 {
	lat1 := a[1] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180
	dLat := (b[1] - a[1]) * math.Pi / 180
	dLon := (b[0] - a[0]) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PointSegmentKm returns the distance from p to the segment [a, b] using an
// equirectangular projection centred on p. Good to well under a percent at the
// tens-of-kilometres scale of a conservation area.
func PointSegmentKm(p, a, b orb.Point) float64 {
	cosLat := math.Cos(p[1] * math.Pi / 180)

	// Project into km-space around p.
	ax := (a[0] - p[0]) * KmPerDegree * cosLat
	ay := (a[1] - p[1]) * KmPerDegree
	bx := (b[0] - p[0]) * KmPerDegree * cosLat
	by := (b[1] - p[1]) * KmPerDegree

	dx := bx - ax
	dy := by - ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return math.Hypot(ax, ay)
	}

	// Closest point on the segment to the origin (which is p).
	t := -(ax*dx + ay*dy) / segLenSq
	t = math.Max(0, math.Min(1, t))
	cx := ax + t*dx
	cy := ay + t*dy
	return math.Hypot(cx, cy)
}

// PointRingKm returns the minimum distance from p to the boundary of the ring.
// It does not consider containment; callers decide what "inside" means.
func PointRingKm(p orb.Point, ring orb.Ring) float64 {
	if len(ring) < 2 {
		return math.Inf(1)
	}
	min := math.Inf(1)
	for i := 0; i < len(ring)-1; i++ {
		if d := PointSegmentKm(p, ring[i], ring[i+1]); d < min {
			min = d
		}
	}
	// Rings are normally closed, but tolerate an unclosed one.
	if ring[0] != ring[len(ring)-1] {
		if d := PointSegmentKm(p, ring[len(ring)-1], ring[0]); d < min {
			min = d
		}
	}
	return min
}

// PointLineKm returns the minimum distance from p to the line string.
func PointLineKm(p orb.Point, line orb.LineString) float64 {
	if len(line) == 0 {
		return math.Inf(1)
	}
	if len(line) == 1 {
		return HaversineKm(p, line[0])
	}
	min := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		if d := PointSegmentKm(p, line[i], line[i+1]); d < min {
			min = d
		}
	}
	return min
}

// PathLengthKm sums the haversine distances along a sequence of points.
func PathLengthKm(points []orb.Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1], points[i])
	}
	return total
}
