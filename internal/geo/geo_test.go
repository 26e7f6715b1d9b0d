package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	t.Parallel()

	// One degree of latitude at the equator is ~111.2 km.
	a := orb.Point{37.0, 0.0}
	b := orb.Point{37.0, 1.0}
	assert.InDelta(t, 111.2, HaversineKm(a, b), 0.5)

	assert.Zero(t, HaversineKm(a, a))
}

func TestPointSegmentKm(t *testing.T) {
	t.Parallel()

	// Point 0.01 deg (~1.11 km) east of a north-south segment through it.
	p := orb.Point{37.01, 0.0}
	a := orb.Point{37.0, -1.0}
	b := orb.Point{37.0, 1.0}
	assert.InDelta(t, 1.11, PointSegmentKm(p, a, b), 0.02)

	// Beyond the segment end, distance is to the endpoint.
	far := orb.Point{37.0, 2.0}
	assert.InDelta(t, 111.0, PointSegmentKm(far, a, b), 1.5)

	// Degenerate segment behaves like point distance.
	assert.InDelta(t, 1.11, PointSegmentKm(p, orb.Point{37.0, 0.0}, orb.Point{37.0, 0.0}), 0.02)
}

func TestPointLineKm(t *testing.T) {
	t.Parallel()

	line := orb.LineString{{37.0, -1.0}, {37.0, 0.0}, {37.1, 1.0}}
	p := orb.Point{37.01, -0.5}
	assert.InDelta(t, 1.11, PointLineKm(p, line), 0.02)

	assert.True(t, math.IsInf(PointLineKm(p, nil), 1))
}

func TestPathLengthKm(t *testing.T) {
	t.Parallel()

	path := []orb.Point{{37.0, 0.0}, {37.0, 0.01}, {37.0, 0.02}}
	assert.InDelta(t, 2.22, PathLengthKm(path), 0.02)

	assert.Zero(t, PathLengthKm(nil))
	assert.Zero(t, PathLengthKm(path[:1]))
}
