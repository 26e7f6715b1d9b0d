package zone

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"

	"github.com/kudu-data/corridor.watch/internal/monitoring"
)

// Definition is the wire/seed-file format for one zone. Coordinates are
// [lat, lon] pairs, matching the upstream zone service. Exactly one of
// Bounds, Polygon, or Path must be present depending on kind.
type Definition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Category string `json:"category,omitempty"`

	RiskLevel   RiskLevel `json:"risk_level,omitempty"`
	BufferKm    float64   `json:"buffer_km,omitempty"`
	ToleranceKm float64   `json:"tolerance_km,omitempty"`

	// Bounds is a rectangle: [[minLat, minLon], [maxLat, maxLon]].
	Bounds [][]float64 `json:"bounds,omitempty"`
	// Polygon is a closed or unclosed ring of [lat, lon] vertices.
	Polygon [][]float64 `json:"polygon,omitempty"`
	// Path is a corridor centreline of [lat, lon] vertices.
	Path [][]float64 `json:"path,omitempty"`
}

// Build turns a definition into a Zone with concrete geometry.
func (d Definition) Build() (Zone, error) {
	if d.ID == "" {
		return Zone{}, fmt.Errorf("zone definition missing id")
	}
	switch d.Kind {
	case KindSafe, KindConflict, KindCorridor:
	default:
		return Zone{}, fmt.Errorf("zone %q: unknown kind %q", d.ID, d.Kind)
	}

	z := Zone{
		ID:          d.ID,
		Name:        d.Name,
		Kind:        d.Kind,
		Category:    d.Category,
		RiskLevel:   d.RiskLevel,
		BufferKm:    d.BufferKm,
		ToleranceKm: d.ToleranceKm,
	}

	switch {
	case d.Kind == KindCorridor:
		if len(d.Path) < 2 {
			return Zone{}, fmt.Errorf("corridor %q: path needs at least 2 points", d.ID)
		}
		z.Path = latLonLine(d.Path)
	case len(d.Polygon) >= 3:
		ring := latLonRing(d.Polygon)
		z.Boundary = orb.Polygon{ring}
	case len(d.Bounds) == 2 && len(d.Bounds[0]) == 2 && len(d.Bounds[1]) == 2:
		z.Boundary = boundsPolygon(d.Bounds[0][0], d.Bounds[0][1], d.Bounds[1][0], d.Bounds[1][1])
	default:
		return Zone{}, fmt.Errorf("zone %q: no usable geometry", d.ID)
	}

	return z, nil
}

// BuildIndex converts definitions into an index, skipping and logging any
// definition that fails to build rather than failing the whole set.
func BuildIndex(defs []Definition) *Index {
	zones := make([]Zone, 0, len(defs))
	kept := make([]Definition, 0, len(defs))
	for _, d := range defs {
		z, err := d.Build()
		if err != nil {
			monitoring.Logf("zone: dropping bad definition: %v", err)
			continue
		}
		zones = append(zones, z)
		kept = append(kept, d)
	}
	return NewIndex(zones, kept)
}

// LoadFile reads a JSON array of definitions from a seed file.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones file: %w", err)
	}
	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse zones file: %w", err)
	}
	return defs, nil
}

func latLonLine(pairs [][]float64) orb.LineString {
	line := make(orb.LineString, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			continue
		}
		line = append(line, orb.Point{p[1], p[0]}) // orb points are {lon, lat}
	}
	return line
}

func latLonRing(pairs [][]float64) orb.Ring {
	ring := make(orb.Ring, 0, len(pairs)+1)
	for _, p := range pairs {
		if len(p) != 2 {
			continue
		}
		ring = append(ring, orb.Point{p[1], p[0]})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

func boundsPolygon(minLat, minLon, maxLat, maxLon float64) orb.Polygon {
	if minLat > maxLat {
		minLat, maxLat = maxLat, minLat
	}
	if minLon > maxLon {
		minLon, maxLon = maxLon, minLon
	}
	return orb.Polygon{orb.Ring{
		{minLon, minLat},
		{maxLon, minLat},
		{maxLon, maxLat},
		{minLon, maxLat},
		{minLon, minLat},
	}}
}
