// Package risk derives a risk verdict for a position from the zone index.
// Classification is a pure function: same position and index, same verdict.
package risk

import (
	"github.com/paulmach/orb"

	"github.com/kudu-data/corridor.watch/internal/track"
	"github.com/kudu-data/corridor.watch/internal/zone"
)

// Level is the classified risk for a position.
type Level string

const (
	LevelSafe    Level = "safe"
	LevelCaution Level = "caution"
	LevelDanger  Level = "danger"
	LevelUnknown Level = "unknown"
)

// Verdict is the classification result. MatchedZone is empty when no zone
// fired (the unknown and default-caution cases).
type Verdict struct {
	Level       Level  `json:"level"`
	MatchedZone string `json:"matched_zone,omitempty"`
	ThreatType  string `json:"threat_type,omitempty"`
	Reason      string `json:"reason"`
}

// Classifier evaluates positions against a zone index with a fixed rule
// order. CorridorToleranceKm is the fallback tolerance for corridors that do
// not carry their own.
type Classifier struct {
	CorridorToleranceKm float64
}

// New returns a classifier with the standard corridor tolerance.
func New() *Classifier {
	return &Classifier{CorridorToleranceKm: 2.0}
}

// Classify evaluates the rules in fixed precedence order; the first match
// wins. Overlapping zones with different kinds are a configuration problem,
// not a runtime branch: evaluation order keeps the result deterministic.
func (c *Classifier) Classify(pos track.Position, ix *zone.Index) Verdict {
	if ix == nil {
		ix = zone.NewIndex(nil, nil)
	}

	// Rule 1: no usable position.
	if pos.IsZero() {
		return Verdict{Level: LevelUnknown, Reason: "position unknown"}
	}

	p := orb.Point{pos.Lon, pos.Lat}

	// Rule 2: inside a safe zone.
	if z := ix.FirstSafeContaining(p); z != nil {
		return Verdict{
			Level:       LevelSafe,
			MatchedZone: z.Name,
			Reason:      "inside protected area " + z.Name,
		}
	}

	// Rule 3: within a conflict zone's buffer.
	if z, _ := ix.FirstConflictWithinBuffer(p); z != nil {
		level := LevelDanger
		if !z.RiskLevel.AtLeastHigh() {
			level = LevelCaution
		}
		return Verdict{
			Level:       level,
			MatchedZone: z.Name,
			ThreatType:  z.Category,
			Reason:      "within buffer of conflict zone " + z.Name,
		}
	}

	// Rule 4: on a known corridor.
	if z := ix.FirstCorridorWithin(p, c.CorridorToleranceKm); z != nil {
		return Verdict{
			Level:       LevelSafe,
			MatchedZone: z.Name,
			Reason:      "within corridor " + z.Name,
		}
	}

	// Rule 5: conservative default. Absence of zone data is never silently
	// reported as safe.
	return Verdict{
		Level:  LevelCaution,
		Reason: "near human settlement / unclassified area",
	}
}
