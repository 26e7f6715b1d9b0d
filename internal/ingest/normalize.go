package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/kudu-data/corridor.watch/internal/alert"
	"github.com/kudu-data/corridor.watch/internal/monitoring"
	"github.com/kudu-data/corridor.watch/internal/track"
)

// positionPayload is the upstream entity record. The feed has gone through
// several schema revisions and still serves a mix of them, so every
// historical field spelling is accepted here and nowhere else.
type positionPayload struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Type     string `json:"type,omitempty"`

	Lat             *float64     `json:"lat,omitempty"`
	Lon             *float64     `json:"lon,omitempty"`
	Lng             *float64     `json:"lng,omitempty"`
	CurrentPosition *latLngPoint `json:"current_position,omitempty"`
	LastLat         *float64     `json:"last_lat,omitempty"`
	LastLng         *float64     `json:"last_lng,omitempty"`

	SpeedKmh *float64 `json:"speed_kmh,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`

	HeadingDeg float64  `json:"heading_deg,omitempty"`
	Activity   string   `json:"activity_state,omitempty"`
	Battery    *float64 `json:"battery_level,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	Predicted *latLngPoint `json:"predicted_position,omitempty"`
}

type latLngPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// normalizePosition maps one upstream record onto the internal snapshot.
// Field precedence for coordinates: lat/lon (current schema), then
// current_position, then last_lat/last_lng (oldest collars). Records with no
// id or no coordinates at all are dropped with a log line; one bad record
// never poisons the batch.
func normalizePosition(p positionPayload) (track.Snapshot, bool) {
	id := p.ID
	if id == "" {
		id = p.DeviceID
	}
	if id == "" {
		monitoring.Logf("ingest: dropping position record without id")
		return track.Snapshot{}, false
	}

	var pos track.Position
	switch {
	case p.Lat != nil && (p.Lon != nil || p.Lng != nil):
		pos.Lat = *p.Lat
		if p.Lon != nil {
			pos.Lon = *p.Lon
		} else {
			pos.Lon = *p.Lng
		}
	case p.CurrentPosition != nil:
		pos = track.Position{Lat: p.CurrentPosition.Lat, Lon: p.CurrentPosition.Lng}
	case p.LastLat != nil && p.LastLng != nil:
		pos = track.Position{Lat: *p.LastLat, Lon: *p.LastLng}
	default:
		monitoring.Logf("ingest: dropping position record %s without coordinates", id)
		return track.Snapshot{}, false
	}

	kind := track.Kind(p.Kind)
	if kind == "" {
		kind = track.Kind(p.Type)
	}
	if !kind.IsValid() {
		kind = track.KindAnimal
	}

	var speed float64
	switch {
	case p.SpeedKmh != nil:
		speed = *p.SpeedKmh
	case p.Speed != nil:
		speed = *p.Speed
	}

	ts := p.Timestamp
	if ts.IsZero() {
		ts = p.UpdatedAt
	}

	s := track.Snapshot{
		ID:         id,
		Kind:       kind,
		Position:   pos,
		SpeedKmh:   speed,
		HeadingDeg: p.HeadingDeg,
		Activity:   p.Activity,
		Timestamp:  ts,
		Battery:    p.Battery,
	}
	if p.Predicted != nil {
		s.Predicted = &track.Position{Lat: p.Predicted.Lat, Lon: p.Predicted.Lng}
	}
	return s, true
}

func normalizePositions(payloads []positionPayload) []track.Snapshot {
	out := make([]track.Snapshot, 0, len(payloads))
	for _, p := range payloads {
		if s, ok := normalizePosition(p); ok {
			out = append(out, s)
		}
	}
	return out
}

// alertPayload is the upstream alert record, shared by the poll endpoint and
// the push channel.
type alertPayload struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity,omitempty"`
	Status     string    `json:"status,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`

	StatusChangedAt time.Time `json:"status_changed_at,omitempty"`
}

// normalizeAlert maps one upstream alert. Push alerts arrive before the
// upstream has assigned an id; those get a locally generated one so the
// lifecycle machinery can still track them.
func normalizeAlert(p alertPayload) (alert.Alert, bool) {
	if p.Title == "" && p.Message == "" {
		monitoring.Logf("ingest: dropping empty alert record")
		return alert.Alert{}, false
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	detected := p.DetectedAt
	if detected.IsZero() {
		detected = p.Timestamp
	}

	return alert.Alert{
		ID:              id,
		Title:           p.Title,
		Message:         p.Message,
		Severity:        alert.Severity(p.Severity),
		Status:          alert.Status(p.Status),
		DetectedAt:      detected,
		EntityID:        p.EntityID,
		StatusChangedAt: p.StatusChangedAt,
	}, true
}

func normalizeAlerts(payloads []alertPayload) []alert.Alert {
	out := make([]alert.Alert, 0, len(payloads))
	for _, p := range payloads {
		if a, ok := normalizeAlert(p); ok {
			out = append(out, a)
		}
	}
	return out
}
