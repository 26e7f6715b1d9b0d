// Package ingest pulls tracking data from the upstream services over REST
// polling and a live websocket channel, normalizes the payloads into internal
// types, and feeds them to a sink. Both transports converge on the same sink
// so downstream code never knows which one delivered an update.
package ingest

import (
	"errors"

	"github.com/kudu-data/corridor.watch/internal/alert"
	"github.com/kudu-data/corridor.watch/internal/track"
)

// ErrNetworkUnavailable wraps transport failures reaching the upstream.
// The previous in-memory state remains valid while this persists.
var ErrNetworkUnavailable = errors.New("upstream unreachable")

// ErrMalformedPayload wraps responses that cannot be decoded at all.
// Individually bad records inside an otherwise valid batch are skipped
// and logged instead.
var ErrMalformedPayload = errors.New("malformed upstream payload")

// Sink receives normalized batches from any transport. Implementations
// report whether the batch changed their state so callers can skip
// redundant fan-out.
type Sink interface {
	ApplyPositions(batch []track.Snapshot) bool
	ApplyAlerts(batch []alert.Alert, origin alert.Origin) bool
}
