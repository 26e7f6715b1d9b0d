// Package engine ties the tracking pipeline together: reconciled entity
// state, alert lifecycle, zone reference data, prediction and risk
// classification, behind one controller that both transports feed.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/kudu-data/corridor.watch/internal/alert"
	"github.com/kudu-data/corridor.watch/internal/monitoring"
	"github.com/kudu-data/corridor.watch/internal/predict"
	"github.com/kudu-data/corridor.watch/internal/risk"
	"github.com/kudu-data/corridor.watch/internal/timeutil"
	"github.com/kudu-data/corridor.watch/internal/track"
	"github.com/kudu-data/corridor.watch/internal/zone"
)

// Recorder persists accepted updates. All methods are best-effort from the
// tracker's point of view: persistence failures are logged, never propagated
// into the live path.
type Recorder interface {
	RecordObservations(snaps []track.Snapshot) error
	RecordAlerts(alerts []alert.Alert) error
	RecordZones(defs []zone.Definition) error
}

// TransitionForwarder sends an alert status change to the upstream service.
type TransitionForwarder interface {
	PostAlertTransition(ctx context.Context, alertID string, next alert.Status) error
}

// ClassifiedEntity is a tracked entity decorated with its current risk
// verdict and predicted position. Both are derived on read and never stored.
type ClassifiedEntity struct {
	track.Snapshot
	Risk       risk.Verdict       `json:"risk"`
	Prediction predict.Prediction `json:"prediction"`
}

// Tracker is the single writer for all live tracking state. Poll cycles and
// push frames call the Apply methods; readers get derived views. A buffered
// coalescing channel signals "something changed" to fan-out consumers.
type Tracker struct {
	store      *track.Store
	alerts     *alert.Reconciler
	zones      *zone.Handle
	predictor  *predict.Predictor
	classifier *risk.Classifier
	clock      timeutil.Clock

	recorder Recorder            // may be nil
	upstream TransitionForwarder // may be nil

	changes chan struct{}
}

// Options configures optional tracker collaborators.
type Options struct {
	EpsilonDeg float64
	Predictor  *predict.Predictor
	Classifier *risk.Classifier
	Clock      timeutil.Clock
	Recorder   Recorder
	Upstream   TransitionForwarder
}

// NewTracker builds a tracker. Zero-valued options fall back to defaults.
func NewTracker(opts Options) *Tracker {
	if opts.Predictor == nil {
		opts.Predictor = predict.New()
	}
	if opts.Classifier == nil {
		opts.Classifier = risk.New()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Tracker{
		store:      track.NewStore(opts.EpsilonDeg),
		alerts:     alert.NewReconciler(),
		zones:      zone.NewHandle(nil),
		predictor:  opts.Predictor,
		classifier: opts.Classifier,
		clock:      opts.Clock,
		recorder:   opts.Recorder,
		upstream:   opts.Upstream,
		changes:    make(chan struct{}, 1),
	}
}

// ApplyPositions merges a position batch and reports whether the live view
// changed. Only accepted records are persisted, so a redundant poll cycle
// writes nothing.
func (t *Tracker) ApplyPositions(batch []track.Snapshot) bool {
	changed, applied := t.store.Apply(batch)
	if !changed {
		return false
	}
	if t.recorder != nil && len(applied) > 0 {
		if err := t.recorder.RecordObservations(applied); err != nil {
			monitoring.Logf("engine: recording %d observations: %v", len(applied), err)
		}
	}
	t.notify()
	return true
}

// ApplyAlerts merges an alert batch from the given origin.
func (t *Tracker) ApplyAlerts(batch []alert.Alert, origin alert.Origin) bool {
	if !t.alerts.Merge(batch, origin) {
		return false
	}
	if t.recorder != nil {
		if err := t.recorder.RecordAlerts(t.alerts.Snapshot("")); err != nil {
			monitoring.Logf("engine: recording alerts: %v", err)
		}
	}
	t.notify()
	return true
}

// SwapZones replaces the zone reference layer in one step. In-flight
// classifications finish against the old index; new reads see the new one.
func (t *Tracker) SwapZones(defs []zone.Definition) {
	ix := zone.BuildIndex(defs)
	t.zones.Swap(ix)
	if t.recorder != nil {
		if err := t.recorder.RecordZones(ix.Definitions()); err != nil {
			monitoring.Logf("engine: recording zones: %v", err)
		}
	}
	monitoring.Logf("engine: zone layer refreshed, %d zones", ix.Len())
	t.notify()
}

// Entities returns every tracked entity with risk and prediction attached.
func (t *Tracker) Entities() []ClassifiedEntity {
	return t.classify(t.store.Snapshot())
}

// EntitiesByKind returns classified entities of one kind.
func (t *Tracker) EntitiesByKind(k track.Kind) []ClassifiedEntity {
	return t.classify(t.store.ByKind(k))
}

// Entity returns one classified entity by id.
func (t *Tracker) Entity(id string) (ClassifiedEntity, bool) {
	s, ok := t.store.Get(id)
	if !ok {
		return ClassifiedEntity{}, false
	}
	return t.decorate(s), true
}

func (t *Tracker) classify(snaps []track.Snapshot) []ClassifiedEntity {
	out := make([]ClassifiedEntity, len(snaps))
	for i, s := range snaps {
		out[i] = t.decorate(s)
	}
	return out
}

func (t *Tracker) decorate(s track.Snapshot) ClassifiedEntity {
	return ClassifiedEntity{
		Snapshot:   s,
		Risk:       t.classifier.Classify(s.Position, t.zones.Load()),
		Prediction: t.predictor.Predict(s),
	}
}

// Alerts returns the current alert list, optionally filtered by status.
func (t *Tracker) Alerts(filter alert.Status) []alert.Alert {
	return t.alerts.Snapshot(filter)
}

// AlertCounts returns lifecycle tallies over one consistent snapshot.
func (t *Tracker) AlertCounts() alert.Counts {
	return t.alerts.Counts()
}

// TransitionAlert validates and applies a lifecycle move. The local state
// machine is checked first so an invalid move never leaves the process; the
// upstream is then told before the local state advances, keeping the two
// sides from diverging when the network is down.
func (t *Tracker) TransitionAlert(ctx context.Context, id string, next alert.Status) (alert.Alert, error) {
	held, ok := t.alerts.Get(id)
	if !ok {
		return alert.Alert{}, fmt.Errorf("%w: %s", alert.ErrUnknownAlert, id)
	}
	if !held.Status.CanTransition(next) {
		return held, fmt.Errorf("%w: %s -> %s", alert.ErrInvalidTransition, held.Status, next)
	}

	if t.upstream != nil {
		if err := t.upstream.PostAlertTransition(ctx, id, next); err != nil {
			return held, fmt.Errorf("forwarding transition for %s: %w", id, err)
		}
	}

	a, err := t.alerts.Transition(id, next, t.clock.Now())
	if err != nil {
		return a, err
	}
	if t.recorder != nil {
		if rerr := t.recorder.RecordAlerts([]alert.Alert{a}); rerr != nil {
			monitoring.Logf("engine: recording alert transition: %v", rerr)
		}
	}
	t.notify()
	return a, nil
}

// Zones returns the current zone definitions.
func (t *Tracker) Zones() []zone.Definition {
	return t.zones.Load().Definitions()
}

// ZoneIndex returns the current immutable zone index.
func (t *Tracker) ZoneIndex() *zone.Index {
	return t.zones.Load()
}

// Changes returns the coalescing change signal. At most one notification is
// pending at a time; a consumer that falls behind sees a single combined
// wake-up rather than a queue.
func (t *Tracker) Changes() <-chan struct{} {
	return t.changes
}

func (t *Tracker) notify() {
	select {
	case t.changes <- struct{}{}:
	default:
	}
}

// Now exposes the tracker's clock for callers composing timestamps.
func (t *Tracker) Now() time.Time {
	return t.clock.Now()
}
