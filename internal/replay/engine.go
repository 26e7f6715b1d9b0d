// Package replay steps through a recorded movement trail one point per tick,
// driving the same display path as live data.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kudu-data/corridor.watch/internal/monitoring"
	"github.com/kudu-data/corridor.watch/internal/timeutil"
	"github.com/kudu-data/corridor.watch/internal/track"
)

// State is the playback lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateLoaded    State = "loaded"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// ErrEmptyTrail is returned when Load is given a trail with no points.
var ErrEmptyTrail = errors.New("replay: trail has no points")

// ErrNotPlayable is returned for Play/Pause calls in a state where they do
// not apply.
var ErrNotPlayable = errors.New("replay: operation not valid in current state")

// Status is a read-only view of playback progress.
type Status struct {
	State       State     `json:"state"`
	EntityID    string    `json:"entity_id,omitempty"`
	Cursor      int       `json:"cursor"`
	TotalPoints int       `json:"total_points"`
	Start       time.Time `json:"start,omitempty"`
	End         time.Time `json:"end,omitempty"`
}

// Engine owns one trail and a cursor into it. All methods are safe for
// concurrent use. Completion is signalled once per playback run on the
// channel returned by Done; droppable if nobody is listening.
type Engine struct {
	mu     sync.Mutex
	state  State
	trail  track.Trail
	cursor int
	done   chan struct{}
}

// NewEngine returns an idle engine with nothing loaded.
func NewEngine() *Engine {
	return &Engine{state: StateIdle, done: make(chan struct{}, 1)}
}

// Load installs a trail and moves to Loaded with the cursor at the first
// point. Loading over an active or paused playback stops it first.
func (e *Engine) Load(trail track.Trail) error {
	if len(trail.Points) == 0 {
		return fmt.Errorf("%w: entity %s", ErrEmptyTrail, trail.EntityID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StatePlaying || e.state == StatePaused {
		monitoring.Logf("replay: discarding %s playback of %s for new trail",
			e.state, e.trail.EntityID)
	}
	e.trail = trail
	e.cursor = 0
	e.state = StateLoaded
	e.drainDone()
	return nil
}

// Play starts or resumes playback. Calling Play while already playing is a
// no-op; playing with nothing loaded or after completion is an error.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StatePlaying:
		return nil
	case StateLoaded, StatePaused:
		e.state = StatePlaying
		return nil
	default:
		return fmt.Errorf("%w: play from %s", ErrNotPlayable, e.state)
	}
}

// Pause suspends playback, keeping the cursor where it is.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StatePaused:
		return nil
	case StatePlaying:
		e.state = StatePaused
		return nil
	default:
		return fmt.Errorf("%w: pause from %s", ErrNotPlayable, e.state)
	}
}

// Stop discards the loaded trail and returns to Idle. Valid in every state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.trail = track.Trail{}
	e.cursor = 0
	e.state = StateIdle
	e.drainDone()
}

// Tick advances the cursor by one point and returns the sample now under the
// cursor. The final point moves the engine to Completed and fires the done
// signal; ticks in any other state report ok=false and change nothing.
func (e *Engine) Tick() (track.TrailPoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return track.TrailPoint{}, false
	}

	p := e.trail.Points[e.cursor]
	if e.cursor == len(e.trail.Points)-1 {
		e.state = StateCompleted
		select {
		case e.done <- struct{}{}:
		default:
		}
	} else {
		e.cursor++
	}
	return p, true
}

// Done returns the completion signal channel. One value is sent each time a
// playback run reaches the final point.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Status returns a snapshot of the current playback position.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		State:       e.state,
		EntityID:    e.trail.EntityID,
		Cursor:      e.cursor,
		TotalPoints: len(e.trail.Points),
	}
	s.Start, s.End = e.trail.TimeRange()
	return s
}

// Current returns the sample under the cursor without advancing, when a
// trail is loaded.
func (e *Engine) Current() (track.TrailPoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.trail.Points) == 0 {
		return track.TrailPoint{}, false
	}
	return e.trail.Points[e.cursor], true
}

// drainDone clears a pending completion signal from an earlier run. Caller
// holds the lock.
func (e *Engine) drainDone() {
	select {
	case <-e.done:
	default:
	}
}

// Runner drives an Engine from a clock ticker and hands each advanced point
// to a callback.
type Runner struct {
	engine   *Engine
	clock    timeutil.Clock
	interval time.Duration
	emit     func(track.TrailPoint)
}

// NewRunner wires an engine to a tick source. emit may be nil.
func NewRunner(engine *Engine, clock timeutil.Clock, interval time.Duration, emit func(track.TrailPoint)) *Runner {
	return &Runner{engine: engine, clock: clock, interval: interval, emit: emit}
}

// Run ticks the engine until the context is cancelled. Ticks while the engine
// is not playing fall through without effect, so pausing and resuming costs
// nothing.
func (r *Runner) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p, ok := r.engine.Tick()
			if !ok {
				continue
			}
			if r.emit != nil {
				r.emit(p)
			}
		}
	}
}
