package ingest

import (
	"context"
	"time"

	"github.com/kudu-data/corridor.watch/internal/monitoring"
	"github.com/kudu-data/corridor.watch/internal/timeutil"
)

// Poller runs one fetch function on a fixed cadence. A failed cycle is logged
// and the previous state stays in place until the next cycle succeeds.
type Poller struct {
	name     string
	interval time.Duration
	clock    timeutil.Clock
	fn       func(ctx context.Context) error
}

// NewPoller creates a poller. The name appears in log lines only.
func NewPoller(name string, interval time.Duration, clock timeutil.Clock, fn func(ctx context.Context) error) *Poller {
	return &Poller{name: name, interval: interval, clock: clock, fn: fn}
}

// Run executes one cycle immediately, then one per interval until the context
// is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.cycle(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	if err := p.fn(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		monitoring.Logf("poll %s: %v", p.name, err)
	}
}
