package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudu-data/corridor.watch/internal/timeutil"
)

func TestPoller_RunsImmediatelyThenOnTicks(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	var calls atomic.Int32

	p := NewPoller("entities", 5*time.Second, clock, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond,
		"first cycle runs without waiting for a tick")

	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestPoller_ErrorDoesNotStopTheLoop(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	var calls atomic.Int32

	p := NewPoller("alerts", time.Second, clock, func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("upstream down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestPoller_StopsOnCancel(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	p := NewPoller("zones", time.Second, clock, func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on cancellation")
	}
	assert.NotNil(t, ctx.Err())
}
