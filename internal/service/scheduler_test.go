package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucas-garnier/ledgerbank/internal/clock"
	"github.com/lucas-garnier/ledgerbank/internal/service/transfer"
)

type fakeRunner struct {
	mu       sync.Mutex
	calls    int
	lastNow  time.Time
	lastLim  int
	outcomes []transfer.TickOutcome
	err      error
}

func (f *fakeRunner) RunScheduledTick(ctx context.Context, now time.Time, limit int) ([]transfer.TickOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastNow = now
	f.lastLim = limit
	return f.outcomes, f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestScheduledTransferProcessor_TicksUntilCancelled(t *testing.T) {
	runner := &fakeRunner{}
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	p := NewScheduledTransferProcessor(runner, clk, slog.Default(), 10*time.Millisecond, 25)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return runner.callCount() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after cancel")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, clk.Now(), runner.lastNow, "tick uses the injected clock")
	assert.Equal(t, 25, runner.lastLim)
}

func TestScheduledTransferProcessor_SurvivesTickErrors(t *testing.T) {
	runner := &fakeRunner{err: context.DeadlineExceeded}
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	p := NewScheduledTransferProcessor(runner, clk, slog.Default(), 10*time.Millisecond, 25)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	// A failing tick must not kill the loop.
	require.Eventually(t, func() bool {
		return runner.callCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}
