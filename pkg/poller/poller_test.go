package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedFetcher struct {
	calls     atomic.Int64
	snapshots []Snapshot
	errs      []error
}

func (f *scriptedFetcher) FetchStatus(ctx context.Context, paymentID string) (*Snapshot, error) {
	i := int(f.calls.Add(1)) - 1
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	snap := f.snapshots[i]
	return &snap, nil
}

func TestPoller_StopsOnTerminalStatus(t *testing.T) {
	fetcher := &scriptedFetcher{
		snapshots: []Snapshot{
			{Status: "pending", SecondsRemaining: 300},
			{Status: "verified", SecondsRemaining: 0},
		},
	}

	p := New(fetcher, Config{
		PaymentID:    "pay-1",
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go p.Run(ctx)

	select {
	case <-p.Done():
	case <-ctx.Done():
		t.Fatal("poller did not stop on terminal status")
	}

	assert.Equal(t, "verified", p.Last().Status)
}

func TestPoller_FetchFailureIsSilent(t *testing.T) {
	fetcher := &scriptedFetcher{
		snapshots: []Snapshot{
			{},
			{Status: "verified"},
		},
		errs: []error{errors.New("connection refused")},
	}

	p := New(fetcher, Config{
		PaymentID:    "pay-1",
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go p.Run(ctx)

	// First fetch fails; the retry on the next interval succeeds.
	select {
	case <-p.Done():
	case <-ctx.Done():
		t.Fatal("poller did not recover from transient fetch failure")
	}

	assert.Equal(t, "verified", p.Last().Status)
	assert.GreaterOrEqual(t, fetcher.calls.Load(), int64(2))
}

func TestPoller_CountdownForcesLocalExpiry(t *testing.T) {
	// The server keeps answering pending with no time left; the local
	// countdown must force EXPIRED without a server verdict.
	fetcher := &scriptedFetcher{
		snapshots: []Snapshot{
			{Status: "pending", SecondsRemaining: 0},
		},
	}

	p := New(fetcher, Config{
		PaymentID:    "pay-1",
		PollInterval: time.Hour, // only the countdown can end this
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go p.Run(ctx)

	select {
	case <-p.Done():
	case <-ctx.Done():
		t.Fatal("countdown did not force local expiry")
	}

	last := p.Last()
	assert.Equal(t, "expired", last.Status)
	assert.True(t, last.Expired)
}

func TestPoller_CancellationStopsLoop(t *testing.T) {
	fetcher := &scriptedFetcher{
		snapshots: []Snapshot{
			{Status: "pending", SecondsRemaining: 600},
		},
	}

	p := New(fetcher, Config{
		PaymentID:    "pay-1",
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("poller leaked after cancellation")
	}
}

func TestPoller_OnUpdateReceivesSnapshots(t *testing.T) {
	fetcher := &scriptedFetcher{
		snapshots: []Snapshot{
			{Status: "verified"},
		},
	}

	var updates atomic.Int64
	p := New(fetcher, Config{
		PaymentID:    "pay-1",
		PollInterval: 10 * time.Millisecond,
		OnUpdate: func(s Snapshot) {
			updates.Add(1)
		},
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Run(ctx)

	require.GreaterOrEqual(t, updates.Load(), int64(1))
}
