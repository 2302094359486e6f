// Package poller implements the client-side status polling loop used by
// payer-facing status pages and embedded merchant widgets.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPollInterval matches the cadence the status page uses.
const DefaultPollInterval = 10 * time.Second

// countdownTick is the local countdown resolution, independent of the
// poll cadence.
const countdownTick = 1 * time.Second

// Snapshot is the status view delivered to the consumer on every poll
// and every countdown tick.
type Snapshot struct {
	Status           string
	SecondsRemaining int64
	Expired          bool
}

// StatusFetcher retrieves the current public status of a payment.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, paymentID string) (*Snapshot, error)
}

// Config tunes a Poller.
type Config struct {
	PaymentID    string
	PollInterval time.Duration
	// OnUpdate receives every snapshot change. Called from the poller
	// goroutine; consumers hand off to their own loop.
	OnUpdate func(Snapshot)
}

// Poller re-fetches payment status at a fixed interval and ticks a
// local countdown every second between fetches. It stops on its own
// once the status is terminal or the countdown hits zero, and stops
// immediately when the context is cancelled so no timer outlives the
// page that started it.
type Poller struct {
	fetcher  StatusFetcher
	logger   *zap.Logger
	config   Config
	mu       sync.Mutex
	last     Snapshot
	deadline time.Time
	done     chan struct{}
	once     sync.Once
}

// New creates a poller for one payment.
func New(fetcher StatusFetcher, cfg Config, logger *zap.Logger) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Poller{
		fetcher: fetcher,
		logger:  logger,
		config:  cfg,
		done:    make(chan struct{}),
	}
}

// Done is closed when the poller has stopped, either terminally or via
// cancellation.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Last returns the most recent snapshot.
func (p *Poller) Last() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run drives the poll loop until a terminal state, countdown exhaustion,
// or context cancellation. The first fetch happens immediately.
func (p *Poller) Run(ctx context.Context) {
	defer p.once.Do(func() { close(p.done) })

	if p.poll(ctx) {
		return
	}

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()
	countdown := time.NewTicker(countdownTick)
	defer countdown.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			if p.poll(ctx) {
				return
			}
		case <-countdown.C:
			if p.tick() {
				return
			}
		}
	}
}

// poll fetches fresh status. Fetch failures are transient: the previous
// snapshot stands and the next interval retries. Returns true when the
// loop should stop.
func (p *Poller) poll(ctx context.Context) bool {
	snap, err := p.fetcher.FetchStatus(ctx, p.config.PaymentID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		p.logger.Debug("status poll failed, keeping previous snapshot",
			zap.String("payment_id", p.config.PaymentID),
			zap.Error(err),
		)
		return false
	}

	p.mu.Lock()
	p.last = *snap
	p.deadline = time.Now().Add(time.Duration(snap.SecondsRemaining) * time.Second)
	p.mu.Unlock()

	p.notify(*snap)

	return isTerminal(snap.Status) || snap.Expired
}

// tick recomputes the countdown locally. When it reaches zero the page
// shows EXPIRED without waiting for the server; the backend's lazy
// expiry settles the record on its next read. Returns true on exhaustion.
func (p *Poller) tick() bool {
	p.mu.Lock()
	remaining := int64(time.Until(p.deadline).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	snap := p.last
	snap.SecondsRemaining = remaining
	if remaining == 0 && snap.Status == "pending" {
		snap.Status = "expired"
		snap.Expired = true
	}
	p.last = snap
	p.mu.Unlock()

	p.notify(snap)

	return snap.Expired || isTerminal(snap.Status)
}

func (p *Poller) notify(snap Snapshot) {
	if p.config.OnUpdate != nil {
		p.config.OnUpdate(snap)
	}
}

func isTerminal(status string) bool {
	switch status {
	case "verified", "failed", "expired", "unverified":
		return true
	}
	return false
}
