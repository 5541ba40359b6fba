package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultRefreshDelay is how long after an update the safety-net fetch runs.
const DefaultRefreshDelay = 100 * time.Millisecond

// Refresher runs one deferred authoritative fetch after quantity updates.
//
// Scheduling again before the delay elapses restarts the delay, so a burst of
// updates produces a single fetch. The pending fetch can be cancelled, or run
// immediately, which makes the safety net deterministic under a mock clock.
type Refresher struct {
	clock  clock.Clock
	delay  time.Duration
	run    func(ctx context.Context) error
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timer  *clock.Timer
	seq    uint64 // identifies the live timer; stale callbacks compare against it
	closed bool
}

// NewRefresher creates a refresher that calls run after delay.
func NewRefresher(clk clock.Clock, delay time.Duration, run func(ctx context.Context) error, logger *slog.Logger) *Refresher {
	if clk == nil {
		clk = clock.New()
	}
	if delay <= 0 {
		delay = DefaultRefreshDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Refresher{
		clock:  clk,
		delay:  delay,
		run:    run,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule arms the refresh, replacing any pending one.
func (r *Refresher) Schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.stopLocked()
	seq := r.seq
	r.timer = r.clock.AfterFunc(r.delay, func() { r.fire(seq) })
}

// Cancel drops the pending refresh. Reports whether one was pending.
func (r *Refresher) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := r.timer != nil
	r.stopLocked()
	return pending
}

// Pending reports whether a refresh is armed.
func (r *Refresher) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer != nil
}

// RunNow cancels any pending refresh and runs one synchronously.
func (r *Refresher) RunNow(ctx context.Context) error {
	r.Cancel()
	return r.run(ctx)
}

// Close cancels the pending refresh and any refresh that is running.
// Schedule is a no-op afterwards.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.stopLocked()
	r.mu.Unlock()
	r.cancel()
}

func (r *Refresher) stopLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.seq++
}

func (r *Refresher) fire(seq uint64) {
	r.mu.Lock()
	if r.closed || seq != r.seq || r.timer == nil {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()

	if err := r.run(r.ctx); err != nil {
		r.logger.Warn("safety-net refresh failed", "error", err)
	}
}
