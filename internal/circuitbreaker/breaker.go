// Package circuitbreaker halts order submission after a run of consecutive
// exchange failures, then re-admits traffic after a cooldown. It protects
// the account from hammering a broken endpoint with signed orders.
package circuitbreaker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Breaker tracks consecutive submission failures.
type Breaker struct {
	closed atomic.Bool // lock-free read on the hot path

	maxFailures int
	cooldown    time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	failures int
	openedAt time.Time
	now      func() time.Time // injectable clock for tests
}

// Config holds breaker configuration.
type Config struct {
	// MaxFailures is the consecutive-failure count that opens the breaker.
	MaxFailures int
	// Cooldown is how long submission stays blocked once open.
	Cooldown time.Duration
	Logger   *zap.Logger
}

// New creates a breaker; it starts closed.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.MaxFailures <= 0 {
		return nil, fmt.Errorf("max failures must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	b := &Breaker{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		logger:      cfg.Logger,
		now:         time.Now,
	}
	b.closed.Store(true)
	BreakerOpen.Set(0)
	return b, nil
}

// Allow reports whether a submission may proceed. An open breaker past its
// cooldown closes again on the next call.
func (b *Breaker) Allow() bool {
	if b.closed.Load() {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.now().Sub(b.openedAt) < b.cooldown {
		return false
	}

	b.failures = 0
	b.closed.Store(true)
	BreakerOpen.Set(0)
	b.logger.Info("breaker-closed-after-cooldown")
	return true
}

// RecordSuccess resets the failure run.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	ConsecutiveFailures.Set(0)
}

// RecordFailure counts one failed submission; reaching the threshold opens
// the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	ConsecutiveFailures.Set(float64(b.failures))

	if b.failures >= b.maxFailures && b.closed.Load() {
		b.openedAt = b.now()
		b.closed.Store(false)
		BreakerOpen.Set(1)
		BreakerTripsTotal.Inc()
		b.logger.Error("breaker-opened",
			zap.Int("consecutive_failures", b.failures),
			zap.Duration("cooldown", b.cooldown))
	}
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
