// Package ratelimit provides a process-local, keyed, fixed-window request
// counter. Buckets are pure cache state: losing them on restart just resets
// quotas.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tendhq/tend/internal/metrics"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultMaxKeys       = 10_000
	DefaultSweepInterval = time.Minute
)

// Config defines one quota class. Separate Limiter instances carry separate
// window/max pairs per endpoint family.
type Config struct {
	MaxRequests   int           // requests allowed per window
	Window        time.Duration // fixed window length
	MaxKeys       int           // cap on distinct keys tracked
	SweepInterval time.Duration // background reclamation cadence
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window counter keyed by caller identity. Safe for
// concurrent use; IsLimited never blocks and never errors.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	// order tracks insertion order for eviction. Approximate LRU on purpose:
	// with fixed windows, insertion order roughly tracks expiry order, and
	// that is good enough here.
	order []string

	now    func() time.Time
	logger *zap.Logger
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a Limiter and starts its background sweep.
func New(cfg Config, logger *zap.Logger) *Limiter {
	l := NewWithClock(cfg, logger, time.Now)
	l.startSweep()
	return l
}

// NewWithClock creates a Limiter with an injected clock and no background
// sweep, for deterministic tests. Call startSweep via New in production.
func NewWithClock(cfg Config, logger *zap.Logger, now func() time.Time) *Limiter {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultMaxKeys
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     now,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// IsLimited counts a request against the key's current window and reports
// whether it exceeded the quota. The first request of a window always
// succeeds; the request equal to MaxRequests is allowed, the one past it and
// every later in-window request are rejected.
func (l *Limiter) IsLimited(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		if !ok {
			if len(l.buckets) >= l.cfg.MaxKeys {
				l.evictLocked()
			}
			b = &bucket{}
			l.buckets[key] = b
			l.order = append(l.order, key)
		}
		b.count = 1
		b.resetAt = now.Add(l.cfg.Window)
		return false
	}

	b.count++
	limited := b.count > l.cfg.MaxRequests
	if limited && b.count == l.cfg.MaxRequests+1 {
		l.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int("limit", l.cfg.MaxRequests),
			zap.Duration("window", l.cfg.Window),
		)
	}
	return limited
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	close(l.done)
	l.wg.Wait()
}

// evictLocked drops a batch of the oldest-inserted buckets to bring the table
// safely under the cap. Evicting in bulk avoids churning one entry at a time
// under sustained pressure from distinct keys. Caller holds l.mu.
func (l *Limiter) evictLocked() {
	batch := l.cfg.MaxKeys / 10
	if batch < 1 {
		batch = 1
	}
	target := l.cfg.MaxKeys - batch

	evicted := 0
	for len(l.buckets) > target && len(l.order) > 0 {
		key := l.order[0]
		l.order = l.order[1:]
		if _, ok := l.buckets[key]; ok {
			delete(l.buckets, key)
			evicted++
		}
	}

	l.logger.Debug("evicted rate limit buckets",
		zap.Int("evicted", evicted),
		zap.Int("remaining", len(l.buckets)),
	)
}

// startSweep launches the periodic reclamation of expired buckets. The sweep
// shares l.mu with IsLimited, so interleaving is safe; it holds the lock only
// for the duration of one pass over a small table.
func (l *Limiter) startSweep() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// sweep removes buckets whose window has already closed and compacts the
// insertion-order list so eviction bookkeeping does not grow unbounded.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	removed := 0
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
			removed++
		}
	}

	if removed > 0 || len(l.order) > len(l.buckets) {
		live := l.order[:0]
		for _, key := range l.order {
			if _, ok := l.buckets[key]; ok {
				live = append(live, key)
			}
		}
		l.order = live
	}

	metrics.SetRateLimitBuckets(len(l.buckets))

	if removed > 0 {
		l.logger.Debug("swept expired rate limit buckets",
			zap.Int("removed", removed),
			zap.Int("remaining", len(l.buckets)),
		)
	}
}
