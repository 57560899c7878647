package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiter is the internal strategy interface every algorithm
// implements. Allow reports whether a permit was granted and, when
// denied, how long the caller should wait before retrying.
type limiter interface {
	Allow() (bool, time.Duration)
}

func newLimiter(cfg Config) limiter {
	switch cfg.Algorithm {
	case SlidingWindow:
		return newSlidingWindowLimiter(cfg.PermitLimit, time.Duration(cfg.WindowSeconds)*time.Second)
	case FixedWindow:
		return newFixedWindowLimiter(cfg.PermitLimit, time.Duration(cfg.WindowSeconds)*time.Second)
	case Concurrency:
		return newConcurrencyLimiter(cfg.ConcurrencyLimit)
	default:
		return newTokenBucketLimiter(cfg)
	}
}

// tokenBucketLimiter wraps golang.org/x/time/rate.Limiter, the pack's
// only rate-limiting dependency.
type tokenBucketLimiter struct {
	rl *rate.Limiter
}

func newTokenBucketLimiter(cfg Config) *tokenBucketLimiter {
	period := time.Duration(cfg.ReplenishmentPeriodSeconds) * time.Second
	if period <= 0 {
		period = time.Second
	}
	ratePerSecond := float64(cfg.TokensPerPeriod) / period.Seconds()
	return &tokenBucketLimiter{rl: rate.NewLimiter(rate.Limit(ratePerSecond), cfg.TokenLimit)}
}

func (t *tokenBucketLimiter) Allow() (bool, time.Duration) {
	r := t.rl.Reserve()
	if !r.OK() {
		return false, 0
	}
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// slidingWindowLimiter keeps a timestamp per permit granted in the last
// window and evicts stale ones on every call.
type slidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   []time.Time
}

func newSlidingWindowLimiter(limit int, window time.Duration) *slidingWindowLimiter {
	return &slidingWindowLimiter{limit: limit, window: window}
}

func (s *slidingWindowLimiter) Allow() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-s.window)
	live := s.hits[:0]
	for _, h := range s.hits {
		if h.After(cutoff) {
			live = append(live, h)
		}
	}
	s.hits = live
	if len(s.hits) >= s.limit {
		retryAfter := s.hits[0].Add(s.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}
	s.hits = append(s.hits, now)
	return true, 0
}

// fixedWindowLimiter resets its counter at the start of each fixed
// window boundary.
type fixedWindowLimiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int
}

func newFixedWindowLimiter(limit int, window time.Duration) *fixedWindowLimiter {
	return &fixedWindowLimiter{limit: limit, window: window, windowStart: time.Now()}
}

func (f *fixedWindowLimiter) Allow() (bool, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	if now.Sub(f.windowStart) >= f.window {
		f.windowStart = now
		f.count = 0
	}
	if f.count >= f.limit {
		return false, f.windowStart.Add(f.window).Sub(now)
	}
	f.count++
	return true, 0
}

// concurrencyLimiter bounds the number of in-flight permits rather than
// a rate. Release must be called once per granted Allow; this package
// models "in-flight" at the scope of a single middleware Invoke, so a
// permit is always released immediately after the downstream call
// returns (see middleware.go).
type concurrencyLimiter struct {
	sem chan struct{}
}

func newConcurrencyLimiter(limit int) *concurrencyLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &concurrencyLimiter{sem: make(chan struct{}, limit)}
}

func (c *concurrencyLimiter) Allow() (bool, time.Duration) {
	select {
	case c.sem <- struct{}{}:
		return true, 0
	default:
		return false, 0
	}
}

func (c *concurrencyLimiter) release() {
	select {
	case <-c.sem:
	default:
	}
}
