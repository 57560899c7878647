// Package ratelimit implements the rate limiting middleware from
// spec.md §4.E.3: a token-bucket, sliding-window, fixed-window, or
// concurrency limiter chosen by configuration, keyed per tenant.
//
// Grounded on other_examples/sawpanic-cryptorun's go.mod for
// golang.org/x/time/rate as the pack's only rate-limiting dependency;
// the window and concurrency algorithms have no ecosystem counterpart in
// the retrieval pack and are hand-rolled (documented in DESIGN.md).
package ratelimit

import "time"

// Algorithm selects which limiting strategy a Config uses.
type Algorithm int

const (
	TokenBucket Algorithm = iota
	SlidingWindow
	FixedWindow
	Concurrency
)

// Config controls the limiter created for one rate-limit key.
type Config struct {
	Algorithm Algorithm

	// Token bucket.
	TokenLimit                 int
	TokensPerPeriod            int
	ReplenishmentPeriodSeconds int

	// Sliding/fixed window.
	PermitLimit   int
	WindowSeconds int

	// Concurrency.
	ConcurrencyLimit int

	// QueueLimit is not read by any limiter: a denied request is always
	// rejected immediately, as with QueueLimit=0.
	QueueLimit int
}

// MiddlewareConfig controls the Middleware as a whole.
type MiddlewareConfig struct {
	Enabled bool
	Default Config

	// TenantOverrides maps a rate-limit key (see keyFor) to a Config
	// that replaces Default for that key.
	TenantOverrides map[string]Config

	// DefaultRetryAfterMilliseconds is used when a limiter cannot
	// estimate a more precise retry-after value.
	DefaultRetryAfterMilliseconds int64

	// CleanupInterval bounds how often idle cached limiters are swept.
	CleanupInterval time.Duration
	// IdleTTL is how long a limiter may sit unused before cleanup
	// reclaims it.
	IdleTTL time.Duration
}

// DefaultMiddlewareConfig returns a token-bucket MiddlewareConfig with a
// capacity of 100, replenished fully every second.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		Enabled: true,
		Default: Config{
			Algorithm:                  TokenBucket,
			TokenLimit:                 100,
			TokensPerPeriod:            100,
			ReplenishmentPeriodSeconds: 1,
		},
		TenantOverrides:                make(map[string]Config),
		DefaultRetryAfterMilliseconds: 1000,
		CleanupInterval:                time.Minute,
		IdleTTL:                        10 * time.Minute,
	}
}

func (mc MiddlewareConfig) configFor(key string) Config {
	if cfg, ok := mc.TenantOverrides[key]; ok {
		return cfg
	}
	return mc.Default
}
