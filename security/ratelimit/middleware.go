package ratelimit

import (
	"context"

	"github.com/dispatchcore/dispatchcore"
	"github.com/dispatchcore/dispatchcore/audit"
)

// AuditLogger is the subset of audit.Logger the middleware depends on.
type AuditLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, description string, severity audit.Severity, mc *dispatchcore.MessageContext)
}

// DefaultRateLimitKey is the bucket used when context.Items["TenantId"]
// is absent.
const DefaultRateLimitKey = "__default__"

// Middleware is the rate limiting stage from spec.md §4.E.3.
type Middleware struct {
	cfg      MiddlewareConfig
	registry *registry
	audit    AuditLogger
}

// NewMiddleware returns a rate limiting Middleware. auditLogger may be
// nil to disable audit emission.
func NewMiddleware(cfg MiddlewareConfig, auditLogger AuditLogger) *Middleware {
	return &Middleware{
		cfg:      cfg,
		registry: newRegistry(cfg.CleanupInterval, cfg.IdleTTL),
		audit:    auditLogger,
	}
}

// Stage implements dispatchcore.Middleware.
func (m *Middleware) Stage() dispatchcore.Stage { return dispatchcore.StageRateLimiting }

// ApplicableMessageKinds implements dispatchcore.Middleware.
func (m *Middleware) ApplicableMessageKinds() dispatchcore.Kind { return dispatchcore.AllKinds }

// Invoke implements dispatchcore.Middleware.
func (m *Middleware) Invoke(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, next dispatchcore.Next) (dispatchcore.Result, error) {
	if !m.cfg.Enabled {
		return next(ctx, msg, mc)
	}

	key := rateLimitKey(mc)
	cfg := m.cfg.configFor(key)
	lim := m.registry.get(key, func() limiter { return newLimiter(cfg) })

	allowed, retryAfter := lim.Allow()
	if !allowed {
		retryAfterMs := retryAfter.Milliseconds()
		if retryAfterMs <= 0 {
			retryAfterMs = m.cfg.DefaultRetryAfterMilliseconds
		}
		m.emit(ctx, mc)
		return dispatchcore.RateLimitExceededResult{RetryAfterMs: retryAfterMs}, nil
	}

	if cl, ok := lim.(*concurrencyLimiter); ok {
		defer cl.release()
	}
	return next(ctx, msg, mc)
}

// Dispose releases every cached limiter and stops the cleanup loop.
// Idempotent.
func (m *Middleware) Dispose() { m.registry.dispose() }

func (m *Middleware) emit(ctx context.Context, mc *dispatchcore.MessageContext) {
	if m.audit == nil {
		return
	}
	m.audit.LogSecurityEvent(ctx, audit.RateLimitExceededEvent, "rate limit exceeded", audit.Medium, mc)
}

func rateLimitKey(mc *dispatchcore.MessageContext) string {
	if mc == nil {
		return DefaultRateLimitKey
	}
	if key := mc.ItemString(dispatchcore.ItemTenantID); key != "" {
		return key
	}
	return DefaultRateLimitKey
}
