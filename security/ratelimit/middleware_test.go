package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/dispatchcore/dispatchcore"
	"github.com/dispatchcore/dispatchcore/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminalOK(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
	return dispatchcore.SuccessResult{}, nil
}

func newMessageContext(tenant string) *dispatchcore.MessageContext {
	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc := dispatchcore.NewMessageContext(msg)
	if tenant != "" {
		mc.Items[dispatchcore.ItemTenantID] = tenant
	}
	return mc
}

// S2: TokenLimit=2 for a single key; the third call within the
// replenishment period is denied.
func TestRateLimit_S2_TokenBucketDeniesOverCapacity(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.Default = Config{Algorithm: TokenBucket, TokenLimit: 2, TokensPerPeriod: 2, ReplenishmentPeriodSeconds: 60}
	mw := NewMiddleware(cfg, nil)
	defer mw.Dispose()

	mc := newMessageContext("tenant-a")
	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)

	r1, _ := mw.Invoke(context.Background(), msg, mc, terminalOK)
	r2, _ := mw.Invoke(context.Background(), msg, mc, terminalOK)
	r3, _ := mw.Invoke(context.Background(), msg, mc, terminalOK)

	assert.True(t, r1.Succeeded())
	assert.True(t, r2.Succeeded())
	require.False(t, r3.Succeeded())
	_, ok := r3.(dispatchcore.RateLimitExceededResult)
	assert.True(t, ok)
}

func TestRateLimit_KeyedPerTenantIndependently(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.Default = Config{Algorithm: TokenBucket, TokenLimit: 1, TokensPerPeriod: 1, ReplenishmentPeriodSeconds: 60}
	mw := NewMiddleware(cfg, nil)
	defer mw.Dispose()

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mcA := newMessageContext("tenant-a")
	mcB := newMessageContext("tenant-b")

	rA1, _ := mw.Invoke(context.Background(), msg, mcA, terminalOK)
	rA2, _ := mw.Invoke(context.Background(), msg, mcA, terminalOK)
	rB1, _ := mw.Invoke(context.Background(), msg, mcB, terminalOK)

	assert.True(t, rA1.Succeeded())
	assert.False(t, rA2.Succeeded())
	assert.True(t, rB1.Succeeded(), "a different tenant's bucket must be independent")
}

func TestRateLimit_MissingTenantFallsBackToDefaultKey(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.Default = Config{Algorithm: TokenBucket, TokenLimit: 1, TokensPerPeriod: 1, ReplenishmentPeriodSeconds: 60}
	mw := NewMiddleware(cfg, nil)
	defer mw.Dispose()

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc1 := newMessageContext("")
	mc2 := newMessageContext("")

	r1, _ := mw.Invoke(context.Background(), msg, mc1, terminalOK)
	r2, _ := mw.Invoke(context.Background(), msg, mc2, terminalOK)

	assert.True(t, r1.Succeeded())
	assert.False(t, r2.Succeeded(), "two contextless dispatches must share the __default__ bucket")
}

func TestRateLimit_FixedWindowResetsAfterWindow(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.Default = Config{Algorithm: FixedWindow, PermitLimit: 1, WindowSeconds: 0}
	mw := NewMiddleware(cfg, nil)
	defer mw.Dispose()

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc := newMessageContext("tenant-a")

	r1, _ := mw.Invoke(context.Background(), msg, mc, terminalOK)
	time.Sleep(time.Millisecond)
	r2, _ := mw.Invoke(context.Background(), msg, mc, terminalOK)

	assert.True(t, r1.Succeeded())
	assert.True(t, r2.Succeeded(), "a zero-length window must roll over on the next call")
}

func TestRateLimit_ConcurrencyLimiterReleasesAfterNext(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.Default = Config{Algorithm: Concurrency, ConcurrencyLimit: 1}
	mw := NewMiddleware(cfg, nil)
	defer mw.Dispose()

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc := newMessageContext("tenant-a")

	r1, _ := mw.Invoke(context.Background(), msg, mc, terminalOK)
	r2, _ := mw.Invoke(context.Background(), msg, mc, terminalOK)

	assert.True(t, r1.Succeeded())
	assert.True(t, r2.Succeeded(), "the permit must be released once the downstream call returns")
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	cfg := DefaultMiddlewareConfig()
	cfg.Enabled = false
	cfg.Default = Config{Algorithm: TokenBucket, TokenLimit: 0, TokensPerPeriod: 0, ReplenishmentPeriodSeconds: 1}
	mw := NewMiddleware(cfg, nil)
	defer mw.Dispose()

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc := newMessageContext("tenant-a")

	res, _ := mw.Invoke(context.Background(), msg, mc, terminalOK)
	assert.True(t, res.Succeeded())
}

type recordingAuditLogger struct {
	calls    int
	severity audit.Severity
}

func (r *recordingAuditLogger) LogSecurityEvent(ctx context.Context, eventType audit.EventType, description string, severity audit.Severity, mc *dispatchcore.MessageContext) {
	r.calls++
	r.severity = severity
}

func TestRateLimit_EmitsMediumAuditEventOnDenial(t *testing.T) {
	rec := &recordingAuditLogger{}
	cfg := DefaultMiddlewareConfig()
	cfg.Default = Config{Algorithm: TokenBucket, TokenLimit: 1, TokensPerPeriod: 1, ReplenishmentPeriodSeconds: 60}
	mw := NewMiddleware(cfg, rec)
	defer mw.Dispose()

	msg := dispatchcore.NewBaseMessage("1", dispatchcore.Action, "OrderCreated", nil)
	mc := newMessageContext("tenant-a")

	_, _ = mw.Invoke(context.Background(), msg, mc, terminalOK)
	_, _ = mw.Invoke(context.Background(), msg, mc, terminalOK)

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, audit.Medium, rec.severity)
}
