package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_DrainsQueueOnStop(t *testing.T) {
	store := NewInMemoryAuditStore()
	logger := NewLogger(store, WithBatchInterval(time.Hour), WithBatchSize(10))
	logger.Start()

	for i := 0; i < 25; i++ {
		logger.LogSecurityEvent(nil, AuthenticationFailure, "bad credentials", Medium, nil)
	}

	logger.Stop()
	assert.Equal(t, 25, store.Count(), "Stop must flush everything still queued regardless of the batch interval")
}

func TestLogger_DropsOldestOnOverflow(t *testing.T) {
	store := NewInMemoryAuditStore()
	logger := NewLogger(store, WithCapacity(5), WithBatchInterval(time.Hour))
	logger.Start()

	for i := 0; i < 8; i++ {
		logger.LogSecurityEvent(nil, SuspiciousActivity, "probe", Low, nil)
	}
	logger.Stop()

	assert.Equal(t, 5, store.Count())
	assert.Equal(t, int64(3), logger.DroppedCount())
}

func TestLogger_SilentlyDropsEventsAfterStop(t *testing.T) {
	store := NewInMemoryAuditStore()
	logger := NewLogger(store)
	logger.Start()
	logger.Stop()

	require.NotPanics(t, func() {
		logger.LogSecurityEvent(nil, AuthenticationFailure, "too late", Low, nil)
	})
	assert.Equal(t, 0, store.Count())
}

func TestLogger_BatchIntervalDrainsWithoutStop(t *testing.T) {
	store := NewInMemoryAuditStore()
	logger := NewLogger(store, WithBatchInterval(10*time.Millisecond), WithBatchSize(100))
	logger.Start()
	defer logger.Stop()

	logger.LogSecurityEvent(nil, AuthenticationSuccess, "ok", Low, nil)

	require.Eventually(t, func() bool {
		return store.Count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestLogger_FallsBackToPerItemStoreOnBatchFailure(t *testing.T) {
	store := &flakyStore{failBatchesRemaining: 1, inner: NewInMemoryAuditStore()}
	logger := NewLogger(store, WithBatchInterval(time.Hour), WithBatchSize(10))
	logger.Start()

	logger.LogSecurityEvent(nil, ValidationFailure, "bad payload", Medium, nil)
	logger.LogSecurityEvent(nil, ValidationFailure, "bad payload 2", Medium, nil)
	logger.Stop()

	assert.Equal(t, 2, store.inner.Count(), "per-item fallback must still persist every event from the failed batch")
}

type flakyStore struct {
	failBatchesRemaining int
	inner                *InMemoryAuditStore
}

func (f *flakyStore) StoreEvents(ctx context.Context, events []SecurityEvent) error {
	if f.failBatchesRemaining > 0 {
		f.failBatchesRemaining--
		return errors.New("batch store unavailable")
	}
	return f.inner.StoreEvents(ctx, events)
}

func (f *flakyStore) StoreEvent(ctx context.Context, event SecurityEvent) error {
	return f.inner.StoreEvent(ctx, event)
}
