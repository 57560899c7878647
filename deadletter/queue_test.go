package deadletter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReplayer struct {
	fail bool
}

func (r *stubReplayer) Replay(ctx context.Context, entry Entry) error {
	if r.fail {
		return errors.New("handler still failing")
	}
	return nil
}

func TestQueue_ReplaySucceeds(t *testing.T) {
	store := NewInMemoryStore()
	replayer := &stubReplayer{}
	q := NewQueue(store, replayer)

	id, err := q.Enqueue(context.Background(), Entry{MessageType: "OrderPlaced", Reason: MaxRetriesExceeded, ProcessingAttempts: 4})
	require.NoError(t, err)

	ok, err := q.Replay(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	entry, err := q.GetEntry(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.IsReplayed)
	assert.False(t, entry.ReplayedAt.IsZero())

	count, err := q.GetCount(context.Background(), PendingOnly())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestQueue_ReplayIsIdempotent(t *testing.T) {
	store := NewInMemoryStore()
	replayer := &stubReplayer{}
	q := NewQueue(store, replayer)

	id, err := q.Enqueue(context.Background(), Entry{MessageType: "OrderPlaced", Reason: MaxRetriesExceeded})
	require.NoError(t, err)

	ok, err := q.Replay(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = q.Replay(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	entry, err := q.GetEntry(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, entry.IsReplayed)
}

func TestQueue_ReplayFailureLeavesEntryPending(t *testing.T) {
	store := NewInMemoryStore()
	replayer := &stubReplayer{fail: true}
	q := NewQueue(store, replayer)

	id, err := q.Enqueue(context.Background(), Entry{MessageType: "OrderPlaced", Reason: MaxRetriesExceeded, ProcessingAttempts: 4})
	require.NoError(t, err)

	ok, err := q.Replay(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)

	entry, err := q.GetEntry(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, entry.IsReplayed)
	assert.Equal(t, 4, entry.ProcessingAttempts)
}

func TestQueue_PurgeRemovesEntry(t *testing.T) {
	store := NewInMemoryStore()
	q := NewQueue(store, nil)

	id, err := q.Enqueue(context.Background(), Entry{MessageType: "OrderPlaced"})
	require.NoError(t, err)

	ok, err := q.Purge(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	entry, err := q.GetEntry(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestNullDeadLetterQueue_IsAllNoop(t *testing.T) {
	id, err := NullDeadLetterQueue.Enqueue(context.Background(), Entry{})
	require.NoError(t, err)
	assert.Empty(t, id)

	entries, err := NullDeadLetterQueue.GetEntries(context.Background(), QueryFilter{}, 0)
	require.NoError(t, err)
	assert.Nil(t, entries)

	ok, err := NullDeadLetterQueue.Replay(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := NullDeadLetterQueue.GetCount(context.Background(), QueryFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
