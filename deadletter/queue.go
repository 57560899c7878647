package deadletter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Replayer resolves entry's message type to a handler and re-dispatches
// it through the normal pipeline. Replay semantics (spec.md §4.F) leave
// attempt counting to the pipeline; Replayer only reports success/failure.
type Replayer interface {
	Replay(ctx context.Context, entry Entry) error
}

// QueueAPI is the DeadLetterQueue contract, implemented by both Queue
// and NullDeadLetterQueue.
type QueueAPI interface {
	Enqueue(ctx context.Context, entry Entry) (string, error)
	GetEntries(ctx context.Context, filter QueryFilter, limit int) ([]Entry, error)
	GetEntry(ctx context.Context, id string) (*Entry, error)
	Replay(ctx context.Context, id string) (bool, error)
	ReplayBatch(ctx context.Context, filter QueryFilter) (int, error)
	Purge(ctx context.Context, id string) (bool, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)
	GetCount(ctx context.Context, filter QueryFilter) (int, error)
	GetStatistics(ctx context.Context) (Statistics, error)
}

// Queue is the default QueueAPI implementation, backed by a Store and
// an optional Replayer.
type Queue struct {
	store    Store
	replayer Replayer
}

// NewQueue returns a Queue. replayer may be nil; Replay/ReplayBatch then
// always fail fast.
func NewQueue(store Store, replayer Replayer) *Queue {
	return &Queue{store: store, replayer: replayer}
}

// Enqueue implements QueueAPI. entry.ID is overwritten with a freshly
// generated id, and entry.IntegrityHash is chained onto the previously
// enqueued entry (scoped to entry.Metadata["tenantId"] when set) for
// Store.VerifyIntegrity.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) (string, error) {
	entry.ID = uuid.NewString()
	if entry.MovedToDeadLetterAt.IsZero() {
		entry.MovedToDeadLetterAt = time.Now().UTC()
	}
	prev, err := q.store.GetLast(ctx, entry.Metadata["tenantId"])
	if err != nil {
		return "", err
	}
	prevHash := ""
	if prev != nil {
		prevHash = prev.IntegrityHash
	}
	entry.IntegrityHash = computeIntegrityHash(prevHash, entry)
	if err := q.store.Store(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// GetEntries implements QueueAPI.
func (q *Queue) GetEntries(ctx context.Context, filter QueryFilter, limit int) ([]Entry, error) {
	entries, err := q.store.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// GetEntry implements QueueAPI.
func (q *Queue) GetEntry(ctx context.Context, id string) (*Entry, error) {
	return q.store.GetByID(ctx, id)
}

// Replay implements QueueAPI: fails fast if the entry is missing or no
// Replayer is configured; on successful replay, marks the entry
// IsReplayed=true with ReplayedAt=now. Replaying an already-replayed
// entry re-marks it (idempotent, satisfies testable property 14)
// without altering ProcessingAttempts.
func (q *Queue) Replay(ctx context.Context, id string) (bool, error) {
	if q.replayer == nil {
		return false, nil
	}
	entry, err := q.store.GetByID(ctx, id)
	if err != nil || entry == nil {
		return false, err
	}
	if err := q.replayer.Replay(ctx, *entry); err != nil {
		return false, nil
	}
	entry.IsReplayed = true
	entry.ReplayedAt = time.Now().UTC()
	if err := q.store.Update(ctx, *entry); err != nil {
		return false, err
	}
	return true, nil
}

// ReplayBatch implements QueueAPI, replaying every entry matching
// filter and returning the count that succeeded.
func (q *Queue) ReplayBatch(ctx context.Context, filter QueryFilter) (int, error) {
	entries, err := q.store.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	replayed := 0
	for _, e := range entries {
		ok, err := q.Replay(ctx, e.ID)
		if err != nil {
			return replayed, err
		}
		if ok {
			replayed++
		}
	}
	return replayed, nil
}

// Purge implements QueueAPI.
func (q *Queue) Purge(ctx context.Context, id string) (bool, error) {
	entry, err := q.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	if err := q.store.Delete(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// PurgeOlderThan implements QueueAPI, removing every entry whose
// MovedToDeadLetterAt is older than age and returning the count purged.
func (q *Queue) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age)
	entries, err := q.store.Query(ctx, QueryFilter{ToDate: &cutoff})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if err := q.store.Delete(ctx, e.ID); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// GetCount implements QueueAPI.
func (q *Queue) GetCount(ctx context.Context, filter QueryFilter) (int, error) {
	return q.store.Count(ctx, filter)
}

// GetStatistics implements QueueAPI. RecentCount and TimeWindow cover a
// fixed window of the last 24 hours.
func (q *Queue) GetStatistics(ctx context.Context) (Statistics, error) {
	entries, err := q.store.Query(ctx, QueryFilter{})
	if err != nil {
		return Statistics{}, err
	}
	window := 24 * time.Hour
	cutoff := time.Now().UTC().Add(-window)

	stats := Statistics{
		TimeWindow:       window,
		MessagesByType:   make(map[string]int),
		MessagesByReason: make(map[string]int),
	}
	for _, e := range entries {
		stats.TotalCount++
		stats.MessagesByType[e.MessageType]++
		stats.MessagesByReason[e.Reason.String()]++
		if e.MovedToDeadLetterAt.After(cutoff) {
			stats.RecentCount++
		}
		if stats.OldestMessageDate.IsZero() || e.MovedToDeadLetterAt.Before(stats.OldestMessageDate) {
			stats.OldestMessageDate = e.MovedToDeadLetterAt
		}
		if e.MovedToDeadLetterAt.After(stats.NewestMessageDate) {
			stats.NewestMessageDate = e.MovedToDeadLetterAt
		}
	}
	return stats, nil
}

// nullQueue is a QueueAPI that no-ops and returns zero/false/empty,
// satisfying spec.md §4.F's NullDeadLetterQueue singleton.
type nullQueue struct{}

// NullDeadLetterQueue is the process-wide no-op QueueAPI singleton.
var NullDeadLetterQueue QueueAPI = nullQueue{}

func (nullQueue) Enqueue(ctx context.Context, entry Entry) (string, error) { return "", nil }
func (nullQueue) GetEntries(ctx context.Context, filter QueryFilter, limit int) ([]Entry, error) {
	return nil, nil
}
func (nullQueue) GetEntry(ctx context.Context, id string) (*Entry, error)     { return nil, nil }
func (nullQueue) Replay(ctx context.Context, id string) (bool, error)        { return false, nil }
func (nullQueue) ReplayBatch(ctx context.Context, filter QueryFilter) (int, error) { return 0, nil }
func (nullQueue) Purge(ctx context.Context, id string) (bool, error)         { return false, nil }
func (nullQueue) PurgeOlderThan(ctx context.Context, age time.Duration) (int, error) {
	return 0, nil
}
func (nullQueue) GetCount(ctx context.Context, filter QueryFilter) (int, error) { return 0, nil }
func (nullQueue) GetStatistics(ctx context.Context) (Statistics, error)         { return Statistics{}, nil }
