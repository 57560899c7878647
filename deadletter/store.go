package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the DeadLetterStore §6 collaborator interface.
type Store interface {
	Store(ctx context.Context, entry Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	Query(ctx context.Context, filter QueryFilter) ([]Entry, error)
	// GetMessages returns the entries matching filter with
	// ExceptionDetails stripped, for callers that want the dead-lettered
	// message bodies without the diagnostic trail Query exposes.
	GetMessages(ctx context.Context, filter QueryFilter) ([]Entry, error)
	Count(ctx context.Context, filter QueryFilter) (int, error)
	Update(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id string) error
	// VerifyIntegrity walks the IntegrityHash chain of every entry moved
	// to the dead-letter queue on or before to, reporting whether every
	// entry whose MovedToDeadLetterAt falls within [from, to] still
	// matches its chained hash.
	VerifyIntegrity(ctx context.Context, from, to time.Time) (bool, error)
	// GetLast returns the most recently enqueued entry, or nil if none
	// exist. If tenantID is non-empty, only entries whose
	// Metadata["tenantId"] equals tenantID are considered.
	GetLast(ctx context.Context, tenantID string) (*Entry, error)
}

// InMemoryStore is a Store backed by a mutex-guarded map. Safe for
// concurrent use.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMemoryStore returns an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]Entry)}
}

// Store implements Store.
func (s *InMemoryStore) Store(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	return nil
}

// GetByID implements Store.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Query implements Store.
func (s *InMemoryStore) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MovedToDeadLetterAt.Before(out[j].MovedToDeadLetterAt)
	})
	if filter.Skip > 0 && filter.Skip < len(out) {
		out = out[filter.Skip:]
	} else if filter.Skip >= len(out) {
		out = nil
	}
	return out, nil
}

// GetMessages implements Store.
func (s *InMemoryStore) GetMessages(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	entries, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return stripExceptionDetails(entries), nil
}

// Count implements Store.
func (s *InMemoryStore) Count(ctx context.Context, filter QueryFilter) (int, error) {
	entries, err := s.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Update implements Store.
func (s *InMemoryStore) Update(ctx context.Context, entry Entry) error {
	return s.Store(ctx, entry)
}

// VerifyIntegrity implements Store.
func (s *InMemoryStore) VerifyIntegrity(ctx context.Context, from, to time.Time) (bool, error) {
	entries, err := s.Query(ctx, QueryFilter{ToDate: &to})
	if err != nil {
		return false, err
	}
	return verifyChain(entries, from), nil
}

// GetLast implements Store.
func (s *InMemoryStore) GetLast(ctx context.Context, tenantID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lastEntry(mapValues(s.entries), tenantID), nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// RedisStore persists entries as JSON in a Redis hash, exercising
// github.com/redis/go-redis/v9 as a durable side-store.
type RedisStore struct {
	client *redis.Client
	hash   string
}

// NewRedisStore returns a RedisStore storing entries in the Redis hash
// named hashKey.
func NewRedisStore(client *redis.Client, hashKey string) *RedisStore {
	return &RedisStore{client: client, hash: hashKey}
}

// Store implements Store.
func (s *RedisStore) Store(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}
	return s.client.HSet(ctx, s.hash, entry.ID, data).Err()
}

// GetByID implements Store.
func (s *RedisStore) GetByID(ctx context.Context, id string) (*Entry, error) {
	data, err := s.client.HGet(ctx, s.hash, id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch dead-letter entry: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal dead-letter entry: %w", err)
	}
	return &entry, nil
}

// Query implements Store.
func (s *RedisStore) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	raw, err := s.client.HGetAll(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("scan dead-letter hash: %w", err)
	}
	var out []Entry
	for _, data := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}
		if filter.matches(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MovedToDeadLetterAt.Before(out[j].MovedToDeadLetterAt)
	})
	if filter.Skip > 0 && filter.Skip < len(out) {
		out = out[filter.Skip:]
	} else if filter.Skip >= len(out) {
		out = nil
	}
	return out, nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context, filter QueryFilter) (int, error) {
	entries, err := s.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// GetMessages implements Store.
func (s *RedisStore) GetMessages(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	entries, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	return stripExceptionDetails(entries), nil
}

// Update implements Store.
func (s *RedisStore) Update(ctx context.Context, entry Entry) error {
	return s.Store(ctx, entry)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.HDel(ctx, s.hash, id).Err()
}

// VerifyIntegrity implements Store.
func (s *RedisStore) VerifyIntegrity(ctx context.Context, from, to time.Time) (bool, error) {
	entries, err := s.Query(ctx, QueryFilter{ToDate: &to})
	if err != nil {
		return false, err
	}
	return verifyChain(entries, from), nil
}

// GetLast implements Store.
func (s *RedisStore) GetLast(ctx context.Context, tenantID string) (*Entry, error) {
	entries, err := s.Query(ctx, QueryFilter{})
	if err != nil {
		return nil, err
	}
	return lastEntry(entries, tenantID), nil
}

// stripExceptionDetails returns a copy of entries with ExceptionDetails
// cleared, for GetMessages callers that want message bodies, not
// diagnostics.
func stripExceptionDetails(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		e.ExceptionDetails = ""
		out[i] = e
	}
	return out
}

// verifyChain recomputes the IntegrityHash chain over entries (sorted
// ascending by MovedToDeadLetterAt, up to and including "to") and
// reports whether every entry whose MovedToDeadLetterAt falls on or
// after from still matches its chained hash. Like Queue.Enqueue, an
// entry with Metadata["tenantId"] chains onto that tenant's previous
// entry and an entry without one chains onto the previous entry of any
// tenant. The chain always starts from the genuine first entry so a
// from in the middle of the chain still detects tampering with earlier
// entries reflected in later hashes.
func verifyChain(entries []Entry, from time.Time) bool {
	lastHash := ""
	tenantHash := make(map[string]string)
	ok := true
	for _, e := range entries {
		prevHash := lastHash
		tenant := e.Metadata["tenantId"]
		if tenant != "" {
			prevHash = tenantHash[tenant]
		}
		expected := computeIntegrityHash(prevHash, e)
		if !e.MovedToDeadLetterAt.Before(from) && expected != e.IntegrityHash {
			ok = false
		}
		if tenant != "" {
			tenantHash[tenant] = expected
		}
		lastHash = expected
	}
	return ok
}

// lastEntry returns the most recently moved-to-dead-letter entry among
// entries, optionally restricted to those tagged with tenantID in
// Metadata["tenantId"].
func lastEntry(entries []Entry, tenantID string) *Entry {
	var last *Entry
	for i := range entries {
		e := entries[i]
		if tenantID != "" && e.Metadata["tenantId"] != tenantID {
			continue
		}
		if last == nil || e.MovedToDeadLetterAt.After(last.MovedToDeadLetterAt) {
			copied := e
			last = &copied
		}
	}
	return last
}

// mapValues returns the values of m as a slice, in no particular order.
func mapValues(m map[string]Entry) []Entry {
	out := make([]Entry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	return out
}
