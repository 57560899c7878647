// Package deadletter implements the error handling and dead-letter
// queue described in spec.md §4.F: poison detection, a poison handler,
// a DeadLetterQueue API, and a retry/backoff policy.
//
// Grounded on the teacher's FailureKind/Policy pair (failure.go,
// policy.go): Reason generalizes FailureKind to the dead-letter reason
// set, and RetryPolicy is grounded on the teacher's opposing
// ImmediateDeletePolicy/SQSRedrivePolicy strategies.
package deadletter

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Reason classifies why a message was moved to the dead-letter queue.
type Reason int

const (
	MaxRetriesExceeded Reason = iota
	CircuitBreakerOpen
	DeserializationFailed
	HandlerNotFound
	ValidationFailed
	ManualRejection
	MessageExpired
	AuthorizationFailed
	UnhandledException
	PoisonMessage
	UnknownReason Reason = 99
)

func (r Reason) String() string {
	switch r {
	case MaxRetriesExceeded:
		return "MaxRetriesExceeded"
	case CircuitBreakerOpen:
		return "CircuitBreakerOpen"
	case DeserializationFailed:
		return "DeserializationFailed"
	case HandlerNotFound:
		return "HandlerNotFound"
	case ValidationFailed:
		return "ValidationFailed"
	case ManualRejection:
		return "ManualRejection"
	case MessageExpired:
		return "MessageExpired"
	case AuthorizationFailed:
		return "AuthorizationFailed"
	case UnhandledException:
		return "UnhandledException"
	case PoisonMessage:
		return "PoisonMessage"
	default:
		return "Unknown"
	}
}

// Entry is a single dead-lettered message. It is created by the poison
// handler and mutated only by Replay (IsReplayed, ReplayedAt) or Purge
// (removal).
type Entry struct {
	ID                  string
	MessageType         string
	MessageID           string
	CorrelationID       string
	SourceQueue         string
	Body                []byte
	Metadata            map[string]string
	Reason              Reason
	ReasonText          string
	ExceptionDetails    string
	ProcessingAttempts  int
	FirstAttemptAt      time.Time
	LastAttemptAt       time.Time
	MovedToDeadLetterAt time.Time
	IsReplayed          bool
	ReplayedAt          time.Time

	// IntegrityHash chains this entry to the tenant's (or, with no
	// tenantId metadata, the store's) previously enqueued entry, set once
	// by Queue.Enqueue and never recomputed afterwards. VerifyIntegrity
	// walks the chain to detect entries whose immutable fields were
	// altered after the fact.
	IntegrityHash string
}

// computeIntegrityHash chains e onto prevHash, covering only the fields
// fixed at enqueue time — IsReplayed/ReplayedAt/LastAttemptAt mutate
// afterwards and are deliberately excluded so a replay never breaks the
// chain.
func computeIntegrityHash(prevHash string, e Entry) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte(e.ID))
	h.Write([]byte(e.MessageType))
	h.Write([]byte(e.Reason.String()))
	h.Write([]byte(e.MovedToDeadLetterAt.UTC().Format(time.RFC3339Nano)))
	h.Write(e.Body)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryFilter narrows GetEntries/GetCount/ReplayBatch results. A nil
// field means "don't filter on this dimension". Factory constructors
// (PendingOnly, ByMessageType, ...) set exactly one field.
type QueryFilter struct {
	MessageType   *string
	Reason        *Reason
	FromDate      *time.Time
	ToDate        *time.Time
	IsReplayed    *bool
	SourceQueue   *string
	CorrelationID *string
	MinAttempts   *int
	Skip          int
}

// PendingOnly returns a filter matching entries that have not been
// replayed.
func PendingOnly() QueryFilter {
	f := false
	return QueryFilter{IsReplayed: &f}
}

// ByMessageType returns a filter matching entries of messageType.
func ByMessageType(messageType string) QueryFilter {
	return QueryFilter{MessageType: &messageType}
}

// ByReason returns a filter matching entries with the given Reason.
func ByReason(reason Reason) QueryFilter {
	return QueryFilter{Reason: &reason}
}

// ByCorrelationID returns a filter matching entries sharing correlationID.
func ByCorrelationID(correlationID string) QueryFilter {
	return QueryFilter{CorrelationID: &correlationID}
}

func (f QueryFilter) matches(e Entry) bool {
	if f.MessageType != nil && e.MessageType != *f.MessageType {
		return false
	}
	if f.Reason != nil && e.Reason != *f.Reason {
		return false
	}
	if f.FromDate != nil && e.MovedToDeadLetterAt.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && e.MovedToDeadLetterAt.After(*f.ToDate) {
		return false
	}
	if f.IsReplayed != nil && e.IsReplayed != *f.IsReplayed {
		return false
	}
	if f.SourceQueue != nil && e.SourceQueue != *f.SourceQueue {
		return false
	}
	if f.CorrelationID != nil && e.CorrelationID != *f.CorrelationID {
		return false
	}
	if f.MinAttempts != nil && e.ProcessingAttempts < *f.MinAttempts {
		return false
	}
	return true
}

// Statistics summarizes the queue's contents as of the moment it was
// computed.
type Statistics struct {
	TotalCount        int
	RecentCount       int
	TimeWindow        time.Duration
	MessagesByType    map[string]int
	MessagesByReason  map[string]int
	OldestMessageDate time.Time
	NewestMessageDate time.Time
}
