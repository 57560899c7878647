// Package audit implements the security event logger described in
// spec.md §4.G: a bounded queue-and-drain background pipeline that
// batches SecurityEvents to an AuditStore and, optionally, forwards them
// to a remote AuditExporter.
//
// Grounded on other_examples' global_audit_consumer.go: its
// Term()-vs-Nak() split between structurally unrecoverable and transient
// failures maps to Logger's batch-store-then-per-item-fallback behavior,
// and its use of go.uber.org/zap for structured logging is carried here
// as the package's ambient logger.
package audit

import "time"

// Severity classifies how serious a SecurityEvent is.
type Severity int

const (
	Low Severity = iota
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "Low"
	case Medium:
		return "Medium"
	case High:
		return "High"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// EventType enumerates the kinds of security-relevant decisions the core
// emits events for.
type EventType string

const (
	AuthenticationSuccess  EventType = "AuthenticationSuccess"
	AuthenticationFailure  EventType = "AuthenticationFailure"
	AuthorizationSuccess   EventType = "AuthorizationSuccess"
	AuthorizationFailure   EventType = "AuthorizationFailure"
	ValidationFailure      EventType = "ValidationFailure"
	InjectionAttempt       EventType = "InjectionAttempt"
	RateLimitExceededEvent EventType = "RateLimitExceeded"
	EncryptionFailure      EventType = "EncryptionFailure"
	DecryptionFailure      EventType = "DecryptionFailure"
	ConfigurationChange    EventType = "ConfigurationChange"
	CredentialRotation     EventType = "CredentialRotation"
	SuspiciousActivity     EventType = "SuspiciousActivity"
	SignatureVerification  EventType = "SignatureVerificationFailure"
	MessageDeadLettered    EventType = "MessageDeadLettered"
)

// SecurityEvent is immutable once enqueued.
type SecurityEvent struct {
	ID             string
	Timestamp      time.Time
	EventType      EventType
	Severity       Severity
	Description    string
	CorrelationID  string
	UserID         string
	SourceIP       string
	UserAgent      string
	MessageType    string
	AdditionalData map[string]any
}
