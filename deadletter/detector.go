package deadletter

import (
	"time"

	"github.com/sony/gobreaker"
)

// DetectionResult is the outcome of one PoisonDetector check.
type DetectionResult struct {
	IsPoison     bool
	Reason       Reason
	DetectorName string
	Details      map[string]any
}

// Attempts is the processing history a PoisonDetector inspects.
type Attempts struct {
	Count           int
	FirstAttemptAt  time.Time
	LastAttemptAt   time.Time
	LastError       error
	DeserializeFail bool
}

// PoisonDetector answers whether a message/attempt history should be
// treated as poison. Multiple detectors compose: the first
// IsPoison=true verdict wins.
type PoisonDetector interface {
	Detect(messageType string, attempts Attempts) DetectionResult
}

// DetectorChain runs detectors in order, short-circuiting on the first
// poison verdict.
type DetectorChain []PoisonDetector

// Detect implements PoisonDetector.
func (c DetectorChain) Detect(messageType string, attempts Attempts) DetectionResult {
	for _, d := range c {
		if res := d.Detect(messageType, attempts); res.IsPoison {
			return res
		}
	}
	return DetectionResult{}
}

// MaxRetriesDetector reports poison once Attempts.Count exceeds Max.
type MaxRetriesDetector struct {
	Max int
}

// Detect implements PoisonDetector.
func (d MaxRetriesDetector) Detect(messageType string, attempts Attempts) DetectionResult {
	if attempts.Count > d.Max {
		return DetectionResult{
			IsPoison:     true,
			Reason:       MaxRetriesExceeded,
			DetectorName: "max-retries-exceeded",
			Details:      map[string]any{"attempts": attempts.Count, "max": d.Max},
		}
	}
	return DetectionResult{}
}

// MessageAgeDetector reports poison once the first attempt is older
// than MaxAge.
type MessageAgeDetector struct {
	MaxAge time.Duration
}

// Detect implements PoisonDetector.
func (d MessageAgeDetector) Detect(messageType string, attempts Attempts) DetectionResult {
	if attempts.FirstAttemptAt.IsZero() {
		return DetectionResult{}
	}
	if time.Since(attempts.FirstAttemptAt) > d.MaxAge {
		return DetectionResult{
			IsPoison:     true,
			Reason:       MessageExpired,
			DetectorName: "message-age-exceeded",
			Details:      map[string]any{"age": time.Since(attempts.FirstAttemptAt).String()},
		}
	}
	return DetectionResult{}
}

// RepeatedDeserializationFailureDetector reports poison when every
// observed attempt failed to deserialize.
type RepeatedDeserializationFailureDetector struct {
	MinAttempts int
}

// Detect implements PoisonDetector.
func (d RepeatedDeserializationFailureDetector) Detect(messageType string, attempts Attempts) DetectionResult {
	if attempts.DeserializeFail && attempts.Count >= d.MinAttempts {
		return DetectionResult{
			IsPoison:     true,
			Reason:       DeserializationFailed,
			DetectorName: "repeated-deserialization-failure",
		}
	}
	return DetectionResult{}
}

// CircuitBreakerDetector wraps one gobreaker.CircuitBreaker per message
// type and reports poison while the breaker for attempts' message type
// is open.
type CircuitBreakerDetector struct {
	breakers map[string]*gobreaker.CircuitBreaker
	newBreaker func(messageType string) *gobreaker.CircuitBreaker
}

// NewCircuitBreakerDetector returns a CircuitBreakerDetector that lazily
// creates one breaker per message type using settings.
func NewCircuitBreakerDetector(settings func(messageType string) gobreaker.Settings) *CircuitBreakerDetector {
	return &CircuitBreakerDetector{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		newBreaker: func(messageType string) *gobreaker.CircuitBreaker {
			return gobreaker.NewCircuitBreaker(settings(messageType))
		},
	}
}

func (d *CircuitBreakerDetector) breakerFor(messageType string) *gobreaker.CircuitBreaker {
	b, ok := d.breakers[messageType]
	if !ok {
		b = d.newBreaker(messageType)
		d.breakers[messageType] = b
	}
	return b
}

// RecordResult feeds the outcome of a handler invocation into the
// breaker for messageType, tripping it on repeated failures.
func (d *CircuitBreakerDetector) RecordResult(messageType string, err error) {
	breaker := d.breakerFor(messageType)
	_, _ = breaker.Execute(func() (any, error) { return nil, err })
}

// Detect implements PoisonDetector.
func (d *CircuitBreakerDetector) Detect(messageType string, attempts Attempts) DetectionResult {
	if d.breakerFor(messageType).State() == gobreaker.StateOpen {
		return DetectionResult{
			IsPoison:     true,
			Reason:       CircuitBreakerOpen,
			DetectorName: "circuit-breaker-open",
		}
	}
	return DetectionResult{}
}
