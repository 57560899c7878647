package deadletter

import (
	"context"
	"time"

	"github.com/dispatchcore/dispatchcore"
	"github.com/dispatchcore/dispatchcore/audit"
	"github.com/dispatchcore/dispatchcore/serializer"
)

// AuditLogger is the subset of audit.Logger the middleware depends on.
type AuditLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, description string, severity audit.Severity, mc *dispatchcore.MessageContext)
}

// Middleware is the error-handling stage from spec.md §4.F: it tracks
// per-message attempt counts in ctx.Items, runs a PoisonDetector chain
// on handler failure, and on a poison verdict serializes the message
// into a dead-letter Entry instead of letting the failure propagate.
//
// Grounded on the teacher's failure-classification-then-policy-dispatch
// shape (failure.go/policy.go): RetryPolicy plays the role of the
// teacher's Policy, and Reason plays the role of FailureKind.
type Middleware struct {
	detectors  PoisonDetector
	queue      *Queue
	serializer serializer.Serializer
	policy     RetryPolicy
	audit      AuditLogger
	capture    bool
}

// NewMiddleware returns a poison-handling Middleware. auditLogger may be
// nil. captureExceptionDetails mirrors spec.md's
// CaptureExceptionDetails toggle.
func NewMiddleware(detectors PoisonDetector, queue *Queue, policy RetryPolicy, auditLogger AuditLogger, captureExceptionDetails bool) *Middleware {
	return &Middleware{
		detectors:  detectors,
		queue:      queue,
		serializer: serializer.JSONSerializer{},
		policy:     policy,
		audit:      auditLogger,
		capture:    captureExceptionDetails,
	}
}

// Stage implements dispatchcore.Middleware.
func (m *Middleware) Stage() dispatchcore.Stage { return dispatchcore.StageErrorHandling }

// ApplicableMessageKinds implements dispatchcore.Middleware.
func (m *Middleware) ApplicableMessageKinds() dispatchcore.Kind { return dispatchcore.AllKinds }

// Invoke implements dispatchcore.Middleware. It stamps attempt-tracking
// Items before delegating, then classifies the outcome on the way back
// up the chain.
func (m *Middleware) Invoke(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, next dispatchcore.Next) (dispatchcore.Result, error) {
	now := time.Now().UTC()
	attemptCount, _ := mc.Items[dispatchcore.ItemProcessingAttempts].(int)
	attemptCount++
	mc.Items[dispatchcore.ItemProcessingAttempts] = attemptCount
	if _, ok := mc.Items[dispatchcore.ItemFirstAttemptAt].(time.Time); !ok {
		mc.Items[dispatchcore.ItemFirstAttemptAt] = now
	}
	firstAttempt, _ := mc.Items[dispatchcore.ItemFirstAttemptAt].(time.Time)

	result, err := next(ctx, msg, mc)
	if err == nil && (result == nil || result.Succeeded()) {
		return result, err
	}
	if _, cancelled := result.(dispatchcore.CancelledResult); cancelled {
		return result, err
	}

	attempts := Attempts{
		Count:          attemptCount,
		FirstAttemptAt: firstAttempt,
		LastAttemptAt:  now,
		LastError:      err,
	}
	verdict := m.detectors.Detect(msg.Type(), attempts)
	if !verdict.IsPoison {
		if m.policy.ShouldRetry(attemptCount, err) {
			return result, err
		}
		verdict = DetectionResult{IsPoison: true, Reason: UnhandledException, DetectorName: "retry-policy-exhausted"}
	}

	entryID, storeErr := m.moveToDeadLetter(ctx, msg, mc, verdict, attempts, err)
	if storeErr != nil {
		// Store failed; rethrow so the message can be retried later.
		return result, err
	}
	if m.audit != nil {
		m.audit.LogSecurityEvent(ctx, audit.MessageDeadLettered, "message moved to dead-letter queue: "+verdict.Reason.String(), audit.Medium, mc)
	}
	return dispatchcore.DeadLetteredResult{EntryID: entryID, Reason: verdict.Reason.String()}, nil
}

func (m *Middleware) moveToDeadLetter(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, verdict DetectionResult, attempts Attempts, handlerErr error) (string, error) {
	body, serr := m.serializer.Serialize(msg.Body())
	if serr != nil {
		body = nil
	}
	metadata := make(map[string]string, len(mc.Items))
	for k, v := range mc.Items {
		if s, ok := v.(string); ok {
			metadata[k] = s
		}
	}

	exceptionDetails := ""
	if m.capture && handlerErr != nil {
		exceptionDetails = handlerErr.Error()
	}

	entry := Entry{
		MessageType:         msg.Type(),
		MessageID:           mc.MessageID,
		CorrelationID:       mc.CorrelationID,
		SourceQueue:         mc.ItemString(dispatchcore.ItemSourceQueue),
		Body:                body,
		Metadata:            metadata,
		Reason:              verdict.Reason,
		ReasonText:          verdict.DetectorName,
		ExceptionDetails:    exceptionDetails,
		ProcessingAttempts:  attempts.Count,
		FirstAttemptAt:      attempts.FirstAttemptAt,
		LastAttemptAt:       attempts.LastAttemptAt,
		MovedToDeadLetterAt: time.Now().UTC(),
	}
	return m.queue.Enqueue(ctx, entry)
}
