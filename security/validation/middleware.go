package validation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dispatchcore/dispatchcore"
	"github.com/dispatchcore/dispatchcore/audit"
)

// AuditLogger is the subset of audit.Logger the middleware depends on.
type AuditLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, description string, severity audit.Severity, mc *dispatchcore.MessageContext)
}

// Middleware is the input validation stage from spec.md §4.E.2.
type Middleware struct {
	cfg        Config
	validators []CustomValidator
	audit      AuditLogger
}

// NewMiddleware returns a validation Middleware running cfg's built-in
// checks followed by validators in order. auditLogger may be nil.
func NewMiddleware(cfg Config, auditLogger AuditLogger, validators ...CustomValidator) *Middleware {
	return &Middleware{cfg: cfg, validators: validators, audit: auditLogger}
}

// Stage implements dispatchcore.Middleware.
func (m *Middleware) Stage() dispatchcore.Stage { return dispatchcore.StageValidation }

// ApplicableMessageKinds implements dispatchcore.Middleware.
func (m *Middleware) ApplicableMessageKinds() dispatchcore.Kind { return dispatchcore.AllKinds }

// Invoke implements dispatchcore.Middleware.
func (m *Middleware) Invoke(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, next dispatchcore.Next) (dispatchcore.Result, error) {
	if !m.cfg.Enabled {
		return next(ctx, msg, mc)
	}

	var errs []string

	if m.cfg.RequireCorrelationID && msg.CorrelationID() == "" {
		errs = append(errs, "correlation id is required")
	}

	injectionHit := ""
	body := msg.Body()

	if m.cfg.MaxMessageSizeBytes > 0 {
		if encoded, err := json.Marshal(body); err == nil && len(encoded) > m.cfg.MaxMessageSizeBytes {
			errs = append(errs, fmt.Sprintf("message exceeds maximum size of %d bytes", m.cfg.MaxMessageSizeBytes))
		}
	}

	walkStrings(body, func(s string) {
		if m.cfg.MaxStringLength > 0 && len(s) > m.cfg.MaxStringLength {
			errs = append(errs, fmt.Sprintf("string field exceeds maximum length of %d", m.cfg.MaxStringLength))
		}
		if m.cfg.RejectControlCharacters && containsControlCharacter(s) {
			errs = append(errs, "string field contains control characters")
		}
		if m.cfg.DetectInjectionPatterns && injectionHit == "" {
			if hit := detectInjection(s); hit != "" {
				injectionHit = hit
				errs = append(errs, fmt.Sprintf("string field matches %s injection pattern", hit))
			}
		}
	})

	for _, validator := range m.validators {
		validationErrs, err := validator.Validate(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("custom validator failed: %w", err)
		}
		errs = append(errs, validationErrs...)
	}

	if len(errs) > 0 {
		severity := audit.Medium
		if injectionHit != "" {
			severity = audit.Critical
		}
		m.emit(ctx, mc, injectionHit, severity)
		return dispatchcore.InputValidationFailedResult{Errors: errs}, nil
	}

	return next(ctx, msg, mc)
}

func (m *Middleware) emit(ctx context.Context, mc *dispatchcore.MessageContext, injectionHit string, severity audit.Severity) {
	if m.audit == nil {
		return
	}
	eventType := audit.ValidationFailure
	description := "input validation failed"
	if injectionHit != "" {
		eventType = audit.InjectionAttempt
		description = "possible " + injectionHit + " injection attempt detected"
	}
	m.audit.LogSecurityEvent(ctx, eventType, description, severity, mc)
}
