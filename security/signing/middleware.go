package signing

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

// Middleware is the message signing stage from spec.md §4.E.4.
type Middleware struct {
	cfg        Config
	keys       KeyProvider
	serializer serializer.Serializer
	audit      AuditLogger
}

// NewMiddleware returns a signing Middleware. auditLogger may be nil.
func NewMiddleware(cfg Config, keys KeyProvider, auditLogger AuditLogger) *Middleware {
	return &Middleware{cfg: cfg, keys: keys, serializer: serializer.JSONSerializer{}, audit: auditLogger}
}

// Stage implements dispatchcore.Middleware.
func (m *Middleware) Stage() dispatchcore.Stage { return dispatchcore.StageCustom }

// ApplicableMessageKinds implements dispatchcore.Middleware.
func (m *Middleware) ApplicableMessageKinds() dispatchcore.Kind { return dispatchcore.AllKinds }

// Invoke implements dispatchcore.Middleware.
func (m *Middleware) Invoke(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, next dispatchcore.Next) (dispatchcore.Result, error) {
	direction := mc.ItemString(dispatchcore.ItemMessageDirection)
	if direction == dispatchcore.DirectionOutgoing {
		return m.invokeOutgoing(ctx, msg, mc, next)
	}
	return m.invokeIncoming(ctx, msg, mc, next)
}

func (m *Middleware) invokeOutgoing(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, next dispatchcore.Next) (dispatchcore.Result, error) {
	result, err := next(ctx, msg, mc)
	if err != nil || result == nil || !result.Succeeded() {
		return result, err
	}

	tenantID := mc.PropertyString(dispatchcore.PropertyTenantID)
	alg := m.cfg.algorithmFor(tenantID)
	key, kerr := m.keys.GetKey(ctx, m.cfg.KeyID, m.cfg.Purpose, tenantID)
	if kerr != nil {
		m.emit(ctx, mc, "signing key retrieval failed: "+kerr.Error())
		return dispatchcore.FailureResult{Problem: dispatchcore.ProblemDetails{Title: "signing failed", Detail: kerr.Error()}}, nil
	}

	canonical, serr := m.serializer.Serialize(msg.Body())
	if serr != nil {
		return nil, serr
	}
	sig, serr := computeSignature(alg, m.cfg.Format, key, canonical)
	if serr != nil {
		return nil, serr
	}

	mc.Properties[dispatchcore.PropertyMessageSignature] = sig
	mc.Properties[dispatchcore.PropertySignatureAlgorithm] = string(alg)
	mc.Properties[dispatchcore.PropertySignedAt] = time.Now().UTC()
	return result, nil
}

func (m *Middleware) invokeIncoming(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, next dispatchcore.Next) (dispatchcore.Result, error) {
	sig := mc.ItemString(dispatchcore.ItemMessageSignature)
	if sig == "" {
		if m.cfg.RequireValidSignature {
			m.emit(ctx, mc, "signed message required but no signature present")
			return dispatchcore.FailureResult{Problem: dispatchcore.ProblemDetails{Title: "signature required"}}, nil
		}
		return next(ctx, msg, mc)
	}

	if signedAt, ok := mc.Items["SignedAt"].(time.Time); ok {
		if time.Since(signedAt) > m.cfg.MaxSignatureAge {
			m.emit(ctx, mc, "signature is stale")
			return dispatchcore.FailureResult{Problem: dispatchcore.ProblemDetails{Title: "signature stale"}}, nil
		}
	}

	tenantID := mc.PropertyString(dispatchcore.PropertyTenantID)
	alg := m.cfg.algorithmFor(tenantID)
	canonical, serr := m.serializer.Serialize(msg.Body())
	if serr != nil {
		return nil, serr
	}

	key, kerr := m.keys.GetKey(ctx, m.cfg.KeyID, m.cfg.Purpose, tenantID)
	if kerr != nil {
		m.emit(ctx, mc, "signature verification key retrieval failed: "+kerr.Error())
		return dispatchcore.FailureResult{Problem: dispatchcore.ProblemDetails{Title: "signature verification failed"}}, nil
	}

	valid, verr := verifySignature(alg, m.cfg.Format, key, canonical, sig)
	if verr != nil || !valid {
		m.emit(ctx, mc, "signature mismatch")
		return dispatchcore.FailureResult{Problem: dispatchcore.ProblemDetails{Title: "signature verification failed"}}, nil
	}

	return next(ctx, msg, mc)
}

func (m *Middleware) emit(ctx context.Context, mc *dispatchcore.MessageContext, description string) {
	if m.audit == nil {
		return
	}
	m.audit.LogSecurityEvent(ctx, audit.SignatureVerification, description, audit.High, mc)
}
