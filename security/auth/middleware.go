package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dispatchcore/dispatchcore"
	"github.com/dispatchcore/dispatchcore/audit"
)

// AuditLogger is the subset of audit.Logger the middleware depends on,
// kept narrow so tests can supply a stub.
type AuditLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, description string, severity audit.Severity, mc *dispatchcore.MessageContext)
}

// Middleware is the JWT authentication stage from spec.md §4.E.1.
type Middleware struct {
	cfg   Config
	store CredentialStore
	audit AuditLogger
	keys  keyCache
}

// NewMiddleware returns an authentication Middleware. store may be nil
// when cfg.UseAsyncKeyRetrieval is false; auditLogger may be nil to
// disable audit emission.
func NewMiddleware(cfg Config, store CredentialStore, auditLogger AuditLogger) *Middleware {
	return &Middleware{cfg: cfg, store: store, audit: auditLogger}
}

// Stage implements dispatchcore.Middleware.
func (m *Middleware) Stage() dispatchcore.Stage { return dispatchcore.StageAuthentication }

// ApplicableMessageKinds implements dispatchcore.Middleware.
func (m *Middleware) ApplicableMessageKinds() dispatchcore.Kind {
	return dispatchcore.Action | dispatchcore.Event
}

// Invoke implements dispatchcore.Middleware.
func (m *Middleware) Invoke(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, next dispatchcore.Next) (dispatchcore.Result, error) {
	if !m.cfg.Enabled || m.cfg.isAnonymous(msg.Type()) {
		return next(ctx, msg, mc)
	}

	token := extractToken(msg, mc, m.cfg.TokenHeaderName)
	if token == "" {
		if !m.cfg.RequireAuthentication {
			return next(ctx, msg, mc)
		}
		m.emit(ctx, mc, audit.AuthenticationFailure, "missing bearer token", audit.High)
		return dispatchcore.AuthenticationFailedResult{Reason: dispatchcore.MissingToken}, nil
	}

	key, err := m.resolveKey(ctx)
	if err != nil {
		m.emit(ctx, mc, audit.AuthenticationFailure, "signing key unavailable: "+err.Error(), audit.High)
		return dispatchcore.AuthenticationFailedResult{Reason: dispatchcore.UnknownAuthError}, nil
	}

	principal, authErr := validateToken(m.cfg, key, token)
	if authErr.isError() {
		reason, desc := mapAuthError(authErr)
		m.emit(ctx, mc, audit.AuthenticationFailure, desc, audit.High)
		return dispatchcore.AuthenticationFailedResult{Reason: reason}, nil
	}

	mc.Properties[dispatchcore.PropertyPrincipal] = principal
	mc.Properties[dispatchcore.PropertyUserID] = principal.UserID
	mc.Properties[dispatchcore.PropertyUserName] = principal.UserName
	mc.Properties[dispatchcore.PropertyEmail] = principal.Email
	mc.Properties[dispatchcore.PropertyTenantID] = principal.TenantID
	mc.Properties[dispatchcore.PropertyRoles] = principal.Roles
	mc.Properties[dispatchcore.PropertyAuthenticatedAt] = time.Now().UTC()
	mc.Properties[dispatchcore.PropertyAuthenticationMethod] = "jwt"

	m.emit(ctx, mc, audit.AuthenticationSuccess, "token validated", audit.Low)
	return next(ctx, msg, mc)
}

func (m *Middleware) resolveKey(ctx context.Context) (any, error) {
	if !m.cfg.UseAsyncKeyRetrieval {
		if len(m.cfg.SigningKey) == 0 {
			return nil, ErrNoSigningKey
		}
		return decodeVerificationKey(m.cfg.SigningKey), nil
	}
	return m.keys.get(ctx, m.cfg, m.store)
}

func (m *Middleware) emit(ctx context.Context, mc *dispatchcore.MessageContext, eventType audit.EventType, description string, severity audit.Severity) {
	if m.audit == nil {
		return
	}
	m.audit.LogSecurityEvent(ctx, eventType, description, severity, mc)
}

func mapAuthError(e authError) (dispatchcore.AuthFailureReason, string) {
	switch e.reason {
	case tokenExpired:
		return dispatchcore.TokenExpired, "token expired"
	case validationError:
		return dispatchcore.ValidationError, "token failed signature/issuer/audience/claims validation"
	case invalidToken:
		return dispatchcore.InvalidToken, "token malformed"
	default:
		return dispatchcore.UnknownAuthError, "unknown authentication error"
	}
}

// extractToken implements spec.md §4.E.1's two-step extraction order:
// the dispatch context's raw token item first, then the message's
// Authorization-style header with optional "Bearer " stripping.
func extractToken(msg dispatchcore.Message, mc *dispatchcore.MessageContext, headerName string) string {
	if raw := mc.ItemString(dispatchcore.ItemTokenContextKey); raw != "" {
		return raw
	}
	hm, ok := msg.(dispatchcore.HasHeaders)
	if !ok {
		return ""
	}
	value, present := hm.Headers().Get(headerName)
	if !present {
		return ""
	}
	if strings.HasPrefix(value, "Bearer ") {
		return strings.TrimPrefix(value, "Bearer ")
	}
	return value
}
