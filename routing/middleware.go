package routing

import (
	"context"

	"github.com/dispatchcore/dispatchcore"
)

// PropertyRoutingDecision is the MessageContext.Properties key the
// routing middleware stores its RoutingDecision under for downstream
// middleware and transports to consume.
const PropertyRoutingDecision = "RoutingDecision"

// Middleware wraps an Engine as a dispatchcore.Middleware running in
// StageRouting. A failed routing decision short-circuits with a
// FailureResult; a successful one is attached to the context before
// calling next.
type Middleware struct {
	Engine *Engine
}

// NewMiddleware returns a routing Middleware backed by engine.
func NewMiddleware(engine *Engine) *Middleware { return &Middleware{Engine: engine} }

// Stage implements dispatchcore.Middleware.
func (m *Middleware) Stage() dispatchcore.Stage { return dispatchcore.StageRouting }

// ApplicableMessageKinds implements dispatchcore.Middleware.
func (m *Middleware) ApplicableMessageKinds() dispatchcore.Kind { return dispatchcore.AllKinds }

// Invoke implements dispatchcore.Middleware.
func (m *Middleware) Invoke(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext, next dispatchcore.Next) (dispatchcore.Result, error) {
	decision := m.Engine.DispatchRouter(msg, mc)
	if !decision.Ok {
		return dispatchcore.FailureResult{Problem: dispatchcore.ProblemDetails{
			Title:  "routing failed",
			Detail: decision.Reason,
		}}, nil
	}
	mc.Properties[PropertyRoutingDecision] = decision
	return next(ctx, msg, mc)
}
