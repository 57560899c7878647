// Package transport defines the outbound send contract routing resolves
// to, and a Registry dispatching a RoutingDecision to the named
// Transport (spec.md §4.D: "the selected transport performs the send").
package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/dispatchcore/dispatchcore"
	"github.com/dispatchcore/dispatchcore/routing"
)

// Transport sends msg to endpoints, however "endpoint" is meaningful for
// the concrete transport (a queue name, a URL, a local handler key).
type Transport interface {
	Send(ctx context.Context, endpoints []string, msg dispatchcore.Message, mc *dispatchcore.MessageContext) error
}

// Registry maps transport names (as produced by routing.Engine) to
// concrete Transport implementations.
type Registry struct {
	mu    sync.RWMutex
	named map[string]Transport
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{named: make(map[string]Transport)}
}

// Register associates name with t, overwriting any previous registration.
func (r *Registry) Register(name string, t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[name] = t
}

// Send resolves decision.Transport and forwards to it. Returns
// dispatchcore.ErrNoTransport if no transport is registered under that
// name.
func (r *Registry) Send(ctx context.Context, decision routing.RoutingDecision, msg dispatchcore.Message, mc *dispatchcore.MessageContext) error {
	r.mu.RLock()
	t, ok := r.named[decision.Transport]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", dispatchcore.ErrNoTransport, decision.Transport)
	}
	return t.Send(ctx, decision.Endpoints, msg, mc)
}
