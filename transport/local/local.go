// Package local implements an in-process transport.Transport that
// redelivers a message to other locally registered handlers, for
// same-process fan-out (e.g. an event routed to several local
// projections) without an external broker.
package local

import (
	"context"
	"fmt"

	"github.com/dispatchcore/dispatchcore"
)

// Dispatcher is the subset of *dispatchcore.Dispatcher the local
// transport needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error)
}

// Transport re-dispatches msg once per endpoint, treating each endpoint
// as the message type of a locally registered handler. It is the
// default transport named "local" by routing.Builder.
type Transport struct {
	dispatcher Dispatcher
}

// New returns a local Transport backed by dispatcher.
func New(dispatcher Dispatcher) *Transport {
	return &Transport{dispatcher: dispatcher}
}

// Send implements transport.Transport. Each endpoint is dispatched as
// its own message with msg's body and a fresh MessageContext carrying
// the same correlation id; the first error aborts remaining sends.
func (t *Transport) Send(ctx context.Context, endpoints []string, msg dispatchcore.Message, mc *dispatchcore.MessageContext) error {
	if len(endpoints) == 0 {
		endpoints = []string{msg.Type()}
	}
	for _, endpoint := range endpoints {
		fanned := dispatchcore.NewBaseMessage(msg.ID(), msg.Kind(), endpoint, msg.Body())
		fanned.Correlation = msg.CorrelationID()
		fannedCtx := dispatchcore.NewMessageContext(fanned)
		fannedCtx.TenantID = mc.TenantID
		result, err := t.dispatcher.Dispatch(ctx, fanned, fannedCtx)
		if err != nil {
			return fmt.Errorf("local transport: dispatch %s: %w", endpoint, err)
		}
		if result != nil && !result.Succeeded() {
			return fmt.Errorf("local transport: %s did not succeed", endpoint)
		}
	}
	return nil
}
