package dispatchcore

import (
	"context"
	"fmt"
	"sync"
)

// Dispatcher routes a Message to its registered handler through the
// configured middleware Pipeline. It is safe for concurrent use: handler
// registration and middleware registration are expected at startup, but
// neither blocks concurrent Dispatch calls for longer than a map read.
//
// Grounded on the teacher's Router (registration under a single mutex,
// composition performed fresh on every Route call).
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	pipeline *Pipeline
}

// NewDispatcher returns a Dispatcher with an empty handler registry and
// pipeline.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		pipeline: NewPipeline(),
	}
}

// Use registers middleware on the dispatcher's pipeline. Concurrency-safe
// but intended to be called during startup before Dispatch is invoked
// concurrently, matching the teacher's Use contract.
func (d *Dispatcher) Use(mw ...Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pipeline.Use(mw...)
}

// RegisterHandler associates messageType with a handler. A later call
// for the same type overwrites the previous registration.
func (d *Dispatcher) RegisterHandler(messageType string, handler HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[messageType] = handler
}

// NewContext builds a fresh MessageContext for msg. Callers may also
// construct MessageContext directly when they need to pre-populate Items
// (e.g. a transport adapter placing a raw bearer token before Dispatch).
func (d *Dispatcher) NewContext(msg Message) *MessageContext {
	return NewMessageContext(msg)
}

// Dispatch runs msg through the middleware pipeline and the resolved
// handler, returning the final Result. A cancelled ctx short-circuits
// immediately with a CancelledResult and skips the pipeline entirely
// (spec.md §5: "the DLQ path is NOT taken for cancellations").
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, mc *MessageContext) (Result, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if mc == nil {
		return nil, ErrNilContext
	}
	if msg.Type() == "" {
		return nil, ErrEmptyMessageType
	}
	if err := ctx.Err(); err != nil {
		return CancelledResult{Cause: err}, nil
	}

	d.mu.RLock()
	pipeline := d.pipeline
	d.mu.RUnlock()

	chain := pipeline.Build(msg.Kind(), d.terminal)
	return chain(ctx, msg, mc)
}

// DispatchQuery runs a Query-kind message through the pipeline and
// extracts a typed value from the handler's SuccessResult, mirroring the
// spec's Dispatcher.Dispatch<TResult> operation. It returns an error if
// the dispatch did not succeed or the success value is not assignable
// to T.
func DispatchQuery[T any](ctx context.Context, d *Dispatcher, msg Message, mc *MessageContext) (T, Result, error) {
	var zero T
	result, err := d.Dispatch(ctx, msg, mc)
	if err != nil {
		return zero, result, err
	}
	if !result.Succeeded() {
		return zero, result, nil
	}
	success, ok := result.(SuccessResult)
	if !ok {
		return zero, result, fmt.Errorf("dispatchcore: query result %T is not a SuccessResult", result)
	}
	value, ok := success.Value.(T)
	if !ok {
		return zero, result, fmt.Errorf("dispatchcore: query result value %T does not match requested type", success.Value)
	}
	return value, result, nil
}

// terminal resolves and invokes the registered handler for msg.Type().
// A missing handler returns ErrHandlerNotFound so an error-handling
// middleware earlier in the chain (see deadletter.Middleware) can
// classify it and route to the dead-letter queue.
func (d *Dispatcher) terminal(ctx context.Context, msg Message, mc *MessageContext) (Result, error) {
	d.mu.RLock()
	handler, ok := d.handlers[msg.Type()]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, msg.Type())
	}
	return handler(ctx, msg, mc)
}
