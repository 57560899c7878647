package local

import (
	"context"
	"testing"

	"github.com/dispatchcore/dispatchcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_SendFansOutToEachEndpoint(t *testing.T) {
	d := dispatchcore.NewDispatcher()
	var invoked []string
	d.RegisterHandler("ProjectionA", func(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
		invoked = append(invoked, "ProjectionA")
		return dispatchcore.SuccessResult{}, nil
	})
	d.RegisterHandler("ProjectionB", func(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
		invoked = append(invoked, "ProjectionB")
		return dispatchcore.SuccessResult{}, nil
	})

	transport := New(d)
	msg := dispatchcore.NewBaseMessage("m-1", dispatchcore.Event, "OrderPlaced", map[string]any{"orderId": "o-1"})
	mc := dispatchcore.NewMessageContext(msg)

	err := transport.Send(context.Background(), []string{"ProjectionA", "ProjectionB"}, msg, mc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ProjectionA", "ProjectionB"}, invoked)
}

func TestTransport_SendDefaultsToMessageTypeWhenNoEndpoints(t *testing.T) {
	d := dispatchcore.NewDispatcher()
	called := false
	d.RegisterHandler("OrderPlaced", func(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
		called = true
		return dispatchcore.SuccessResult{}, nil
	})

	transport := New(d)
	msg := dispatchcore.NewBaseMessage("m-1", dispatchcore.Event, "OrderPlaced", nil)
	mc := dispatchcore.NewMessageContext(msg)

	err := transport.Send(context.Background(), nil, msg, mc)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTransport_SendPropagatesHandlerFailure(t *testing.T) {
	d := dispatchcore.NewDispatcher()
	d.RegisterHandler("Failing", func(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
		return dispatchcore.FailureResult{}, nil
	})

	transport := New(d)
	msg := dispatchcore.NewBaseMessage("m-1", dispatchcore.Event, "Source", nil)
	mc := dispatchcore.NewMessageContext(msg)

	err := transport.Send(context.Background(), []string{"Failing"}, msg, mc)
	assert.Error(t, err)
}
