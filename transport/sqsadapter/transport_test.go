package sqsadapter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/dispatchcore"
)

func TestTransport_SendEncodesOneEnvelopePerEndpoint(t *testing.T) {
	client := &fakeClient{}
	transport := NewTransport(client)

	msg := dispatchcore.NewBaseMessage("m-1", dispatchcore.Event, "OrderPlaced", orderPlaced{OrderID: "o-1"})
	mc := dispatchcore.NewMessageContext(msg)

	err := transport.Send(context.Background(), []string{"queue-a", "queue-b"}, msg, mc)
	require.NoError(t, err)
	require.Len(t, client.sent, 2)

	var envelope Envelope
	require.NoError(t, json.Unmarshal([]byte(client.sent[0]), &envelope))
	assert.Equal(t, "OrderPlaced", envelope.Type)
	assert.Equal(t, "m-1", envelope.ID)

	var body orderPlaced
	require.NoError(t, json.Unmarshal(envelope.Body, &body))
	assert.Equal(t, "o-1", body.OrderID)
}

func TestDecoderRegistry_UnknownTypeErrors(t *testing.T) {
	decoders := NewDecoderRegistry()
	_, err := decoders.Decode(Envelope{Type: "Unregistered"})
	assert.Error(t, err)
}
