package sqsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/dispatchcore"
)

type fakeClient struct {
	messages []types.Message
	received bool
	deleted  []string
	sent     []string
}

func (f *fakeClient) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if f.received {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.received = true
	return &sqs.ReceiveMessageOutput{Messages: f.messages}, nil
}

func (f *fakeClient) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, *params.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, *params.MessageBody)
	return &sqs.SendMessageOutput{}, nil
}

type orderPlaced struct {
	OrderID string `json:"orderId"`
}

func orderPlacedDecoder() *DecoderRegistry {
	decoders := NewDecoderRegistry()
	decoders.Register("OrderPlaced", func(raw json.RawMessage) (any, error) {
		var v orderPlaced
		err := json.Unmarshal(raw, &v)
		return v, err
	})
	return decoders
}

func TestProducer_DeletesMessageOnSuccessfulDispatch(t *testing.T) {
	body, _ := json.Marshal(orderPlaced{OrderID: "o-1"})
	envelope, _ := json.Marshal(Envelope{ID: "m-1", Type: "OrderPlaced", Body: body})
	envelopeStr := string(envelope)

	client := &fakeClient{messages: []types.Message{{Body: &envelopeStr, ReceiptHandle: strPtr("r-1")}}}

	d := dispatchcore.NewDispatcher()
	handled := make(chan struct{}, 1)
	d.RegisterHandler("OrderPlaced", func(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
		handled <- struct{}{}
		return dispatchcore.SuccessResult{}, nil
	})

	producer := NewProducer(client, "queue-1", d, orderPlacedDecoder(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go producer.Start(ctx)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}
	cancel()

	require.Eventually(t, func() bool { return len(client.deleted) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "r-1", client.deleted[0])
}

func TestProducer_DoesNotDeleteOnDispatchError(t *testing.T) {
	body, _ := json.Marshal(orderPlaced{OrderID: "o-1"})
	envelope, _ := json.Marshal(Envelope{ID: "m-1", Type: "OrderPlaced", Body: body})
	envelopeStr := string(envelope)

	client := &fakeClient{messages: []types.Message{{Body: &envelopeStr, ReceiptHandle: strPtr("r-1")}}}

	d := dispatchcore.NewDispatcher()
	d.RegisterHandler("OrderPlaced", func(ctx context.Context, msg dispatchcore.Message, mc *dispatchcore.MessageContext) (dispatchcore.Result, error) {
		return nil, errors.New("downstream still failing")
	})

	producer := NewProducer(client, "queue-1", d, orderPlacedDecoder(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	producer.Start(ctx)

	assert.Empty(t, client.deleted)
}

func strPtr(s string) *string { return &s }
