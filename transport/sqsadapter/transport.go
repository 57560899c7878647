package sqsadapter

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/dispatchcore/dispatchcore"
	"github.com/dispatchcore/dispatchcore/serializer"
)

// Transport implements transport.Transport by sending one SQS message
// per endpoint, where each endpoint is a queue URL.
type Transport struct {
	client     Client
	serializer serializer.Serializer
}

// NewTransport returns a Transport backed by client.
func NewTransport(client Client) *Transport {
	return &Transport{client: client, serializer: serializer.JSONSerializer{}}
}

// Send implements transport.Transport.
func (t *Transport) Send(ctx context.Context, endpoints []string, msg dispatchcore.Message, mc *dispatchcore.MessageContext) error {
	body, err := t.serializer.Serialize(msg.Body())
	if err != nil {
		return fmt.Errorf("sqsadapter: serialize body: %w", err)
	}
	envelope := Envelope{ID: msg.ID(), CorrelationID: msg.CorrelationID(), Type: msg.Type(), Body: body}
	encoded, err := t.serializer.Serialize(envelope)
	if err != nil {
		return fmt.Errorf("sqsadapter: serialize envelope: %w", err)
	}

	for _, queueURL := range endpoints {
		_, err := t.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(queueURL),
			MessageBody: aws.String(string(encoded)),
		})
		if err != nil {
			return fmt.Errorf("sqsadapter: send to %s: %w", queueURL, err)
		}
	}
	return nil
}
