package sqsadapter

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire shape a Producer expects on an SQS message body
// and a Transport writes when sending: an explicit message type alongside
// a raw JSON body, so the type can be resolved to a BodyDecoder before
// the body itself is unmarshalled. Grounded on the teacher's
// envelope-schema-then-payload-schema two-step validation in router.go,
// minus the JSON Schema layer (superseded here by security/validation).
type Envelope struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlationId"`
	Type          string          `json:"type"`
	Body          json.RawMessage `json:"body"`
}

// BodyDecoder unmarshals an Envelope's raw body into the concrete Go type
// a message type's handler expects.
type BodyDecoder func(raw json.RawMessage) (any, error)

// DecoderRegistry maps message types to BodyDecoders, mirroring the
// teacher's Register(messageType, messageVersion, handler) keying scheme
// without the version axis (messages here are routed by Type alone).
type DecoderRegistry struct {
	decoders map[string]BodyDecoder
}

// NewDecoderRegistry returns an empty DecoderRegistry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[string]BodyDecoder)}
}

// Register associates messageType with decoder.
func (r *DecoderRegistry) Register(messageType string, decoder BodyDecoder) {
	r.decoders[messageType] = decoder
}

// Decode resolves envelope.Type's decoder and applies it.
func (r *DecoderRegistry) Decode(envelope Envelope) (any, error) {
	decoder, ok := r.decoders[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("sqsadapter: no body decoder registered for message type %q", envelope.Type)
	}
	return decoder(envelope.Body)
}
