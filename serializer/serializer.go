// Package serializer implements the Serializer collaborator interface
// from spec.md §6, used by the dead-letter poison handler to capture a
// message body and by security/signing to build a canonical byte
// representation for HMAC signing.
package serializer

import "encoding/json"

// Serializer converts a message body to and from a byte representation.
type Serializer interface {
	Serialize(body any) ([]byte, error)
	Deserialize(data []byte, out any) error
}

// JSONSerializer implements Serializer with encoding/json. Serialize
// produces a canonical encoding: map keys are sorted, so two values that
// are deeply equal always produce identical bytes regardless of
// insertion order, satisfying the determinism signing requires.
type JSONSerializer struct{}

// Serialize implements Serializer.
func (JSONSerializer) Serialize(body any) ([]byte, error) {
	canonical, err := toCanonicalForm(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(canonical)
}

// Deserialize implements Serializer.
func (JSONSerializer) Deserialize(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

// toCanonicalForm round-trips body through encoding/json into a
// map[string]any/[]any/scalar tree, which Go's json package then
// re-emits with sorted map keys.
func toCanonicalForm(body any) (any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}
