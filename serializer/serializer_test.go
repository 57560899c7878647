package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSerializer_CanonicalFormIsOrderIndependent(t *testing.T) {
	s := JSONSerializer{}

	a, err := s.Serialize(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	b, err := s.Serialize(map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	s := JSONSerializer{}
	type payload struct {
		Name string `json:"name"`
		Qty  int    `json:"qty"`
	}

	data, err := s.Serialize(payload{Name: "Ada", Qty: 3})
	require.NoError(t, err)

	var out payload
	require.NoError(t, s.Deserialize(data, &out))
	assert.Equal(t, payload{Name: "Ada", Qty: 3}, out)
}
