package canonical

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSortsKeys(t *testing.T) {
	out, err := Encode(map[string]interface{}{"b": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(out))
}

func TestEncodeNestedOrdering(t *testing.T) {
	out, err := Encode(map[string]interface{}{
		"z": map[string]interface{}{"y": "v", "x": "w"},
		"a": []interface{}{3, 1, 2},
	})
	require.NoError(t, err)
	// Array order is preserved, object keys are sorted at every level.
	assert.Equal(t, `{"a":[3,1,2],"z":{"x":"w","y":"v"}}`, string(out))
}

func TestEncodeDeterministic(t *testing.T) {
	v := struct {
		B string         `json:"b"`
		A int            `json:"a"`
		M map[string]int `json:"m"`
	}{B: "x", A: 7, M: map[string]int{"k2": 2, "k1": 1}}

	first, err := Encode(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Encode(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncodeRejectsNaN(t *testing.T) {
	_, err := Encode(map[string]interface{}{"v": math.NaN()})
	require.Error(t, err)
	var encErr *EncodingError
	assert.True(t, errors.As(err, &encErr))
}

func TestHashMatchesEncodedBytes(t *testing.T) {
	v := map[string]interface{}{"day": "2025-09-01", "n": 3}
	enc, err := Encode(v)
	require.NoError(t, err)
	h, err := Hash(v)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(enc), h)
	assert.Len(t, h, 64)
}

func TestHashTextEmptyString(t *testing.T) {
	// SHA-256 of the empty string, the defined empty-tree root.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashText(""))
}

func TestHashIgnoresMapInsertionOrder(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": 2, "z": 3}
	b := map[string]interface{}{"z": 3, "y": 2, "x": 1}
	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}
