package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string            `cbor:"1,keyasint"`
	Count uint64            `cbor:"2,keyasint"`
	Tags  map[string]uint32 `cbor:"3,keyasint,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	v := sample{Name: "x", Count: 3, Tags: map[string]uint32{"b": 2, "a": 1, "c": 3}}

	first, err := Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	var out sample
	require.NoError(t, Unmarshal(first, &out))
	assert.Equal(t, v, out)
}

func TestStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.Encode(sample{Name: "one"}))
	require.NoError(t, enc.Encode(sample{Name: "two"}))

	dec := NewDecoder(&buf)
	var a, b sample
	require.NoError(t, dec.Decode(&a))
	require.NoError(t, dec.Decode(&b))
	assert.Equal(t, "one", a.Name)
	assert.Equal(t, "two", b.Name)
}
