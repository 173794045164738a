package canonical

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalDeterministicKeyOrder(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"z": 1, "y": 2}}
	b := map[string]interface{}{"c": map[string]interface{}{"y": 2, "z": 1}, "a": 2, "b": 1}

	encA, err := Marshal(a)
	require.NoError(t, err)
	encB, err := Marshal(b)
	require.NoError(t, err)

	require.True(t, Equal(encA, encB), "canonical encodings of equal maps must be byte-identical regardless of insertion order")
}

func TestMarshalRejectsNonFiniteFloats(t *testing.T) {
	_, err := Marshal(map[string]interface{}{"v": math.NaN()})
	require.ErrorIs(t, err, ErrNonFinite)

	_, err = Marshal(map[string]interface{}{"v": math.Inf(1)})
	require.ErrorIs(t, err, ErrNonFinite)
}

func TestRoundTrip(t *testing.T) {
	in := map[string]interface{}{"name": "europa", "tier": "L3", "n": float64(7)}
	enc, err := Marshal(in)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, Unmarshal(enc, &out))
	require.Equal(t, in["name"], out["name"])
	require.Equal(t, in["tier"], out["tier"])
	require.EqualValues(t, in["n"], out["n"])
}
