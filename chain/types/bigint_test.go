package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBigIntMarshalUnmarshalRoundTrip(t *testing.T) {
	b := NewInt(123456789)
	wire, err := b.MarshalBinary()
	require.NoError(t, err)

	var got BigInt
	require.NoError(t, got.UnmarshalBinary(wire))
	require.True(t, b.Equals(got))
}

func TestBigIntZeroMarshalsEmpty(t *testing.T) {
	wire, err := Zero().MarshalBinary()
	require.NoError(t, err)
	require.Empty(t, wire)

	var got BigInt
	require.NoError(t, got.UnmarshalBinary(nil))
	require.True(t, Zero().Equals(got))
}

func TestBigIntNegativeRejected(t *testing.T) {
	neg := BigSub(Zero(), NewInt(1))
	_, err := neg.MarshalBinary()
	require.Error(t, err)
}

func TestParseBigInt(t *testing.T) {
	b, err := ParseBigInt("1000000000000000000")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", b.String())

	z, err := ParseBigInt("")
	require.NoError(t, err)
	require.True(t, z.Equals(Zero()))

	_, err = ParseBigInt("not-a-number")
	require.Error(t, err)
}

func TestBigFromBytes(t *testing.T) {
	b, err := BigFromBytes([]byte{0x01, 0x00})
	require.NoError(t, err)
	require.Equal(t, "256", b.String())

	z, err := BigFromBytes(nil)
	require.NoError(t, err)
	require.True(t, z.Equals(Zero()))
}

func TestBigArith(t *testing.T) {
	a, b := NewInt(10), NewInt(3)
	require.Equal(t, "13", BigAdd(a, b).String())
	require.Equal(t, "7", BigSub(a, b).String())
	require.Equal(t, "30", BigMul(a, b).String())
	require.Equal(t, "3", BigDiv(a, b).String())
	require.True(t, b.LessThan(a))
	require.False(t, a.LessThan(b))
}
