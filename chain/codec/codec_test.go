package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripList(t *testing.T) {
	v := List(Int(0), Bytes([]byte{1, 2, 3}), Int(123), Bytes(nil))
	b, err := Encode(v)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, KindList, got.Kind)
	require.Len(t, got.List, 4)
	require.Equal(t, uint64(0), got.List[0].Int)
	require.Equal(t, []byte{1, 2, 3}, got.List[1].Bytes)
	require.Equal(t, uint64(123), got.List[2].Int)
	require.Empty(t, got.List[3].Bytes)
}

func TestTrailingBytesRejected(t *testing.T) {
	b, err := Encode(Int(1))
	require.NoError(t, err)
	b = append(b, 0xff)

	_, err = Decode(b)
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestMapKeysSortedByLengthThenBytes(t *testing.T) {
	v := Map(
		MapEntry{Key: []byte("bb"), Value: Int(2)},
		MapEntry{Key: []byte("a"), Value: Int(1)},
		MapEntry{Key: []byte("aa"), Value: Int(3)},
	)
	b, err := Encode(v)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Len(t, got.Map, 3)
	require.Equal(t, []byte("a"), got.Map[0].Key)
	require.Equal(t, []byte("aa"), got.Map[1].Key)
	require.Equal(t, []byte("bb"), got.Map[2].Key)
}

func TestEncodeDecodeBigNum(t *testing.T) {
	cases := [][]byte{nil, {0x01}, {0xff, 0xff}}
	for _, magnitude := range cases {
		wire := EncodeBigNum(magnitude)
		got, err := DecodeBigNum(wire)
		require.NoError(t, err)
		require.Equal(t, magnitude, got)
	}
}

func TestBuildCIDIsDeterministicAndVerifies(t *testing.T) {
	data := []byte("hello filecoin")
	c1, err := BuildCID(data)
	require.NoError(t, err)
	c2, err := BuildCID(data)
	require.NoError(t, err)
	require.True(t, c1.Equals(c2))
	require.True(t, VerifyCID(data, c1))
	require.False(t, VerifyCID(append(data, 0), c1))
}
