package address

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressDecodeFixture(t *testing.T) {
	// scenario 2 from the spec's testable-properties fixture list.
	a, err := NewFromString("t15ihq5ibzwki2b4ep2f46avlkrqzhpqgtga7pdrq")
	require.NoError(t, err)
	require.Equal(t, "01ea0f0ea039b291a0f08fd179e0556a8c3277c0d3", hex.EncodeToString(a.Bytes()))
}

func TestAddressRoundTrip(t *testing.T) {
	old := CurrentNetwork
	CurrentNetwork = Testnet
	defer func() { CurrentNetwork = old }()

	for i := 0; i < 16; i++ {
		pub := make([]byte, 65)
		pub[0] = byte(i)
		a, err := NewSecp256k1Address(pub)
		require.NoError(t, err)

		s := a.String()
		back, err := NewFromString(s)
		require.NoError(t, err)
		require.True(t, a.Equals(back))
	}
}

func TestAddressChecksumMismatch(t *testing.T) {
	_, err := NewFromString("t15ihq5ibzwki2b4ep2f46avlkrqzhpqgtga7pdra")
	require.Error(t, err)
}

func TestIDAddressStringRoundTrip(t *testing.T) {
	old := CurrentNetwork
	CurrentNetwork = Testnet
	defer func() { CurrentNetwork = old }()

	a := NewIDAddress(1000)
	require.Equal(t, "t01000", a.String())

	back, err := NewFromString("t01000")
	require.NoError(t, err)
	require.True(t, a.Equals(back))
}

func TestEmpty(t *testing.T) {
	require.True(t, Undef.Empty())
	require.True(t, Address{}.Empty(), "the Go zero value must also read as empty")
	require.False(t, NewIDAddress(0).Empty(), "a real id-0 address is never the zero value")
	require.False(t, NewIDAddress(1000).Empty())
}
