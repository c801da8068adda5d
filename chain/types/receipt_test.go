package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageReceiptRoundTrip(t *testing.T) {
	r := &MessageReceipt{ExitCode: 0, Return: []byte("result bytes"), GasUsed: 123456}

	data, err := r.Serialize()
	require.NoError(t, err)

	got, err := DecodeMessageReceipt(data)
	require.NoError(t, err)
	require.Equal(t, r.ExitCode, got.ExitCode)
	require.Equal(t, r.Return, got.Return)
	require.Equal(t, r.GasUsed, got.GasUsed)
}

func TestMessageReceiptEmptyReturn(t *testing.T) {
	r := &MessageReceipt{ExitCode: 1, GasUsed: 0}

	data, err := r.Serialize()
	require.NoError(t, err)

	got, err := DecodeMessageReceipt(data)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.ExitCode)
	require.Empty(t, got.Return)
}
