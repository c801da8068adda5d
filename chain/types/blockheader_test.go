package types

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/lotus-lite/chain/address"
	"github.com/filecoin-project/lotus-lite/chain/codec"
)

func testLinkCid(t *testing.T, seed string) cid.Cid {
	t.Helper()
	c, err := codec.BuildCID([]byte(seed))
	require.NoError(t, err)
	return c
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := &BlockHeader{
		Miner:                 address.NewIDAddress(1000),
		Parents:               []cid.Cid{testLinkCid(t, "p1"), testLinkCid(t, "p2")},
		Height:                42,
		ParentStateRoot:       testLinkCid(t, "state"),
		ParentMessageReceipts: testLinkCid(t, "receipts"),
		Messages:              testLinkCid(t, "messages"),
		ParentBaseFee:         []byte{0x01, 0x02},
	}

	data, err := h.Serialize()
	require.NoError(t, err)

	got, err := DecodeBlock(data)
	require.NoError(t, err)
	require.True(t, h.Miner.Equals(got.Miner))
	require.Equal(t, h.Height, got.Height)
	require.Len(t, got.Parents, 2)
	require.True(t, h.ParentStateRoot.Equals(got.ParentStateRoot))
	require.True(t, h.ParentMessageReceipts.Equals(got.ParentMessageReceipts))
	require.True(t, h.Messages.Equals(got.Messages))
	require.Equal(t, h.ParentBaseFee, got.ParentBaseFee)
	require.Len(t, got.Opaque, numOpaqueFields)

	c1, err := h.Cid()
	require.NoError(t, err)
	c2, err := got.Cid()
	require.NoError(t, err)
	require.True(t, c1.Equals(c2))
}

func TestBlockHeaderPreservesOpaqueFields(t *testing.T) {
	h := &BlockHeader{Miner: address.NewIDAddress(1)}
	h.Opaque = make([][]byte, numOpaqueFields)
	h.Opaque[0] = []byte("ticket")
	h.Opaque[3] = []byte("vrfproof")

	data, err := h.Serialize()
	require.NoError(t, err)

	got, err := DecodeBlock(data)
	require.NoError(t, err)
	require.Equal(t, h.Opaque[0], got.Opaque[0])
	require.Equal(t, h.Opaque[3], got.Opaque[3])
}
