package types

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/lotus-lite/chain/address"
)

func TestBlockMsgRoundTrip(t *testing.T) {
	h := BlockHeader{Miner: address.NewIDAddress(7), Height: 10}
	secp1 := testLinkCid(t, "secp-1")
	secp2 := testLinkCid(t, "secp-2")
	bls1 := testLinkCid(t, "bls-1")

	bm := &BlockMsg{
		Header:        h,
		BlsMessages:   []cid.Cid{bls1},
		SecpkMessages: []cid.Cid{secp1, secp2},
	}

	var buf bytes.Buffer
	require.NoError(t, bm.MarshalCBOR(&buf))

	got, err := DecodeBlockMsg(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, h.Height, got.Header.Height)
	require.Len(t, got.BlsMessages, 1)
	require.Len(t, got.SecpkMessages, 2)

	idx, ok := got.ContainsSecpMessage(secp2)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = got.ContainsSecpMessage(testLinkCid(t, "not-present"))
	require.False(t, ok)

	c1, err := bm.Cid()
	require.NoError(t, err)
	c2, err := h.Cid()
	require.NoError(t, err)
	require.True(t, c1.Equals(c2))
}
