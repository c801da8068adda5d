package amt

import (
	"context"
	"math/big"
	"testing"

	block "github.com/ipfs/go-block-format"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/lotus-lite/blockstore"
	"github.com/filecoin-project/lotus-lite/chain/codec"
)

// entryValue builds the (redeemed bignum, nonce uint) pair shape used
// by the spaced-lanes fixture, with redeemed = i+1 and nonce = i+1.
func entryValue(i uint64) codec.Value {
	mag := new(big.Int).SetUint64(i + 1).Bytes()
	return codec.List(codec.Bytes(codec.EncodeBigNum(mag)), codec.Int(i+1))
}

func putNode(t *testing.T, ctx context.Context, bs blockstore.Blockstore, bitBits []int, links []block.Block, values []codec.Value) block.Block {
	t.Helper()
	var bitmapByte byte
	for _, b := range bitBits {
		bitmapByte |= 1 << uint(b)
	}

	linkVals := make([]codec.Value, len(links))
	for i, l := range links {
		linkVals[i] = codec.Link(l.Cid())
	}

	nodeVal := codec.List(codec.Bytes([]byte{bitmapByte}), codec.List(linkVals...), codec.List(values...))
	data, err := codec.Encode(nodeVal)
	require.NoError(t, err)
	c, err := codec.BuildCID(data)
	require.NoError(t, err)
	blk, err := block.NewBlockWithCid(data, c)
	require.NoError(t, err)
	require.NoError(t, bs.Put(ctx, blk))
	return blk
}

// TestAMTSpacedLanes builds a height-1, bitWidth-3 tree by hand whose
// leaves hold indices {0..5} under child 0, {13} under child 1 and
// {20} under child 2 -- the "spaced lanes" shape from the spec's
// four-block fixture -- and checks ascending iteration and point
// lookups against it.
func TestAMTSpacedLanes(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemBlockstore()

	leaf0 := putNode(t, ctx, bs, []int{0, 1, 2, 3, 4, 5}, nil, []codec.Value{
		entryValue(0), entryValue(1), entryValue(2), entryValue(3), entryValue(4), entryValue(5),
	})
	// child 1 covers global indices [8,16); index 13 -> rem 5.
	leaf1 := putNode(t, ctx, bs, []int{5}, nil, []codec.Value{entryValue(13)})
	// child 2 covers global indices [16,24); index 20 -> rem 4.
	leaf2 := putNode(t, ctx, bs, []int{4}, nil, []codec.Value{entryValue(20)})

	root := putNode(t, ctx, bs, []int{0, 1, 2}, []block.Block{leaf0, leaf1, leaf2}, nil)

	headerVal := codec.List(codec.Int(3), codec.Int(1), codec.Int(8), mustDecode(t, root))
	data, err := codec.Encode(headerVal)
	require.NoError(t, err)
	rootCid, err := codec.BuildCID(data)
	require.NoError(t, err)
	rootBlk, err := block.NewBlockWithCid(data, rootCid)
	require.NoError(t, err)
	require.NoError(t, bs.Put(ctx, rootBlk))

	a, err := Load(ctx, rootCid, bs)
	require.NoError(t, err)
	require.EqualValues(t, 1, a.Height())
	require.EqualValues(t, 8, a.Count())

	var indices []uint64
	err = a.ForEach(ctx, func(i uint64, raw []byte) error {
		indices = append(indices, i)
		v, derr := codec.Decode(raw)
		require.NoError(t, derr)
		require.Len(t, v.List, 2)
		b := BigFromBytes(v.List[0].Bytes)
		require.Equal(t, i+1, b.Uint64())
		require.Equal(t, i+1, v.List[1].Int)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 13, 20}, indices)

	raw, ok, err := a.Get(ctx, 13)
	require.NoError(t, err)
	require.True(t, ok)
	v, err := codec.Decode(raw)
	require.NoError(t, err)
	require.EqualValues(t, 14, v.List[1].Int)

	_, ok, err = a.Get(ctx, 6)
	require.NoError(t, err)
	require.False(t, ok)
}

// BigFromBytes decodes the (0x00 | magnitude) bignum wire convention
// used by entryValue, for assertions only.
type BigFromBytes []byte

func (b BigFromBytes) Uint64() uint64 {
	if len(b) == 0 {
		return 0
	}
	return new(big.Int).SetBytes(b[1:]).Uint64()
}

func mustDecode(t *testing.T, blk block.Block) codec.Value {
	t.Helper()
	v, err := codec.Decode(blk.RawData())
	require.NoError(t, err)
	return v
}

func must(t *testing.T, blk block.Block, err error) block.Block {
	t.Helper()
	require.NoError(t, err)
	return blk
}
