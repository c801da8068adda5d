package hamt

import (
	"bytes"
	"context"
	"testing"

	block "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/lotus-lite/blockstore"
	"github.com/filecoin-project/lotus-lite/chain/address"
	"github.com/filecoin-project/lotus-lite/chain/codec"
)

const testBitWidth = 5

// buildFixedDepthTrie builds a 3-level (root, depth1, depth2) HAMT
// over entries, always routing every key to a depth-2 bucket
// regardless of occupancy. With bitWidth=5 that gives 32^3 = 32768
// addressable leaf buckets, comfortably more than the 10,000 actors
// the partial-state fixture inserts, so collisions stay rare and the
// path length for every key is exactly three node fetches.
func buildFixedDepthTrie(t *testing.T, ctx context.Context, bs blockstore.Blockstore, entries map[string][]byte) cid.Cid {
	t.Helper()

	type depth2Key struct{ c0, c1, c2 uint64 }
	groups := make(map[depth2Key][][2][]byte)

	for key, value := range entries {
		hash := HashKey([]byte(key))
		c0, err := chunk(hash, testBitWidth, 0)
		require.NoError(t, err)
		c1, err := chunk(hash, testBitWidth, 1)
		require.NoError(t, err)
		c2, err := chunk(hash, testBitWidth, 2)
		require.NoError(t, err)
		dk := depth2Key{c0, c1, c2}
		groups[dk] = append(groups[dk], [2][]byte{[]byte(key), value})
	}

	// depth2 nodes, one per distinct (c0,c1) pair.
	type d1Key struct{ c0, c1 uint64 }
	d2Nodes := make(map[d1Key]cid.Cid)
	d2Buckets := make(map[d1Key]map[uint64][][2][]byte)
	for dk, kvs := range groups {
		d1 := d1Key{dk.c0, dk.c1}
		if d2Buckets[d1] == nil {
			d2Buckets[d1] = make(map[uint64][][2][]byte)
		}
		d2Buckets[d1][dk.c2] = append(d2Buckets[d1][dk.c2], kvs...)
	}
	for d1, buckets := range d2Buckets {
		c := putBucketNode(t, ctx, bs, buckets)
		d2Nodes[d1] = c
	}

	// depth1 nodes, one per distinct c0.
	d1Children := make(map[uint64]map[uint64]cid.Cid)
	for d1, c := range d2Nodes {
		if d1Children[d1.c0] == nil {
			d1Children[d1.c0] = make(map[uint64]cid.Cid)
		}
		d1Children[d1.c0][d1.c1] = c
	}
	d1Nodes := make(map[uint64]cid.Cid)
	for c0, children := range d1Children {
		d1Nodes[c0] = putLinkNode(t, ctx, bs, children)
	}

	// root.
	return putLinkNode(t, ctx, bs, d1Nodes)
}

func putBucketNode(t *testing.T, ctx context.Context, bs blockstore.Blockstore, buckets map[uint64][][2][]byte) cid.Cid {
	t.Helper()
	var bitmap [4]byte // enough for bitWidth<=5 (32 slots)
	var slotVals []codec.Value
	for x := uint64(0); x < (1 << testBitWidth); x++ {
		kvs, ok := buckets[x]
		if !ok {
			continue
		}
		bitmap[x/8] |= 1 << (x % 8)
		entries := make([]codec.Value, len(kvs))
		for i, kv := range kvs {
			entries[i] = codec.List(codec.Bytes(kv[0]), codec.Bytes(kv[1]))
		}
		slotVals = append(slotVals, codec.List(entries...))
	}
	return putNodeValue(t, ctx, bs, bitmap[:], slotVals)
}

func putLinkNode(t *testing.T, ctx context.Context, bs blockstore.Blockstore, children map[uint64]cid.Cid) cid.Cid {
	t.Helper()
	var bitmap [4]byte
	var slotVals []codec.Value
	for x := uint64(0); x < (1 << testBitWidth); x++ {
		c, ok := children[x]
		if !ok {
			continue
		}
		bitmap[x/8] |= 1 << (x % 8)
		slotVals = append(slotVals, codec.Link(c))
	}
	return putNodeValue(t, ctx, bs, bitmap[:], slotVals)
}

func putNodeValue(t *testing.T, ctx context.Context, bs blockstore.Blockstore, bitmap []byte, slots []codec.Value) cid.Cid {
	t.Helper()
	// trim trailing zero bytes so the bitmap matches what a real
	// encoder would emit.
	end := len(bitmap)
	for end > 0 && bitmap[end-1] == 0 {
		end--
	}
	nodeVal := codec.List(codec.Bytes(bitmap[:end]), codec.List(slots...))
	data, err := codec.Encode(nodeVal)
	require.NoError(t, err)
	c, err := codec.BuildCID(data)
	require.NoError(t, err)
	blk, err := block.NewBlockWithCid(data, c)
	require.NoError(t, err)
	require.NoError(t, bs.Put(ctx, blk))
	return c
}

func TestHAMTPartialStateSelectorTouchesThreeBlocks(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemBlockstore()

	entries := make(map[string][]byte, 10000)
	for id := uint64(0); id < 10000; id++ {
		addr := address.NewIDAddress(id)
		entries[string(addr.Bytes())] = bytes.Repeat([]byte{byte(id), byte(id >> 8)}, 2)
	}

	root := buildFixedDepthTrie(t, ctx, bs, entries)

	target := address.NewIDAddress(1000)
	sel := SelectorForActor(target)

	result, err := Walk(ctx, bs, root, testBitWidth, sel)
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Equal(t, entries[string(target.Bytes())], result.Value)
	require.Equal(t, 3, result.BlocksTouched)
}

func TestHAMTGetMissingKey(t *testing.T) {
	ctx := context.Background()
	bs := blockstore.NewMemBlockstore()

	entries := map[string][]byte{
		string(address.NewIDAddress(1).Bytes()): []byte("one"),
		string(address.NewIDAddress(2).Bytes()): []byte("two"),
	}
	root := buildFixedDepthTrie(t, ctx, bs, entries)

	h, err := Load(ctx, root, bs, testBitWidth)
	require.NoError(t, err)

	_, found, _, err := h.Get(ctx, address.NewIDAddress(99).Bytes())
	require.NoError(t, err)
	require.False(t, found)

	val, found, _, err := h.Get(ctx, address.NewIDAddress(1).Bytes())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("one"), val)
}
