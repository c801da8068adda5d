// Package hamt implements the §4.6 hash-array mapped trie reader used
// for the on-chain actor state tree, plus the narrow two-level
// selector DSL ("reify-as" + "explore-fields") that describes a path
// to a single key without touching the rest of the tree.
//
// This is a from-scratch reader, not a wrapper around go-hamt-ipld or
// go-ipld-prime's general traversal engine: the node decode, bucket
// lookup and selector interpretation are the deliverable.
package hamt

import (
	"context"
	"math/bits"

	"github.com/ipfs/go-cid"
	"github.com/minio/blake2b-simd"

	"github.com/filecoin-project/lotus-lite/blockstore"
	"github.com/filecoin-project/lotus-lite/chain/codec"
)

// ErrMalformedNode covers structural violations of node decoding.
type ErrMalformedNode struct{ Reason string }

func (e *ErrMalformedNode) Error() string { return "hamt: malformed node: " + e.Reason }

// kvEntry is one (key, value) pair inline in a bucket.
type kvEntry struct {
	key   []byte
	value []byte
}

// slot is one populated bitmap position: either a pointer to a child
// shard, or an inline bucket of colliding keys.
type slot struct {
	child  cid.Cid
	isLink bool
	bucket []kvEntry
}

type node struct {
	bitmap []byte
	slots  []slot
}

// HAMT is a loaded, ephemeral reader over one root, parameterized by a
// bit width the caller supplies (the wire format carries no header
// describing it, unlike the AMT).
type HAMT struct {
	bitWidth uint
	root     *node
	store    blockstore.Blockstore
}

func (h *HAMT) width() uint64 { return uint64(1) << h.bitWidth }

// Load fetches and decodes the root node at root.
func Load(ctx context.Context, root cid.Cid, store blockstore.Blockstore, bitWidth uint) (*HAMT, error) {
	nd, err := fetchNode(ctx, store, root)
	if err != nil {
		return nil, err
	}
	return &HAMT{bitWidth: bitWidth, root: nd, store: store}, nil
}

func fetchNode(ctx context.Context, store blockstore.Blockstore, c cid.Cid) (*node, error) {
	blk, err := store.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	v, err := codec.Decode(blk.RawData())
	if err != nil {
		return nil, err
	}
	return nodeFromValue(v)
}

func nodeFromValue(v codec.Value) (*node, error) {
	if v.Kind != codec.KindList || len(v.List) != 2 {
		return nil, &ErrMalformedNode{Reason: "node must be a 2-element (bitmap, slots) array"}
	}
	bitmapV, slotsV := v.List[0], v.List[1]
	if bitmapV.Kind != codec.KindBytes {
		return nil, &ErrMalformedNode{Reason: "bitmap must be a byte string"}
	}
	if slotsV.Kind != codec.KindList {
		return nil, &ErrMalformedNode{Reason: "slots must be an array"}
	}

	set := popcountAll(bitmapV.Bytes)
	if set != len(slotsV.List) {
		return nil, &ErrMalformedNode{Reason: "bitmap popcount does not match slot list length"}
	}

	slots := make([]slot, len(slotsV.List))
	for i, sv := range slotsV.List {
		switch sv.Kind {
		case codec.KindLink:
			if sv.Link.Prefix().Codec != cid.DagCBOR {
				return nil, &ErrMalformedNode{Reason: "child link has non-dag-cbor codec"}
			}
			slots[i] = slot{child: sv.Link, isLink: true}
		case codec.KindList:
			bucket := make([]kvEntry, len(sv.List))
			for j, kv := range sv.List {
				if kv.Kind != codec.KindList || len(kv.List) != 2 || kv.List[0].Kind != codec.KindBytes || kv.List[1].Kind != codec.KindBytes {
					return nil, &ErrMalformedNode{Reason: "bucket entry must be a (key, value) byte-string pair"}
				}
				bucket[j] = kvEntry{key: kv.List[0].Bytes, value: kv.List[1].Bytes}
			}
			slots[i] = slot{bucket: bucket}
		default:
			return nil, &ErrMalformedNode{Reason: "slot must be a link or an inline bucket"}
		}
	}
	return &node{bitmap: bitmapV.Bytes, slots: slots}, nil
}

func popcountAll(bitmap []byte) int {
	n := 0
	for _, b := range bitmap {
		n += bits.OnesCount8(b)
	}
	return n
}

func bitSet(bitmap []byte, x uint64) bool {
	byteIdx := x / 8
	if byteIdx >= uint64(len(bitmap)) {
		return false
	}
	return (bitmap[byteIdx]>>(x%8))&1 == 1
}

func popcountBelow(bitmap []byte, x uint64) int {
	n := 0
	full := x / 8
	for i := uint64(0); i < full && i < uint64(len(bitmap)); i++ {
		n += bits.OnesCount8(bitmap[i])
	}
	if full < uint64(len(bitmap)) {
		mask := byte((uint16(1) << (x % 8)) - 1)
		n += bits.OnesCount8(bitmap[full] & mask)
	}
	return n
}

// HashKey is the digest function the reader and any tree builder must
// agree on: BLAKE2b-256 of the raw key bytes.
func HashKey(key []byte) [32]byte { return blake2b.Sum256(key) }

// chunk extracts the bitWidth-bit slice of hash starting at bit
// position depth*bitWidth, most-significant-bit first.
func chunk(hash [32]byte, bitWidth uint, depth uint) (uint64, error) {
	bitOffset := uint64(depth) * uint64(bitWidth)
	if bitOffset+uint64(bitWidth) > 256 {
		return 0, &ErrMalformedNode{Reason: "hash exhausted before key was resolved"}
	}
	var v uint64
	for i := uint(0); i < bitWidth; i++ {
		bitPos := bitOffset + uint64(i)
		byteIdx := bitPos / 8
		bitIdx := 7 - (bitPos % 8)
		bit := (hash[byteIdx] >> bitIdx) & 1
		v = (v << 1) | uint64(bit)
	}
	return v, nil
}

// Get looks up key, fetching child shards lazily. It returns the
// number of additional blocks fetched beyond the already-loaded root.
func (h *HAMT) Get(ctx context.Context, key []byte) (value []byte, found bool, blocksFetched int, err error) {
	hash := HashKey(key)
	nd := h.root
	var depth uint
	for {
		x, cerr := chunk(hash, h.bitWidth, depth)
		if cerr != nil {
			return nil, false, blocksFetched, cerr
		}
		if !bitSet(nd.bitmap, x) {
			return nil, false, blocksFetched, nil
		}
		idx := popcountBelow(nd.bitmap, x)
		if idx >= len(nd.slots) {
			return nil, false, blocksFetched, &ErrMalformedNode{Reason: "slot index out of range"}
		}
		s := nd.slots[idx]
		if s.isLink {
			child, ferr := fetchNode(ctx, h.store, s.child)
			if ferr != nil {
				return nil, false, blocksFetched, ferr
			}
			blocksFetched++
			nd = child
			depth++
			continue
		}
		for _, e := range s.bucket {
			if string(e.key) == string(key) {
				return e.value, true, blocksFetched, nil
			}
		}
		return nil, false, blocksFetched, nil
	}
}
