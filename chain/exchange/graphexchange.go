package exchange

import (
	"context"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/filecoin-project/lotus-lite/blockstore"
	"github.com/filecoin-project/lotus-lite/chain/codec"
)

// linksOf walks a decoded block's value tree and collects every CID
// link it contains, for graph-exchange traversal over arbitrary
// dag-cbor shaped data (AMT/HAMT nodes, block headers).
func linksOf(data []byte) []cid.Cid {
	v, err := codec.Decode(data)
	if err != nil {
		return nil
	}
	var links []cid.Cid
	var walk func(v codec.Value)
	walk = func(v codec.Value) {
		switch v.Kind {
		case codec.KindLink:
			links = append(links, v.Link)
		case codec.KindList:
			for _, item := range v.List {
				walk(item)
			}
		case codec.KindMap:
			for _, e := range v.Map {
				walk(e.Value)
			}
		}
	}
	walk(v)
	return links
}

// Selector describes a graph-exchange traversal. §4.7's fetchReceipts
// only ever needs "recursive to depth N, explore all links," so that's
// all this collaborator exposes.
type Selector struct {
	Root       cid.Cid
	MaxDepth   int
	ExploreAll bool
}

// RecursiveAllLinks builds the selector §4.7 issues against the
// receipts AMT root: recurse to depth, following every link.
func RecursiveAllLinks(root cid.Cid, depth int) Selector {
	return Selector{Root: root, MaxDepth: depth, ExploreAll: true}
}

// GraphExchangeClient is the §6 graph-exchange collaborator:
// `request(root_cid, selector).open(peer, extensions).drain()`. Drain
// populates store with every block the selector matches and returns
// how many were written.
type GraphExchangeClient interface {
	Drain(ctx context.Context, p peer.ID, sel Selector, store blockstore.Blockstore) (int, error)
}

// FakePeer is an in-memory GraphExchangeClient backed by a local
// blockstore, for tests that exercise fetchReceipts without a real
// libp2p transport. Drain copies every block reachable from sel.Root by
// following links up to sel.MaxDepth, ignoring the peer ID.
type FakePeer struct {
	Store blockstore.Blockstore
}

func (f *FakePeer) Drain(ctx context.Context, _ peer.ID, sel Selector, dst blockstore.Blockstore) (int, error) {
	visited := make(map[cid.Cid]bool)
	n := 0
	var walk func(c cid.Cid, depth int) error
	walk = func(c cid.Cid, depth int) error {
		if visited[c] {
			return nil
		}
		visited[c] = true

		blk, err := f.Store.Get(ctx, c)
		if err != nil {
			return err
		}
		if err := dst.Put(ctx, blk); err != nil {
			return err
		}
		n++

		if depth >= sel.MaxDepth || !sel.ExploreAll {
			return nil
		}
		for _, child := range linksOf(blk.RawData()) {
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(sel.Root, 0); err != nil {
		return n, err
	}
	return n, nil
}
