package hamt

import (
	"context"

	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/lotus-lite/blockstore"
	"github.com/filecoin-project/lotus-lite/chain/address"
)

// HamtReifier is the name-registered reifier the spec's selector
// guards on: it wraps a loaded root node in a map view whose
// field-access yields the associated value via on-demand fetches. Our
// reader is already that map view (HAMT.Get), so the reifier name
// here is descriptive metadata for the selector rather than a
// separate transformation step.
const HamtReifier = "HamtReifier"

// Selector is the narrow two-level composition from §4.6: a
// reify-as(HamtReifier) guard wrapping a single-entry explore-fields
// step. It carries exactly enough structure to describe "fetch only
// the path to this one key" -- the shape a graph-exchange request for
// one actor's state would carry over the wire.
type Selector struct {
	ReifyAs string
	Field   []byte
}

// SelectorForActor builds the selector that fetches only the blocks
// on the path to actor's leaf in an actor state tree.
func SelectorForActor(actor address.Address) *Selector {
	return &Selector{ReifyAs: HamtReifier, Field: actor.Bytes()}
}

// WalkResult reports the outcome of executing a Selector against a
// block store, including how many blocks the walk actually touched --
// the invariant the selector exists to bound.
type WalkResult struct {
	Value         []byte
	Found         bool
	BlocksTouched int
}

// Walk executes sel against the tree rooted at root: load the root
// (one block, the reify-as step), then descend via the reified map
// view to the single field the selector names (the explore-fields
// step), fetching only blocks on that path.
func Walk(ctx context.Context, store blockstore.Blockstore, root cid.Cid, bitWidth uint, sel *Selector) (*WalkResult, error) {
	if sel.ReifyAs != HamtReifier {
		return nil, &ErrMalformedNode{Reason: "selector does not reify as a HAMT"}
	}

	h, err := Load(ctx, root, store, bitWidth)
	if err != nil {
		return nil, err
	}

	value, found, extra, err := h.Get(ctx, sel.Field)
	if err != nil {
		return nil, err
	}
	return &WalkResult{Value: value, Found: found, BlocksTouched: 1 + extra}, nil
}
