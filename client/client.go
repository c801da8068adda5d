package client

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	statemachine "github.com/filecoin-project/go-statemachine"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/lotus-lite/blockstore"
	"github.com/filecoin-project/lotus-lite/chain/amt"
	"github.com/filecoin-project/lotus-lite/chain/exchange"
	"github.com/filecoin-project/lotus-lite/chain/gas"
	"github.com/filecoin-project/lotus-lite/chain/sub"
	"github.com/filecoin-project/lotus-lite/chain/types"
)

// waitResult is the outcome of one waitMessage call, recorded by the
// wait-machine's planner and consumed by WaitMessage.
type waitResult struct {
	receipt *types.MessageReceipt
	err     error
}

// Client is the §4.7 orchestrator: owns the key store, nonce tracker,
// block store and pub/sub bindings, and exposes pushMessage/getHead/
// waitMessage over them.
type Client struct {
	Keystore *MemKeystore
	Nonces   *NonceTracker
	Store    blockstore.Blockstore
	Graph    exchange.GraphExchangeClient
	Blocks   *sub.Binding
	Messages *sub.Binding
	NetName  string

	// ReceiptPeer is the peer fetchReceipts issues its graph-exchange
	// request to. A light client with one dialed peer just fixes this;
	// a fuller implementation would pick from the connected set.
	ReceiptPeer peer.ID

	waits *statemachine.StateGroup

	mu          sync.RWMutex
	head        *types.BlockHeader
	headWaiters []chan *types.BlockHeader

	activeWaits map[cid.Cid]struct{}
	doneCh      map[cid.Cid]chan struct{}
	results     map[cid.Cid]waitResult
}

func NewClient(ds datastore.Batching, store blockstore.Blockstore, graph exchange.GraphExchangeClient, blocks, messages *sub.Binding, netName string) *Client {
	c := &Client{
		Keystore:    NewMemKeystore(),
		Nonces:      NewNonceTracker(),
		Store:       store,
		Graph:       graph,
		Blocks:      blocks,
		Messages:    messages,
		NetName:     netName,
		activeWaits: make(map[cid.Cid]struct{}),
		doneCh:      make(map[cid.Cid]chan struct{}),
		results:     make(map[cid.Cid]waitResult),
	}
	c.waits = statemachine.New(ds, &waitPlanner{c: c}, WaitEntry{})
	return c
}

// Run drives the block-subscription listener for as long as ctx is
// live, per §4.7/§5: the listener updates the cached head, resolves
// getHead subscribers, and feeds block arrivals to every in-flight
// waitMessage call. It must not be called more than once concurrently.
func (c *Client) Run(ctx context.Context) error {
	return sub.HandleIncomingBlocks(ctx, c.Blocks, c.onBlock)
}

func (c *Client) onBlock(from peer.ID, blk *types.BlockMsg) {
	c.mu.Lock()
	if c.head == nil || blk.Header.Height > c.head.Height {
		c.head = &blk.Header
		for _, w := range c.headWaiters {
			w <- &blk.Header
			close(w)
		}
		c.headWaiters = nil
	}
	waiting := make([]cid.Cid, 0, len(c.activeWaits))
	for id := range c.activeWaits {
		waiting = append(waiting, id)
	}
	c.mu.Unlock()

	idx := make(map[cid.Cid]uint64, len(blk.SecpkMessages))
	for i, mc := range blk.SecpkMessages {
		idx[mc] = uint64(i)
	}
	evt := evtBlockArrived{secpIndex: idx, receiptsRoot: blk.Header.ParentMessageReceipts}
	for _, id := range waiting {
		if err := c.waits.Send(id, evt); err != nil {
			log.Warnf("wait-machine send failed for %s: %s", id, err)
		}
	}
}

// GetHead returns the cached head if one is known; otherwise it
// installs a one-shot subscription and resolves on the next block, per
// §4.7.
func (c *Client) GetHead(ctx context.Context) (*types.BlockHeader, error) {
	c.mu.Lock()
	if c.head != nil {
		h := c.head
		c.mu.Unlock()
		return h, nil
	}
	w := make(chan *types.BlockHeader, 1)
	c.headWaiters = append(c.headWaiters, w)
	c.mu.Unlock()

	select {
	case h := <-w:
		return h, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PushMessage implements §4.7's pushMessage: sign with the key whose
// address matches msg.From, or with the keystore's default key when
// From is empty, fill from/nonce/gas if the caller left them zero, sign, publish
// on the network's message topic, and return the signed message's CID.
func (c *Client) PushMessage(ctx context.Context, msg *types.Message) (cid.Cid, error) {
	// reqID tags this push in the logs only, the way messagesigner tags
	// a pending signing request with a uuid so it can be correlated
	// across a retried call; there is no multi-node consensus layer here
	// to look the request back up by it.
	reqID := uuid.New()

	name, ki, err := c.Keystore.Default()
	if err != nil {
		return cid.Undef, err
	}
	if !msg.From.Empty() {
		names, _ := c.Keystore.List()
		name, ki, err = "", types.KeyInfo{}, types.ErrKeyInfoNotFound
		for _, n := range names {
			k, _ := c.Keystore.Get(n)
			if a, aerr := KeyInfoAddress(k); aerr == nil && a.Equals(msg.From) {
				name, ki, err = n, k, nil
				break
			}
		}
		if err != nil {
			return cid.Undef, err
		}
	}

	addr, err := KeyInfoAddress(ki)
	if err != nil {
		return cid.Undef, xerrors.Errorf("client: deriving address for key %q: %w", name, err)
	}
	if msg.From.Empty() {
		msg.From = addr
	}
	if msg.Nonce == 0 {
		msg.Nonce = c.Nonces.Next(msg.From)
	}

	head, err := c.GetHead(ctx)
	if err != nil {
		return cid.Undef, err
	}
	baseFee, err := types.BigFromBytes(head.ParentBaseFee)
	if err != nil {
		return cid.Undef, err
	}
	gas.Estimate(msg, baseFee)

	signed, err := types.SignMessage(msg, ki.PrivateKey)
	if err != nil {
		return cid.Undef, err
	}

	data, err := signed.Serialize()
	if err != nil {
		return cid.Undef, err
	}
	if err := c.Messages.Publish(ctx, data); err != nil {
		return cid.Undef, err
	}

	mc, err := signed.Cid()
	if err != nil {
		return cid.Undef, err
	}
	log.Infof("push request %s: published message %s", reqID, mc)
	return mc, nil
}

// WaitMessage implements waitMessage: block until msgCid is seen in a
// block and its receipt resolved, fails past the 6-block horizon.
func (c *Client) WaitMessage(ctx context.Context, msgCid cid.Cid) (*types.MessageReceipt, error) {
	c.mu.Lock()
	if r, ok := c.results[msgCid]; ok {
		delete(c.results, msgCid)
		c.mu.Unlock()
		return r.receipt, r.err
	}
	done, ok := c.doneCh[msgCid]
	if !ok {
		done = make(chan struct{})
		c.doneCh[msgCid] = done
	}
	c.mu.Unlock()

	if err := c.waits.Send(msgCid, evtInit{msgCid: msgCid}); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.activeWaits[msgCid] = struct{}{}
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	delete(c.activeWaits, msgCid)
	delete(c.doneCh, msgCid)
	r := c.results[msgCid]
	delete(c.results, msgCid)
	c.mu.Unlock()
	return r.receipt, r.err
}

func (c *Client) completeWait(msgCid cid.Cid, receipt *types.MessageReceipt, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[msgCid] = waitResult{receipt: receipt, err: err}
	if done, ok := c.doneCh[msgCid]; ok {
		close(done)
		delete(c.doneCh, msgCid)
	}
}

// FetchReceipts implements §4.7's fetchReceipts: drain the receipts
// AMT root from a peer via graph-exchange, then read the requested
// indices out of it. Absent indices are silently omitted.
func (c *Client) FetchReceipts(ctx context.Context, root cid.Cid, idx []uint64) (map[uint64]*types.MessageReceipt, error) {
	sel := exchange.RecursiveAllLinks(root, 10)
	if _, err := c.Graph.Drain(ctx, c.ReceiptPeer, sel, c.Store); err != nil {
		return nil, err
	}

	a, err := amt.LoadAdt0(ctx, root, c.Store)
	if err != nil {
		return nil, err
	}

	out := make(map[uint64]*types.MessageReceipt, len(idx))
	for _, i := range idx {
		raw, found, err := a.Get(ctx, i)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		r, err := types.DecodeMessageReceipt(raw)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Close tears down the pub/sub bindings and the wait-machine's state
// group, combining whatever each step returns rather than stopping at
// the first error, per blockstore/splitstore's own Close.
func (c *Client) Close(ctx context.Context) error {
	var err error
	if c.Blocks != nil {
		err = multierr.Append(err, c.Blocks.Cancel())
	}
	if c.Messages != nil {
		err = multierr.Append(err, c.Messages.Cancel())
	}
	err = multierr.Append(err, c.waits.Stop(ctx))
	return err
}
