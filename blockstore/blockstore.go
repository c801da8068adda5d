// Package blockstore implements the §4.9 block-store facade: a narrow
// get/put contract over content-addressed blocks with pluggable
// backends, in the shape of lotus's blockstore package.
package blockstore

import (
	"context"
	"sync"

	block "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/lotus-lite/chain/types"
)

// Blockstore is the interface the AMT/HAMT readers, the client
// orchestrator and the graph-exchange fetcher all depend on.
type Blockstore interface {
	Get(ctx context.Context, c cid.Cid) (block.Block, error)
	Put(ctx context.Context, b block.Block) error
	Has(ctx context.Context, c cid.Cid) (bool, error)
}

// MemBlockstore is the default in-memory backend, used by tests and by
// the AMT/HAMT unit tests that never touch a real datastore.
type MemBlockstore struct {
	mu   sync.RWMutex
	data map[cid.Cid]block.Block
}

func NewMemBlockstore() *MemBlockstore {
	return &MemBlockstore{data: make(map[cid.Cid]block.Block)}
}

func (m *MemBlockstore) Get(_ context.Context, c cid.Cid) (block.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[c]
	if !ok {
		return nil, types.ErrNotFound
	}
	return b, nil
}

func (m *MemBlockstore) Put(_ context.Context, b block.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[b.Cid()] = b
	return nil
}

func (m *MemBlockstore) Has(_ context.Context, c cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[c]
	return ok, nil
}
