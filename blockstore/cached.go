package blockstore

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	block "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
)

// CachingBlockstore fronts any Blockstore with a bounded LRU of
// recently-seen blocks, grounded on lotus's CachedBlockstore.
type CachingBlockstore struct {
	base  Blockstore
	cache *lru.Cache[cid.Cid, block.Block]
}

// DefaultCacheSize mirrors lotus's sizing rationale: a fixed block
// budget divided by an assumed average block size.
const DefaultCacheSize = (256 << 20) / 4096

func WithCache(base Blockstore, size int) (*CachingBlockstore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[cid.Cid, block.Block](size)
	if err != nil {
		return nil, err
	}
	return &CachingBlockstore{base: base, cache: c}, nil
}

var _ Blockstore = (*CachingBlockstore)(nil)

func (c *CachingBlockstore) Get(ctx context.Context, id cid.Cid) (block.Block, error) {
	if b, ok := c.cache.Get(id); ok {
		return b, nil
	}
	b, err := c.base.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, b)
	return b, nil
}

func (c *CachingBlockstore) Put(ctx context.Context, b block.Block) error {
	if err := c.base.Put(ctx, b); err != nil {
		return err
	}
	c.cache.Add(b.Cid(), b)
	return nil
}

func (c *CachingBlockstore) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if _, ok := c.cache.Get(id); ok {
		return true, nil
	}
	return c.base.Has(ctx, id)
}
