package blockstore

import (
	"context"

	block "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	badger "github.com/ipfs/go-ds-badger2"
	"github.com/multiformats/go-base32"

	"github.com/filecoin-project/lotus-lite/chain/types"
)

// DatastoreBlockstore adapts any go-datastore to the Blockstore
// interface, keyed by the base32 encoding of the CID's bytes, in the
// shape lotus's badger-backed repo blockstore uses.
type DatastoreBlockstore struct {
	ds ds.Batching
}

// NewBadgerBlockstore opens a badger2-backed datastore at path and
// wraps it as a Blockstore. Closing is the caller's responsibility via
// Close.
func NewBadgerBlockstore(path string) (*DatastoreBlockstore, error) {
	bds, err := badger.NewDatastore(path, nil)
	if err != nil {
		return nil, err
	}
	return &DatastoreBlockstore{ds: bds}, nil
}

// NewDatastoreBlockstore wraps an already-open datastore.
func NewDatastoreBlockstore(d ds.Batching) *DatastoreBlockstore {
	return &DatastoreBlockstore{ds: d}
}

func dsKey(c cid.Cid) ds.Key {
	return ds.NewKey(base32.RawStdEncoding.EncodeToString(c.Bytes()))
}

func (d *DatastoreBlockstore) Get(ctx context.Context, c cid.Cid) (block.Block, error) {
	data, err := d.ds.Get(ctx, dsKey(c))
	if err != nil {
		if err == ds.ErrNotFound {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return block.NewBlockWithCid(data, c)
}

func (d *DatastoreBlockstore) Put(ctx context.Context, b block.Block) error {
	return d.ds.Put(ctx, dsKey(b.Cid()), b.RawData())
}

func (d *DatastoreBlockstore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	return d.ds.Has(ctx, dsKey(c))
}

// Close closes the underlying datastore if it supports it.
func (d *DatastoreBlockstore) Close() error {
	if closer, ok := d.ds.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// ForEach iterates every block key in the underlying datastore and
// calls fn with the CID each key decodes to.
func (d *DatastoreBlockstore) ForEach(ctx context.Context, fn func(cid.Cid) error) error {
	results, err := d.ds.Query(ctx, dsq.Query{KeysOnly: true})
	if err != nil {
		return err
	}
	defer results.Close()

	for r := range results.Next() {
		if r.Error != nil {
			return r.Error
		}
		raw, err := base32.RawStdEncoding.DecodeString(ds.NewKey(r.Key).Name())
		if err != nil {
			continue
		}
		c, err := cid.Cast(raw)
		if err != nil {
			continue
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
