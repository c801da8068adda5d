package blockstore

import (
	"context"
	"testing"

	block "github.com/ipfs/go-block-format"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/lotus-lite/chain/types"
)

func TestMemBlockstoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := NewMemBlockstore()

	b := block.NewBlock([]byte("hello world"))
	require.NoError(t, bs.Put(ctx, b))

	has, err := bs.Has(ctx, b.Cid())
	require.NoError(t, err)
	require.True(t, has)

	got, err := bs.Get(ctx, b.Cid())
	require.NoError(t, err)
	require.Equal(t, b.RawData(), got.RawData())
}

func TestMemBlockstoreMiss(t *testing.T) {
	ctx := context.Background()
	bs := NewMemBlockstore()
	b := block.NewBlock([]byte("missing"))

	_, err := bs.Get(ctx, b.Cid())
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestCachingBlockstoreDelegatesAndCaches(t *testing.T) {
	ctx := context.Background()
	base := NewMemBlockstore()
	cached, err := WithCache(base, 8)
	require.NoError(t, err)

	b := block.NewBlock([]byte("cached block"))
	require.NoError(t, cached.Put(ctx, b))

	got, err := cached.Get(ctx, b.Cid())
	require.NoError(t, err)
	require.Equal(t, b.RawData(), got.RawData())

	baseGot, err := base.Get(ctx, b.Cid())
	require.NoError(t, err)
	require.Equal(t, b.RawData(), baseGot.RawData())
}
