package client

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/lotus-lite/chain/sigs"
	"github.com/filecoin-project/lotus-lite/chain/types"
)

func genKeyInfo(t *testing.T) types.KeyInfo {
	t.Helper()
	pk, err := sigs.Generate(sigs.SigTypeSecp256k1)
	require.NoError(t, err)
	return types.KeyInfo{Type: KeyTypeSecp256k1, PrivateKey: pk}
}

func TestKeyInfoAddress(t *testing.T) {
	ki := genKeyInfo(t)
	addr, err := KeyInfoAddress(ki)
	require.NoError(t, err)
	require.False(t, addr.Empty())

	_, err = KeyInfoAddress(types.KeyInfo{Type: "bls"})
	require.Error(t, err)
}

func TestMemKeystoreDefaultIsFirstInserted(t *testing.T) {
	ks := NewMemKeystore()
	_, _, err := ks.Default()
	require.ErrorIs(t, err, types.ErrEmptyKeyStore)

	first := genKeyInfo(t)
	second := genKeyInfo(t)
	require.NoError(t, ks.Put("b-key", second))
	require.NoError(t, ks.Put("a-key", first))

	name, ki, err := ks.Default()
	require.NoError(t, err)
	require.Equal(t, "b-key", name)
	require.Equal(t, second, ki)

	names, err := ks.List()
	require.NoError(t, err)
	require.Equal(t, []string{"a-key", "b-key"}, names)

	require.NoError(t, ks.Delete("b-key"))
	name, _, err = ks.Default()
	require.NoError(t, err)
	require.Equal(t, "a-key", name)

	_, err = ks.Get("b-key")
	require.ErrorIs(t, err, types.ErrKeyInfoNotFound)
}
