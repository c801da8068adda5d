// Package client implements the §4.7 orchestrator: key storage, nonce
// tracking, message push, head tracking and the waitMessage inclusion
// wait, wired on top of the block-store, gas, codec and sub packages.
package client

import (
	"fmt"
	"sort"
	"sync"

	"github.com/filecoin-project/lotus-lite/chain/address"
	"github.com/filecoin-project/lotus-lite/chain/sigs"
	"github.com/filecoin-project/lotus-lite/chain/types"
)

// KeyTypeSecp256k1 is the only types.KeyInfo.Type this client
// generates or accepts; sigs has no other signer registered.
const KeyTypeSecp256k1 = "secp256k1"

// KeyInfoAddress derives the secp256k1 address a KeyInfo's private key
// signs for.
func KeyInfoAddress(ki types.KeyInfo) (address.Address, error) {
	if ki.Type != KeyTypeSecp256k1 {
		return address.Undef, fmt.Errorf("client: unsupported key type %q", ki.Type)
	}
	pub, err := sigs.ToPublic(sigs.SigTypeSecp256k1, ki.PrivateKey)
	if err != nil {
		return address.Undef, err
	}
	return address.NewSecp256k1Address(pub)
}

// MemKeystore is the process-local, non-persistent types.KeyStore the
// spec's §1 Non-goals call for. Insertion order is tracked explicitly
// because pushMessage's "pick the single available key" needs a
// deterministic choice (Open Question #3: first-by-insertion-order)
// when more than one key has been imported.
type MemKeystore struct {
	mu    sync.RWMutex
	keys  map[string]types.KeyInfo
	order []string
}

func NewMemKeystore() *MemKeystore {
	return &MemKeystore{keys: make(map[string]types.KeyInfo)}
}

func (m *MemKeystore) Get(name string) (types.KeyInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ki, ok := m.keys[name]
	if !ok {
		return types.KeyInfo{}, types.ErrKeyInfoNotFound
	}
	return ki, nil
}

func (m *MemKeystore) Put(name string, ki types.KeyInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.keys[name]; !exists {
		m.order = append(m.order, name)
	}
	m.keys[name] = ki
	return nil
}

func (m *MemKeystore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemKeystore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	sort.Strings(out)
	return out, nil
}

// Default returns the key pushMessage uses when a caller doesn't name
// one explicitly: the first key imported, per Open Question #3.
func (m *MemKeystore) Default() (name string, ki types.KeyInfo, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return "", types.KeyInfo{}, types.ErrEmptyKeyStore
	}
	name = m.order[0]
	return name, m.keys[name], nil
}
