package client

import (
	"sync"

	"github.com/filecoin-project/lotus-lite/chain/address"
)

// NonceTracker is the §5 nonceTracker: address -> next-nonce counter,
// mutated by Next and Observe under the tracker's own mutex so two
// concurrent pushes yield distinct, consecutive nonces.
type NonceTracker struct {
	mu   sync.Mutex
	next map[string]uint64
}

func NewNonceTracker() *NonceTracker {
	return &NonceTracker{next: make(map[string]uint64)}
}

// Next returns the next nonce for addr and increments the counter,
// serialized so concurrent callers for the same address never observe
// the same value twice.
func (t *NonceTracker) Next(addr address.Address) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := string(addr.Bytes())
	n := t.next[key]
	t.next[key] = n + 1
	return n
}

// Observe advances the tracked nonce for addr to at least n+1, for
// when a message is discovered on-chain with a nonce the tracker
// hasn't issued itself (e.g. sent from another client instance).
func (t *NonceTracker) Observe(addr address.Address, n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := string(addr.Bytes())
	if t.next[key] <= n {
		t.next[key] = n + 1
	}
}
