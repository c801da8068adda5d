package client

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/lotus-lite/chain/address"
)

func TestNonceTrackerMonotonic(t *testing.T) {
	nt := NewNonceTracker()
	addr := address.NewIDAddress(1)

	require.EqualValues(t, 0, nt.Next(addr))
	require.EqualValues(t, 1, nt.Next(addr))
	require.EqualValues(t, 2, nt.Next(addr))

	other := address.NewIDAddress(2)
	require.EqualValues(t, 0, nt.Next(other))
}

func TestNonceTrackerObserve(t *testing.T) {
	nt := NewNonceTracker()
	addr := address.NewIDAddress(1)

	nt.Observe(addr, 10)
	require.EqualValues(t, 11, nt.Next(addr))

	// Observing a lower nonce than what's already tracked must not
	// roll the counter backward.
	nt.Observe(addr, 3)
	require.EqualValues(t, 12, nt.Next(addr))
}

func TestNonceTrackerConcurrent(t *testing.T) {
	nt := NewNonceTracker()
	addr := address.NewIDAddress(1)

	const n = 100
	seen := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			seen[i] = nt.Next(addr)
		}()
	}
	wg.Wait()

	dedup := make(map[uint64]bool, n)
	for _, v := range seen {
		require.False(t, dedup[v], "nonce %d issued twice", v)
		dedup[v] = true
	}
}
