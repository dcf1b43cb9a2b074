package relay

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Connect_Disconnect(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	a, b := newFakePeer("a"), newFakePeer("b")

	// Given no connection
	req.Zero(registry.Count())

	// When two peers connect
	count, ok := registry.Connect(a)
	req.True(ok)
	req.Equal(1, count)

	count, ok = registry.Connect(b)
	req.True(ok)
	req.Equal(2, count)

	// Then both are tracked
	req.Len(registry.Peers(), 2)
	got, ok := registry.Lookup("a")
	req.True(ok)
	req.Equal(a, got)

	// When one leaves
	count, ok = registry.Disconnect(a)
	req.True(ok)
	req.Equal(1, count)

	// Then only the other is left
	_, ok = registry.Lookup("a")
	req.False(ok)
	req.Equal([]Peer{b}, registry.Peers())
}

func TestRegistry_Duplicate_Connect(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	a := newFakePeer("a")

	registry.Connect(a)
	count, ok := registry.Connect(a)

	req.False(ok)
	req.Equal(1, count)
}

func TestRegistry_Unknown_Disconnect(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	count, ok := registry.Disconnect(newFakePeer("ghost"))

	req.False(ok)
	req.Zero(count)
}

func TestRegistry_Count_Matches_Net_Connections(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		registry := NewRegistry()
		live := map[string]Peer{}
		next := 0

		for step := 0; step < 200; step++ {
			if rnd.Intn(2) == 0 || len(live) == 0 {
				p := newFakePeer(strconv.Itoa(next))
				next++
				count, ok := registry.Connect(p)
				require.True(t, ok)
				live[p.ID()] = p
				require.Equal(t, len(live), count)
				continue
			}

			// Disconnect a live peer, and sometimes one that already left.
			var victim Peer
			for _, p := range live {
				victim = p
				break
			}
			delete(live, victim.ID())
			count, _ := registry.Disconnect(victim)
			require.Equal(t, len(live), count)

			if rnd.Intn(4) == 0 {
				count, ok := registry.Disconnect(victim)
				require.False(t, ok)
				require.Equal(t, len(live), count)
			}

			require.GreaterOrEqual(t, registry.Count(), 0)
		}
	}
}

func TestRegistry_Reset(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Connect(newFakePeer("a"))
	registry.Connect(newFakePeer("b"))

	peers := registry.Reset()

	req.Len(peers, 2)
	req.Zero(registry.Count())
}

func TestRegistry_Observers_Are_Not_Counted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	a, watcher := newFakePeer("a"), newFakePeer("watcher")

	registry.Connect(a)
	req.True(registry.Observe(watcher))
	req.False(registry.Observe(watcher))

	// The observer receives broadcasts but is not a user
	req.Equal(1, registry.Count())
	req.Len(registry.Peers(), 2)
	req.True(registry.IsObserver("watcher"))
	req.False(registry.IsObserver("a"))

	count, ok := registry.Disconnect(watcher)
	req.True(ok)
	req.Equal(1, count)
	req.False(registry.IsObserver("watcher"))
}
