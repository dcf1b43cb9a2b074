package relay

import "github.com/samber/lo"

// Peer is one live connection as seen by the hub.
type Peer interface {
	ID() string
	// Deliver queues an encoded frame without blocking. It reports false
	// when the frame was dropped.
	Deliver(frame []byte) bool
	// Close is called once, after the peer has left the registry.
	Close()
}

// Registry tracks the active connections. Observers receive broadcasts like
// any other peer but are not part of the count. It is owned by the hub
// goroutine and is not safe for concurrent use.
type Registry struct {
	peers     map[string]Peer
	observers map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		peers:     make(map[string]Peer),
		observers: make(map[string]struct{}),
	}
}

// Connect adds p and returns the new count. Adding a peer that is already
// registered changes nothing and reports false.
func (r *Registry) Connect(p Peer) (int, bool) {
	if _, ok := r.peers[p.ID()]; ok {
		return r.Count(), false
	}
	r.peers[p.ID()] = p
	return r.Count(), true
}

// Observe adds p as an observer. The count is unchanged.
func (r *Registry) Observe(p Peer) bool {
	if _, ok := r.peers[p.ID()]; ok {
		return false
	}
	r.peers[p.ID()] = p
	r.observers[p.ID()] = struct{}{}
	return true
}

// Disconnect removes p and returns the new count. Removing an unknown peer
// changes nothing and reports false, so the count never goes below zero.
func (r *Registry) Disconnect(p Peer) (int, bool) {
	if _, ok := r.peers[p.ID()]; !ok {
		return r.Count(), false
	}
	delete(r.peers, p.ID())
	delete(r.observers, p.ID())
	return r.Count(), true
}

// IsObserver reports whether id was added with Observe.
func (r *Registry) IsObserver(id string) bool {
	_, ok := r.observers[id]
	return ok
}

// Count returns the number of active connections, observers excluded.
func (r *Registry) Count() int {
	return len(r.peers) - len(r.observers)
}

// Lookup returns the peer with the given id.
func (r *Registry) Lookup(id string) (Peer, bool) {
	p, ok := r.peers[id]
	return p, ok
}

// Peers returns a snapshot of the active connections.
func (r *Registry) Peers() []Peer {
	return lo.Values(r.peers)
}

// Reset removes every peer and returns them.
func (r *Registry) Reset() []Peer {
	peers := r.Peers()
	r.peers = make(map[string]Peer)
	r.observers = make(map[string]struct{})
	return peers
}
