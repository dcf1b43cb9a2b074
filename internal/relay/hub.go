// Package relay fans chat events out to every live connection. A single Hub
// goroutine owns the connection registry and dispatches inbound events in
// arrival order; store writes run off that goroutine and report back to it.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/johndosdos/relay/internal/model"
)

//go:generate mockgen -destination=../mocks/mock_store.go -package=mocks github.com/johndosdos/relay/internal/relay Store

// Store is the durable message log behind the relay.
type Store interface {
	AppendMessage(ctx context.Context, username, content string) (model.Message, error)
	ListRecentMessages(ctx context.Context, limit int) ([]model.Message, error)
	DeleteAllMessages(ctx context.Context) error
}

// ErrHubStopped is returned to callers once Run has exited.
var ErrHubStopped = errors.New("internal/relay: hub stopped")

// Registration asks the hub to add a peer. Done is closed once the peer is
// registered. Observers are left out of the connection count.
type Registration struct {
	Peer     Peer
	Observer bool
	Done     chan struct{}
}

// Inbound is one event received from a connection.
type Inbound struct {
	Origin string
	Event  Envelope
}

type persisted struct {
	sub Submission
	msg model.Message
	err error
}

// Hub contains the state shared by every connection.
type Hub struct {
	store      Store
	registry   *Registry
	dispatcher *Dispatcher

	register   chan Registration
	unregister chan Peer
	inbound    chan Inbound
	notices    chan Outcome
	persisted  chan persisted
	done       chan struct{}

	count atomic.Int64
}

// NewHub returns a new instance of Hub.
func NewHub(store Store, maxContentLength int) *Hub {
	return &Hub{
		store:      store,
		registry:   NewRegistry(),
		dispatcher: NewDispatcher(maxContentLength),
		register:   make(chan Registration),
		unregister: make(chan Peer),
		inbound:    make(chan Inbound, 1024),
		notices:    make(chan Outcome, 64),
		persisted:  make(chan persisted, 64),
		done:       make(chan struct{}),
	}
}

// Run manages incoming and outgoing hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case reg := <-h.register:
			if reg.Observer {
				ok := h.registry.Observe(reg.Peer)
				close(reg.Done)
				if ok {
					slog.InfoContext(ctx, "observer connected",
						"conn_id", reg.Peer.ID())
					h.apply(ctx, PresenceFor(reg.Peer.ID(), h.registry.Count()))
				}
				continue
			}

			count, ok := h.registry.Connect(reg.Peer)
			if ok {
				h.count.Store(int64(count))
			}
			close(reg.Done)
			if !ok {
				continue
			}
			slog.InfoContext(ctx, "client connected",
				"conn_id", reg.Peer.ID(),
				"count", count)
			h.apply(ctx, Presence(count))

		case peer := <-h.unregister:
			observer := h.registry.IsObserver(peer.ID())
			count, ok := h.registry.Disconnect(peer)
			if !ok {
				continue
			}
			peer.Close()
			if observer {
				slog.InfoContext(ctx, "observer disconnected",
					"conn_id", peer.ID())
				continue
			}
			h.count.Store(int64(count))
			slog.InfoContext(ctx, "client disconnected",
				"conn_id", peer.ID(),
				"count", count)
			h.apply(ctx, Presence(count))

		case in := <-h.inbound:
			h.dispatch(ctx, in)

		case res := <-h.persisted:
			out := Persisted(res.sub, res.msg, res.err)
			if out.Err != nil {
				slog.ErrorContext(ctx, "failed to store message",
					"error", out.Err,
					"conn_id", res.sub.Origin,
					"username", res.sub.Username)
			} else {
				slog.InfoContext(ctx, "message stored",
					"id", res.msg.ID,
					"username", res.msg.Username)
			}
			h.apply(ctx, out)

		case out := <-h.notices:
			h.apply(ctx, out)

		case <-ctx.Done():
			peers := h.registry.Reset()
			for _, p := range peers {
				p.Close()
			}
			h.count.Store(0)
			slog.InfoContext(ctx, "hub stopped",
				"closed", len(peers),
				"reason", ctx.Err())
			return
		}
	}
}

// dispatch runs the handler for in. A panicking handler is logged and the
// event dropped.
func (h *Hub) dispatch(ctx context.Context, in Inbound) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "recovered from panic in event handler",
				"panic", r,
				"event", in.Event.Event,
				"conn_id", in.Origin)
		}
	}()

	handle, ok := h.dispatcher.Lookup(in.Event.Event)
	if !ok {
		slog.WarnContext(ctx, "ignoring unknown event",
			"event", in.Event.Event,
			"conn_id", in.Origin)
		return
	}

	out := handle(in.Origin, in.Event.Data)
	if out.Err != nil {
		slog.WarnContext(ctx, "rejected event",
			"event", in.Event.Event,
			"conn_id", in.Origin,
			"error", out.Err)
	}

	h.apply(ctx, out)

	if out.Persist != nil {
		h.persist(ctx, *out.Persist)
	}
}

// persist writes sub off the hub goroutine so a slow store does not hold up
// other connections. There is no timeout; the write lives as long as ctx.
func (h *Hub) persist(ctx context.Context, sub Submission) {
	go func() {
		msg, err := h.store.AppendMessage(ctx, sub.Username, sub.Content)
		select {
		case h.persisted <- persisted{sub: sub, msg: msg, err: err}:
		case <-ctx.Done():
		}
	}()
}

// apply fans every delivery of out to the peers it reaches. A peer whose
// queue is full misses the frame.
func (h *Hub) apply(ctx context.Context, out Outcome) {
	for _, d := range out.Deliveries {
		frame, err := json.Marshal(d.Event)
		if err != nil {
			slog.ErrorContext(ctx, "failed to encode event",
				"event", d.Event.Event,
				"error", err)
			continue
		}

		if d.Audience == OriginOnly {
			if p, ok := h.registry.Lookup(d.Origin); ok {
				h.deliver(ctx, p, d.Event.Event, frame)
			}
			continue
		}

		for _, p := range h.registry.Peers() {
			if d.reaches(p.ID()) {
				h.deliver(ctx, p, d.Event.Event, frame)
			}
		}
	}
}

func (h *Hub) deliver(ctx context.Context, p Peer, kind Kind, frame []byte) {
	if !p.Deliver(frame) {
		slog.WarnContext(ctx, "skipping message payload - channel full or client slow",
			"conn_id", p.ID(),
			"event", kind)
	}
}

// Join registers peer and waits until the hub has counted it.
func (h *Hub) Join(ctx context.Context, peer Peer) error {
	return h.join(ctx, Registration{Peer: peer, Done: make(chan struct{})})
}

// Watch registers a read-only peer. It gets every broadcast, starting with
// the current count, without changing the count other connections see.
func (h *Hub) Watch(ctx context.Context, peer Peer) error {
	return h.join(ctx, Registration{Peer: peer, Observer: true, Done: make(chan struct{})})
}

func (h *Hub) join(ctx context.Context, reg Registration) error {
	select {
	case h.register <- reg:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once the hub has the registration it will count the peer, so the
	// caller must not see an error it would skip Leave for.
	select {
	case <-reg.Done:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Leave unregisters peer. The hub closes the peer once it is removed.
func (h *Hub) Leave(ctx context.Context, peer Peer) {
	select {
	case h.unregister <- peer:
	case <-h.done:
	case <-ctx.Done():
	}
}

// Submit queues an inbound event from origin.
func (h *Hub) Submit(ctx context.Context, origin string, ev Envelope) error {
	if h.stopped() {
		return ErrHubStopped
	}

	select {
	case h.inbound <- Inbound{Origin: origin, Event: ev}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reject sends an error notice to origin without going through a handler.
func (h *Hub) Reject(ctx context.Context, origin, notice string, cause error) error {
	return h.notify(ctx, Reject(origin, notice, cause))
}

// ClearAll deletes every stored message and then tells every connection to
// drop its history. Nothing is broadcast when the delete fails.
func (h *Hub) ClearAll(ctx context.Context) error {
	if err := h.store.DeleteAllMessages(ctx); err != nil {
		return fmt.Errorf("internal/relay: clear messages: %w", err)
	}

	if err := h.notify(ctx, Cleared()); err != nil {
		slog.WarnContext(ctx, "messages cleared but broadcast failed",
			"error", err)
	}

	return nil
}

// Count returns the number of active connections. Safe from any goroutine.
func (h *Hub) Count() int {
	return int(h.count.Load())
}

func (h *Hub) notify(ctx context.Context, out Outcome) error {
	if h.stopped() {
		return ErrHubStopped
	}

	select {
	case h.notices <- out:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
