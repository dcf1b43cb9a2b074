package relay

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"
)

type fakePeer struct {
	id     string
	frames chan []byte
	closed atomic.Bool
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id, frames: make(chan []byte, 64)}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Deliver(frame []byte) bool {
	select {
	case p.frames <- frame:
		return true
	default:
		return false
	}
}

func (p *fakePeer) Close() { p.closed.Store(true) }

// next returns the next frame delivered to p.
func (p *fakePeer) next(t *testing.T) Envelope {
	t.Helper()

	select {
	case frame := <-p.frames:
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("peer %s got undecodable frame %q: %v", p.id, frame, err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("peer %s: timed out waiting for a frame", p.id)
		return Envelope{}
	}
}

// none fails if p receives anything within wait.
func (p *fakePeer) none(t *testing.T, wait time.Duration) {
	t.Helper()

	select {
	case frame := <-p.frames:
		t.Fatalf("peer %s: unexpected frame %s", p.id, frame)
	case <-time.After(wait):
	}
}

// awaitCount reads frames until a user_count of want arrives.
func (p *fakePeer) awaitCount(t *testing.T, want int) {
	t.Helper()

	for {
		env := p.next(t)
		if env.Event != KindUserCount {
			t.Fatalf("peer %s: want user_count, got %s", p.id, env.Event)
		}
		var payload struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("decode user_count: %v", err)
		}
		if payload.Count == want {
			return
		}
	}
}

func decode[T any](t *testing.T, env Envelope) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", env.Event, err)
	}
	return v
}
