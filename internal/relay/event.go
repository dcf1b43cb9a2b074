package relay

import (
	"encoding/json"
	"fmt"
)

// Kind names an event on the wire.
type Kind string

// Inbound kinds.
const (
	KindSendMessage Kind = "send_message"
	KindTyping      Kind = "typing"
	KindStopTyping  Kind = "stop_typing"
)

// Outbound kinds.
const (
	KindNewMessage      Kind = "new_message"
	KindUserCount       Kind = "user_count"
	KindUserTyping      Kind = "user_typing"
	KindUserStopTyping  Kind = "user_stop_typing"
	KindMessagesCleared Kind = "messages_cleared"
	KindError           Kind = "error"
)

// Envelope is one WebSocket text frame. Data is left out for events that
// carry no payload.
type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes payload as the data of a kind event. A nil payload
// yields an envelope without data.
func NewEnvelope(kind Kind, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: kind}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("internal/relay: encode %s payload: %w", kind, err)
	}

	return Envelope{Event: kind, Data: data}, nil
}

// mustEnvelope is NewEnvelope for payload types that always marshal.
func mustEnvelope(kind Kind, payload any) Envelope {
	env, err := NewEnvelope(kind, payload)
	if err != nil {
		panic(err)
	}
	return env
}
