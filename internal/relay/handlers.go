package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/johndosdos/relay/internal/apperrors"
	"github.com/johndosdos/relay/internal/model"
)

// Notices sent back to the originating connection.
const (
	MsgRequired    = "Username and content are required"
	MsgTooLong     = "Username or content is too long"
	MsgSendFailed  = "Failed to send message"
	MsgRateLimited = "Too many messages. Try again later."
)

// Audience selects which connections receive a delivery.
type Audience int

const (
	// Everyone is every active connection, the origin included.
	Everyone Audience = iota
	// Others is every active connection except the origin.
	Others
	// OriginOnly is the originating connection alone.
	OriginOnly
)

// Delivery is one outbound event and who gets it.
type Delivery struct {
	Audience Audience
	Origin   string
	Event    Envelope
}

func (d Delivery) reaches(id string) bool {
	switch d.Audience {
	case Everyone:
		return true
	case Others:
		return id != d.Origin
	default:
		return id == d.Origin
	}
}

// Submission is a validated message waiting to be stored.
type Submission struct {
	Origin   string
	Username string
	Content  string
}

// Outcome is what handling an event produces: deliveries to fan out and,
// for accepted messages, a write for the store. Err records why the origin
// got an error notice, if it did.
type Outcome struct {
	Deliveries []Delivery
	Persist    *Submission
	Err        error
}

// HandlerFunc handles one inbound event from origin.
type HandlerFunc func(origin string, data json.RawMessage) Outcome

var errTooLong = errors.New("field too long")

func isRequired(fe validator.FieldError) bool {
	return fe.Tag() == "required"
}

// Dispatcher maps inbound event kinds to handlers. Handlers only look at
// their arguments, so a Dispatcher can be exercised without a hub.
type Dispatcher struct {
	validate         *validator.Validate
	maxContentLength int
	table            map[Kind]HandlerFunc
}

// NewDispatcher returns a Dispatcher enforcing maxContentLength runes of
// content. A non-positive maxContentLength disables the cap.
func NewDispatcher(maxContentLength int) *Dispatcher {
	d := &Dispatcher{
		validate:         validator.New(),
		maxContentLength: maxContentLength,
	}

	d.table = map[Kind]HandlerFunc{
		KindSendMessage: d.submitMessage,
		KindTyping:      d.relayTyping(KindUserTyping),
		KindStopTyping:  d.relayTyping(KindUserStopTyping),
	}

	return d
}

// Lookup returns the handler for kind.
func (d *Dispatcher) Lookup(kind Kind) (HandlerFunc, bool) {
	h, ok := d.table[kind]
	return h, ok
}

// Validate decodes and checks a send_message payload. Fields are stored and
// relayed exactly as sent; only empty ones count as missing.
func (d *Dispatcher) Validate(data json.RawMessage) (model.SendMessage, error) {
	var in model.SendMessage
	if len(data) == 0 {
		return in, fmt.Errorf("%w: missing payload", apperrors.ErrValidation)
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("%w: decode payload: %v", apperrors.ErrValidation, err)
	}

	if err := d.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && !lo.SomeBy(verrs, isRequired) {
			return in, fmt.Errorf("%w: %w: %v", apperrors.ErrValidation, errTooLong, err)
		}
		return in, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	if d.maxContentLength > 0 {
		if err := d.validate.Var(in.Content, fmt.Sprintf("max=%d", d.maxContentLength)); err != nil {
			return in, fmt.Errorf("%w: %w: content: %v", apperrors.ErrValidation, errTooLong, err)
		}
	}

	return in, nil
}

func (d *Dispatcher) submitMessage(origin string, data json.RawMessage) Outcome {
	in, err := d.Validate(data)
	if err != nil {
		notice := MsgRequired
		if errors.Is(err, errTooLong) {
			notice = MsgTooLong
		}
		return Reject(origin, notice, err)
	}

	return Outcome{
		Persist: &Submission{
			Origin:   origin,
			Username: in.Username,
			Content:  in.Content,
		},
	}
}

func (d *Dispatcher) relayTyping(out Kind) HandlerFunc {
	return func(origin string, data json.RawMessage) Outcome {
		var in model.Typing
		if len(data) > 0 {
			// No validation on typing signals; an undecodable payload
			// relays an empty name.
			_ = json.Unmarshal(data, &in)
		}

		return Outcome{
			Deliveries: []Delivery{{
				Audience: Others,
				Origin:   origin,
				Event:    mustEnvelope(out, model.Typing{Username: in.Username}),
			}},
		}
	}
}

// Persisted turns the result of a store write into deliveries: the stored
// message to everyone, or an error notice to the origin alone.
func Persisted(sub Submission, msg model.Message, err error) Outcome {
	if err != nil {
		if !errors.Is(err, apperrors.ErrPersistence) {
			err = fmt.Errorf("%w: %v", apperrors.ErrPersistence, err)
		}
		return Reject(sub.Origin, MsgSendFailed, err)
	}

	return Outcome{
		Deliveries: []Delivery{{
			Audience: Everyone,
			Origin:   sub.Origin,
			Event:    mustEnvelope(KindNewMessage, msg),
		}},
	}
}

// Presence broadcasts the connection count to everyone.
func Presence(count int) Outcome {
	return Outcome{
		Deliveries: []Delivery{{
			Audience: Everyone,
			Event:    mustEnvelope(KindUserCount, model.UserCount{Count: count}),
		}},
	}
}

// PresenceFor sends the connection count to origin alone.
func PresenceFor(origin string, count int) Outcome {
	return Outcome{
		Deliveries: []Delivery{{
			Audience: OriginOnly,
			Origin:   origin,
			Event:    mustEnvelope(KindUserCount, model.UserCount{Count: count}),
		}},
	}
}

// Cleared tells everyone to drop their local history.
func Cleared() Outcome {
	return Outcome{
		Deliveries: []Delivery{{
			Audience: Everyone,
			Event:    mustEnvelope(KindMessagesCleared, nil),
		}},
	}
}

// Reject sends an error notice to origin only.
func Reject(origin, notice string, cause error) Outcome {
	return Outcome{
		Deliveries: []Delivery{{
			Audience: OriginOnly,
			Origin:   origin,
			Event:    mustEnvelope(KindError, model.ErrorNotice{Message: notice}),
		}},
		Err: cause,
	}
}
