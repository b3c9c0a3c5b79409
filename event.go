package courier

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/outofforest/courier/codec"
	"github.com/outofforest/courier/wire"
)

// Payload holds message arguments, either as values passed within the process
// or as bytes received from the wire.
type Payload struct {
	values     []any
	raw        []byte
	serializer codec.Serializer
}

// Args returns arguments as values. Arguments received from the wire are decoded
// into generic types.
func (p Payload) Args() ([]any, error) {
	if p.raw == nil {
		return p.values, nil
	}
	return p.serializer.Unmarshal(p.raw)
}

// Decode decodes arguments into destinations, one destination per argument.
func (p Payload) Decode(dst ...any) error {
	raw := p.raw
	if raw == nil {
		if p.serializer == nil {
			return errors.New("payload is empty")
		}
		var err error
		raw, err = p.serializer.Marshal(p.values)
		if err != nil {
			return err
		}
	}
	return p.serializer.UnmarshalInto(raw, dst...)
}

// Result is the value request was resolved with.
type Result struct {
	Payload
}

// Value returns the value request was resolved with.
func (r Result) Value() (any, error) {
	args, err := r.Args()
	if err != nil || len(args) == 0 {
		return nil, err
	}
	return args[0], nil
}

// Listener receives events from the channel it is registered on.
type Listener func(event *Event)

// ListenerID identifies listener registered by client.
type ListenerID uint64

// Event is the message delivered to the listener.
type Event struct {
	Payload

	// Channel is the channel message was sent on.
	Channel string

	// Sender is the peer which sent the message.
	Sender wire.Peer

	// Request is set when sender waits for the response.
	Request *Responder

	// Client is the client listener is registered by.
	Client *Client
}

// Responder settles the request delivered to the listener. Only the first call
// to Resolve or Reject has effect.
type Responder struct {
	id      wire.RequestID
	channel string
	settled atomic.Bool
	resolve func(value any)
	reject  func(err error)
}

// ID returns ID of the request.
func (r *Responder) ID() wire.RequestID {
	return r.id
}

// Channel returns channel of the request.
func (r *Responder) Channel() string {
	return r.channel
}

// Resolve responds with value. It returns false if request was already settled.
func (r *Responder) Resolve(value any) bool {
	if !r.settled.CompareAndSwap(false, true) {
		return false
	}
	r.resolve(value)
	return true
}

// Reject responds with error. It returns false if request was already settled.
func (r *Responder) Reject(err error) bool {
	if !r.settled.CompareAndSwap(false, true) {
		return false
	}
	if err == nil {
		err = errors.New("request rejected")
	}
	r.reject(err)
	return true
}

// IsSettled returns true if request was resolved or rejected.
func (r *Responder) IsSettled() bool {
	return r.settled.Load()
}
