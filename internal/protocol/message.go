// Package protocol defines the frames exchanged between the session
// transport and the room server. Frames are msgpack-encoded and sent as
// binary websocket messages.
package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message type constants.
const (
	// client to server
	TypeJoin      = "join"
	TypePublish   = "publish"
	TypeSubscribe = "subscribe"
	TypeAnswer    = "answer"
	TypeSignal    = "signal"
	TypeLeave     = "leave"

	// server to client
	TypeJoined          = "joined"
	TypePublished       = "published"
	TypeStreamCreated   = "stream_created"
	TypeStreamDestroyed = "stream_destroyed"
	TypeError           = "error"
)

// Destroy reasons carried by stream_destroyed.
const (
	ReasonDisconnect        = "disconnect"
	ReasonNetworkDisconnect = "networkDisconnect"
)

// Message is the envelope of every frame.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// JoinPayload asks to join the room a token was issued for.
type JoinPayload struct {
	Token    string `msgpack:"token"`
	Metadata string `msgpack:"metadata"`
}

// JoinedPayload confirms a join.
type JoinedPayload struct {
	ConnectionID string `msgpack:"connectionId"`
	Room         string `msgpack:"room"`
}

// StreamPayload describes a published stream. Reason is only set on
// stream_destroyed.
type StreamPayload struct {
	StreamID       string `msgpack:"streamId"`
	ConnectionID   string `msgpack:"connectionId"`
	ConnectionData string `msgpack:"connectionData"`
	Reason         string `msgpack:"reason,omitempty"`
}

// SignalPayload is an application signal. From is filled in by the server.
type SignalPayload struct {
	Type string `msgpack:"type"`
	From string `msgpack:"from,omitempty"`
	Data string `msgpack:"data"`
}

// SubscribePayload carries a subscriber's SDP offer for a stream. The server
// sets From to the subscriber's connection before forwarding it.
type SubscribePayload struct {
	StreamID string `msgpack:"streamId"`
	From     string `msgpack:"from,omitempty"`
	SDP      string `msgpack:"sdp"`
}

// AnswerPayload carries the publisher's SDP answer back to subscriber To.
type AnswerPayload struct {
	To       string `msgpack:"to"`
	StreamID string `msgpack:"streamId"`
	SDP      string `msgpack:"sdp"`
}

// ErrorPayload reports a failed request. Ref names the stream a failed
// subscribe was for; To routes a publisher's error back to the subscriber.
type ErrorPayload struct {
	Error string `msgpack:"error"`
	Ref   string `msgpack:"ref,omitempty"`
	To    string `msgpack:"to,omitempty"`
}

// NewMessage creates a new Message with the given type and payload. A nil
// payload leaves the message without one.
func NewMessage(t string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}

	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	if err := msgpack.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Marshal builds a message and encodes it to a frame in one step.
func Marshal(t string, payload any) ([]byte, error) {
	m, err := NewMessage(t, payload)
	if err != nil {
		return nil, err
	}
	return Encode(m)
}

func Encode(m Message) ([]byte, error) {
	return msgpack.Marshal(m)
}

func Decode(frame []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(frame, &m); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	return m, nil
}
