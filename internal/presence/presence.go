package presence

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SignalUserChanged is the signal type presence updates travel under.
const SignalUserChanged = "userChanged"

var ErrMalformed = errors.New("malformed presence message")

// Message is the JSON body of a userChanged signal. Avatar is optional on
// the way in; outbound messages always carry it.
type Message struct {
	Avatar           *string `json:"avatar,omitempty"`
	PlatformIsMobile bool    `json:"platformIsMobile"`
}

// NewMessage builds an outbound presence message.
func NewMessage(avatar string, mobile bool) Message {
	return Message{Avatar: &avatar, PlatformIsMobile: mobile}
}

// Encode returns the signal payload for m.
func Encode(m Message) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode presence: %w", err)
	}
	return string(data), nil
}

// Decode parses an inbound signal payload.
func Decode(data string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return m, nil
}

// AvatarStore is the part of the participant registry presence writes to.
type AvatarStore interface {
	SetRemoteAvatar(connectionID, url string) bool
}

// Apply copies the avatar of m onto the remote participant that sent it.
// It reports whether a participant was updated; unknown senders and
// messages without an avatar leave the store untouched.
func Apply(store AvatarStore, from string, m Message) bool {
	if m.Avatar == nil {
		return false
	}
	return store.SetRemoteAvatar(from, *m.Avatar)
}

// Handle decodes data and applies it.
func Handle(store AvatarStore, from, data string) (bool, error) {
	m, err := Decode(data)
	if err != nil {
		return false, err
	}
	return Apply(store, from, m), nil
}
