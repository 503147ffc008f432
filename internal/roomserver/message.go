package roomserver

import "github.com/BioHazard786/roomview/internal/protocol"

// inbound is a frame read from a client, queued for the hub.
type inbound struct {
	protocol.Message

	// client is the client that sent the message.
	client *Client
}

type roomRequest struct {
	id    string
	reply chan roomReply
}

type roomReply struct {
	id      string
	created bool
}

type tokenRequest struct {
	roomID string
	reply  chan tokenReply
}

type tokenReply struct {
	token string
	err   error
}
