package roomserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/BioHazard786/roomview/internal/protocol"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrHubStopped   = errors.New("hub stopped")
)

// Hub is the single goroutine that owns every room, connection and token.
type Hub struct {
	rooms  map[string]*Room
	tokens map[string]string // token -> room id

	register   chan *Client
	unregister chan *Client
	inbound    chan *inbound
	createRoom chan roomRequest
	issueToken chan tokenRequest

	done chan struct{}
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		tokens:     make(map[string]string),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan *inbound),
		createRoom: make(chan roomRequest),
		issueToken: make(chan tokenRequest),
		done:       make(chan struct{}),
	}
}

// Run processes hub traffic until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			slog.Debug("client registered", "remote", client.conn.RemoteAddr().String())

		case client := <-h.unregister:
			h.leave(client, protocol.ReasonNetworkDisconnect)
			close(client.send)

		case req := <-h.createRoom:
			req.reply <- h.handleCreateRoom(req.id)

		case req := <-h.issueToken:
			req.reply <- h.handleIssueToken(req.roomID)

		case msg := <-h.inbound:
			h.handle(msg)
		}
	}
}

// CreateRoom creates a room, generating an id when id is empty. created is
// false when the room already existed.
func (h *Hub) CreateRoom(ctx context.Context, id string) (roomID string, created bool, err error) {
	req := roomRequest{id: id, reply: make(chan roomReply, 1)}
	select {
	case h.createRoom <- req:
	case <-h.done:
		return "", false, ErrHubStopped
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
	reply := <-req.reply
	return reply.id, reply.created, nil
}

// IssueToken returns a single-use token for joining roomID.
func (h *Hub) IssueToken(ctx context.Context, roomID string) (string, error) {
	req := tokenRequest{roomID: roomID, reply: make(chan tokenReply, 1)}
	select {
	case h.issueToken <- req:
	case <-h.done:
		return "", ErrHubStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
	reply := <-req.reply
	return reply.token, reply.err
}

func (h *Hub) handleCreateRoom(id string) roomReply {
	if id == "" {
		for {
			id = roomName()
			if _, taken := h.rooms[id]; !taken {
				break
			}
		}
	}
	if _, ok := h.rooms[id]; ok {
		return roomReply{id: id}
	}

	h.rooms[id] = newRoom(id)
	slog.Info("room created", "room", id)
	return roomReply{id: id, created: true}
}

func (h *Hub) handleIssueToken(roomID string) tokenReply {
	if _, ok := h.rooms[roomID]; !ok {
		return tokenReply{err: fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)}
	}
	token := "tok_" + uuid.NewString()
	h.tokens[token] = roomID
	return tokenReply{token: token}
}

func (h *Hub) handle(msg *inbound) {
	c := msg.client

	if msg.Type != protocol.TypeJoin && c.RoomID == "" {
		c.deliver(protocol.TypeError, protocol.ErrorPayload{Error: "join a room first"})
		return
	}

	switch msg.Type {
	case protocol.TypeJoin:
		h.handleJoin(c, msg.Message)
	case protocol.TypePublish:
		h.handlePublish(c)
	case protocol.TypeSignal:
		h.handleSignal(c, msg.Message)
	case protocol.TypeSubscribe:
		h.handleSubscribe(c, msg.Message)
	case protocol.TypeAnswer:
		h.handleAnswer(c, msg.Message)
	case protocol.TypeError:
		h.handlePeerError(c, msg.Message)
	case protocol.TypeLeave:
		h.leave(c, protocol.ReasonDisconnect)
	default:
		slog.Debug("unknown message type", "type", msg.Type)
	}
}

func (h *Hub) handleJoin(c *Client, msg protocol.Message) {
	if c.RoomID != "" {
		c.deliver(protocol.TypeError, protocol.ErrorPayload{Error: "already joined"})
		return
	}

	var p protocol.JoinPayload
	if err := msg.DecodePayload(&p); err != nil {
		c.deliver(protocol.TypeError, protocol.ErrorPayload{Error: "bad join"})
		return
	}

	roomID, ok := h.tokens[p.Token]
	if !ok {
		slog.Info("join rejected", "reason", "invalid token")
		c.deliver(protocol.TypeError, protocol.ErrorPayload{Error: "invalid token"})
		return
	}
	delete(h.tokens, p.Token)

	room, ok := h.rooms[roomID]
	if !ok {
		c.deliver(protocol.TypeError, protocol.ErrorPayload{Error: ErrRoomNotFound.Error()})
		return
	}

	c.ConnectionID = "con_" + uuid.NewString()
	c.RoomID = room.ID
	c.Data = p.Metadata + "%" + c.ConnectionID
	room.Members[c.ConnectionID] = c

	slog.Info("client joined", "room", room.ID, "connectionId", c.ConnectionID)

	c.deliver(protocol.TypeJoined, protocol.JoinedPayload{ConnectionID: c.ConnectionID, Room: room.ID})
	for _, s := range room.Streams {
		c.deliver(protocol.TypeStreamCreated, streamPayload(s, ""))
	}
}

func (h *Hub) handlePublish(c *Client) {
	room := h.rooms[c.RoomID]
	if s := room.streamOf(c); s != nil {
		c.deliver(protocol.TypePublished, streamPayload(s, ""))
		return
	}

	s := &Stream{ID: "str_" + uuid.NewString(), Owner: c}
	room.Streams[s.ID] = s
	slog.Info("stream published", "room", room.ID, "stream", s.ID, "connectionId", c.ConnectionID)

	c.deliver(protocol.TypePublished, streamPayload(s, ""))
	for id, member := range room.Members {
		if id != c.ConnectionID {
			member.deliver(protocol.TypeStreamCreated, streamPayload(s, ""))
		}
	}
}

func (h *Hub) handleSignal(c *Client, msg protocol.Message) {
	var p protocol.SignalPayload
	if err := msg.DecodePayload(&p); err != nil {
		c.deliver(protocol.TypeError, protocol.ErrorPayload{Error: "bad signal"})
		return
	}
	p.From = c.ConnectionID

	for _, member := range h.rooms[c.RoomID].Members {
		member.deliver(protocol.TypeSignal, p)
	}
}

func (h *Hub) handleSubscribe(c *Client, msg protocol.Message) {
	var p protocol.SubscribePayload
	if err := msg.DecodePayload(&p); err != nil {
		c.deliver(protocol.TypeError, protocol.ErrorPayload{Error: "bad subscribe"})
		return
	}

	s, ok := h.rooms[c.RoomID].Streams[p.StreamID]
	if !ok {
		c.deliver(protocol.TypeError, protocol.ErrorPayload{Error: "stream not found", Ref: p.StreamID})
		return
	}

	p.From = c.ConnectionID
	s.Owner.deliver(protocol.TypeSubscribe, p)
}

func (h *Hub) handleAnswer(c *Client, msg protocol.Message) {
	var p protocol.AnswerPayload
	if err := msg.DecodePayload(&p); err != nil {
		return
	}
	if target, ok := h.rooms[c.RoomID].Members[p.To]; ok {
		target.deliver(protocol.TypeAnswer, p)
	}
}

// handlePeerError forwards a publisher's failure to the subscriber it
// concerns.
func (h *Hub) handlePeerError(c *Client, msg protocol.Message) {
	var p protocol.ErrorPayload
	if err := msg.DecodePayload(&p); err != nil || p.To == "" {
		return
	}
	if target, ok := h.rooms[c.RoomID].Members[p.To]; ok {
		target.deliver(protocol.TypeError, protocol.ErrorPayload{Error: p.Error, Ref: p.Ref})
	}
}

// leave removes c from its room, announcing its stream with reason, and
// deletes the room once nobody is left.
func (h *Hub) leave(c *Client, reason string) {
	if c.RoomID == "" {
		return
	}
	room, ok := h.rooms[c.RoomID]
	c.RoomID = ""
	if !ok {
		return
	}

	delete(room.Members, c.ConnectionID)
	if s := room.streamOf(c); s != nil {
		delete(room.Streams, s.ID)
		for _, member := range room.Members {
			member.deliver(protocol.TypeStreamDestroyed, streamPayload(s, reason))
		}
	}
	slog.Info("client left", "room", room.ID, "connectionId", c.ConnectionID, "reason", reason)

	if len(room.Members) == 0 {
		delete(h.rooms, room.ID)
		slog.Info("room deleted", "room", room.ID)
	}
}

func streamPayload(s *Stream, reason string) protocol.StreamPayload {
	return protocol.StreamPayload{
		StreamID:       s.ID,
		ConnectionID:   s.Owner.ConnectionID,
		ConnectionData: s.Owner.Data,
		Reason:         reason,
	}
}
