// Package signaling is the websocket session transport: it joins a room on
// the room server, turns inbound frames into session events and carries the
// SDP exchange for media subscriptions.
package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/roomview/internal/dns"
	"github.com/BioHazard786/roomview/internal/media"
	"github.com/BioHazard786/roomview/internal/protocol"
	"github.com/BioHazard786/roomview/internal/session"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 64 * 1024
	handshakeTimeout = 10 * time.Second
	subscribeTimeout = 15 * time.Second
	sendBuffer       = 32
)

var (
	ErrClosed       = errors.New("signaling connection closed")
	ErrNotConnected = errors.New("signaling not connected")
	ErrRejected     = errors.New("rejected by server")
	ErrNotPublisher = errors.New("no local stream to answer with")
)

// Client manages the WebSocket connection to the room server. It
// implements session.Transport.
type Client struct {
	serverURL string
	ice       media.ICEConfig
	resolver  *dns.Resolver

	outgoing  chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu           sync.Mutex
	conn         *websocket.Conn
	sink         func(session.Event)
	waiters      map[string]chan protocol.Message
	publisher    *media.Publisher
	connectionID string
	leaving      bool
}

// NewClient creates a new signaling client for a ws(s):// URL.
func NewClient(serverURL string, ice media.ICEConfig) *Client {
	return &Client{
		serverURL: serverURL,
		ice:       ice,
		resolver:  dns.NewResolver(),
		outgoing:  make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		waiters:   make(map[string]chan protocol.Message),
	}
}

// Dialer returns a session.Dialer creating a fresh client per join.
func Dialer(serverURL string, ice media.ICEConfig) session.Dialer {
	return func() (session.Transport, error) {
		return NewClient(serverURL, ice), nil
	}
}

// Listen installs the event sink. Events that arrive before it is set are
// dropped.
func (c *Client) Listen(sink func(session.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// ConnectionID returns the id the server assigned on join.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// Connect dials the server and joins the room the token belongs to.
func (c *Client) Connect(ctx context.Context, token, metadata string) (string, error) {
	if err := c.dial(ctx); err != nil {
		return "", err
	}

	reply, err := c.request(ctx, waitJoined, protocol.TypeJoin, protocol.JoinPayload{Token: token, Metadata: metadata})
	if err != nil {
		c.abort()
		return "", fmt.Errorf("join: %w", err)
	}

	var joined protocol.JoinedPayload
	if err := reply.DecodePayload(&joined); err != nil {
		c.abort()
		return "", err
	}

	c.mu.Lock()
	c.connectionID = joined.ConnectionID
	c.mu.Unlock()

	slog.Debug("joined room", "room", joined.Room, "connectionId", joined.ConnectionID)
	return joined.ConnectionID, nil
}

func (c *Client) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		NetDialContext:   c.resolver.DialContext,
	}

	conn, _, err := dialer.DialContext(ctx, c.serverURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readPump(conn)
	go c.writePump(conn)
	return nil
}

// Subscribe negotiates a receive-only peer connection for stream with its
// publisher and returns it as the participant's media handle.
func (c *Client) Subscribe(ctx context.Context, stream session.Stream) (session.MediaHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()

	sub, err := media.NewSubscriber(c.ice, stream.ID)
	if err != nil {
		return nil, err
	}

	offer, err := sub.Offer(ctx)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	reply, err := c.request(ctx, answerKey(stream.ID), protocol.TypeSubscribe, protocol.SubscribePayload{StreamID: stream.ID, SDP: offer})
	if err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", stream.ID, err)
	}

	var answer protocol.AnswerPayload
	if err := reply.DecodePayload(&answer); err != nil {
		_ = sub.Close()
		return nil, err
	}
	if err := sub.Accept(answer.SDP); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return sub, nil
}

// Signal sends an application signal to everyone in the room.
func (c *Client) Signal(ctx context.Context, signalType, data string) error {
	return c.send(ctx, protocol.TypeSignal, protocol.SignalPayload{Type: signalType, Data: data})
}

// Publish announces a local stream served by pub and returns its id.
func (c *Client) Publish(ctx context.Context, pub *media.Publisher) (string, error) {
	c.mu.Lock()
	c.publisher = pub
	c.mu.Unlock()

	reply, err := c.request(ctx, waitPublished, protocol.TypePublish, nil)
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}

	var stream protocol.StreamPayload
	if err := reply.DecodePayload(&stream); err != nil {
		return "", err
	}
	return stream.StreamID, nil
}

// Disconnect leaves the room and closes the connection. The server reports
// a clean "disconnect" for this client's streams.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.leaving = true
	connected := c.conn != nil
	c.mu.Unlock()

	var err error
	if connected {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err = c.send(ctx, protocol.TypeLeave, nil)
		cancel()
	}
	c.close()

	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// abort closes without reporting a session loss.
func (c *Client) abort() {
	c.mu.Lock()
	c.leaving = true
	c.mu.Unlock()
	c.close()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) send(ctx context.Context, t string, payload any) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	frame, err := protocol.Marshal(t, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// request sends a frame and waits for the reply routed to key.
func (c *Client) request(ctx context.Context, key, t string, payload any) (protocol.Message, error) {
	ch := make(chan protocol.Message, 1)

	c.mu.Lock()
	c.waiters[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.waiters[key] == ch {
			delete(c.waiters, key)
		}
		c.mu.Unlock()
	}()

	if err := c.send(ctx, t, payload); err != nil {
		return protocol.Message{}, err
	}

	select {
	case msg := <-ch:
		if msg.Type == protocol.TypeError {
			var e protocol.ErrorPayload
			_ = msg.DecodePayload(&e)
			return protocol.Message{}, fmt.Errorf("%w: %s", ErrRejected, e.Error)
		}
		return msg, nil
	case <-c.done:
		return protocol.Message{}, ErrClosed
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

// readPump reads frames from the WebSocket connection.
func (c *Client) readPump(conn *websocket.Conn) {
	defer func() {
		c.close()

		c.mu.Lock()
		leaving := c.leaving
		c.mu.Unlock()
		if !leaving {
			c.emit(session.SessionDisconnected{Reason: protocol.ReasonNetworkDisconnect})
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("signaling read", "error", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("dropping frame", "error", err)
			continue
		}
		c.route(msg)
	}
}

// writePump writes frames to the WebSocket connection and sends periodic
// pings. Frames queued before Disconnect are flushed before closing.
func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(kind int, data []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(kind, data) == nil
	}

	for {
		select {
		case frame := <-c.outgoing:
			if !write(websocket.BinaryMessage, frame) {
				c.close()
				return
			}

		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				c.close()
				return
			}

		case <-c.done:
			for {
				select {
				case frame := <-c.outgoing:
					if !write(websocket.BinaryMessage, frame) {
						return
					}
				default:
					write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}
