package roomserver

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/roomview/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP with gathered candidates
	// fits comfortably.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Client is one websocket connection. Everything except the pumps is owned
// by the hub goroutine.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// send is drained by WritePump.
	send chan []byte

	ConnectionID string
	RoomID       string

	// Data is the connection data other members see: the client's join
	// metadata followed by '%' and the server part.
	Data string
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("read error", "remote", c.conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("dropping frame", "remote", c.conn.RemoteAddr().String(), "error", err)
			continue
		}

		select {
		case c.hub.inbound <- &inbound{Message: msg, client: c}:
		case <-c.hub.done:
			return
		}
	}
}

// WritePump pumps frames from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				slog.Debug("write error", "connectionId", c.ConnectionID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deliver queues a frame without blocking the hub. A client that cannot
// keep up loses the frame.
func (c *Client) deliver(t string, payload any) {
	frame, err := protocol.Marshal(t, payload)
	if err != nil {
		slog.Error("encode frame", "type", t, "error", err)
		return
	}

	select {
	case c.send <- frame:
	default:
		slog.Warn("client send buffer full, dropping frame", "connectionId", c.ConnectionID, "type", t)
	}
}
