package roomserver

import "time"

// Room is one session: the connections that joined it and the streams they
// publish.
type Room struct {
	ID      string
	Created time.Time

	// Members are keyed by connection id.
	Members map[string]*Client

	// Streams are keyed by stream id.
	Streams map[string]*Stream
}

// Stream is a published stream and the connection that owns it.
type Stream struct {
	ID    string
	Owner *Client
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		Created: time.Now(),
		Members: make(map[string]*Client),
		Streams: make(map[string]*Stream),
	}
}

// streamOf returns the stream c publishes in the room, if any.
func (r *Room) streamOf(c *Client) *Stream {
	for _, s := range r.Streams {
		if s.Owner == c {
			return s
		}
	}
	return nil
}
