package signaling

import (
	"context"
	"log/slog"

	"github.com/BioHazard786/roomview/internal/protocol"
	"github.com/BioHazard786/roomview/internal/session"
)

const (
	waitJoined    = "joined"
	waitPublished = "published"
)

func answerKey(streamID string) string {
	return "answer:" + streamID
}

// route hands replies to their waiters and turns room events into session
// events.
func (c *Client) route(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoined:
		c.deliver(waitJoined, msg)

	case protocol.TypePublished:
		c.deliver(waitPublished, msg)

	case protocol.TypeAnswer:
		var p protocol.AnswerPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("bad answer", "error", err)
			return
		}
		c.deliver(answerKey(p.StreamID), msg)

	case protocol.TypeError:
		c.handleError(msg)

	case protocol.TypeStreamCreated:
		var p protocol.StreamPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("bad stream_created", "error", err)
			return
		}
		c.emit(session.StreamCreated{Stream: toStream(p)})

	case protocol.TypeStreamDestroyed:
		var p protocol.StreamPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("bad stream_destroyed", "error", err)
			return
		}
		c.emit(session.StreamDestroyed{Stream: toStream(p), Reason: p.Reason})

	case protocol.TypeSignal:
		var p protocol.SignalPayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("bad signal", "error", err)
			return
		}
		c.emit(session.SignalReceived{Type: p.Type, From: p.From, Data: p.Data})

	case protocol.TypeSubscribe:
		var p protocol.SubscribePayload
		if err := msg.DecodePayload(&p); err != nil {
			slog.Warn("bad subscribe", "error", err)
			return
		}
		go c.answer(p)

	default:
		slog.Debug("unknown frame", "type", msg.Type)
	}
}

// handleError routes a server error to the request it refers to. Errors
// without a reference belong to a pending join or publish.
func (c *Client) handleError(msg protocol.Message) {
	var p protocol.ErrorPayload
	_ = msg.DecodePayload(&p)

	if p.Ref != "" && c.deliver(answerKey(p.Ref), msg) {
		return
	}
	if c.deliver(waitJoined, msg) || c.deliver(waitPublished, msg) {
		return
	}
	slog.Warn("server error", "error", p.Error)
}

func (c *Client) deliver(key string, msg protocol.Message) bool {
	c.mu.Lock()
	ch, ok := c.waiters[key]
	if ok {
		delete(c.waiters, key)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	ch <- msg
	return true
}

func (c *Client) emit(ev session.Event) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()

	if sink != nil {
		sink(ev)
	}
}

// answer serves a subscriber's offer from the local publisher.
func (c *Client) answer(p protocol.SubscribePayload) {
	c.mu.Lock()
	pub := c.publisher
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
	defer cancel()

	if pub == nil {
		_ = c.send(ctx, protocol.TypeError, protocol.ErrorPayload{Error: ErrNotPublisher.Error(), Ref: p.StreamID, To: p.From})
		return
	}

	sdp, err := pub.Answer(ctx, p.From, p.SDP)
	if err != nil {
		slog.Warn("failed to answer subscriber", "connectionId", p.From, "error", err)
		_ = c.send(ctx, protocol.TypeError, protocol.ErrorPayload{Error: err.Error(), Ref: p.StreamID, To: p.From})
		return
	}

	if err := c.send(ctx, protocol.TypeAnswer, protocol.AnswerPayload{To: p.From, StreamID: p.StreamID, SDP: sdp}); err != nil {
		slog.Warn("failed to send answer", "connectionId", p.From, "error", err)
	}
}

func toStream(p protocol.StreamPayload) session.Stream {
	return session.Stream{
		ID:             p.StreamID,
		ConnectionID:   p.ConnectionID,
		ConnectionData: p.ConnectionData,
	}
}
