package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	pion "github.com/pion/webrtc/v4"
)

// Subscriber receives one remote video stream. It is the media handle a
// remote participant owns.
type Subscriber struct {
	streamID string
	pc       *pion.PeerConnection

	mu     sync.Mutex
	track  *pion.TrackRemote
	closed bool

	packets atomic.Uint64
	bytes   atomic.Uint64
	ready   chan struct{}
	once    sync.Once
}

// NewSubscriber prepares a recv-only peer connection for streamID.
func NewSubscriber(ice ICEConfig, streamID string) (*Subscriber, error) {
	pc, err := newPeerConnection(ice)
	if err != nil {
		return nil, err
	}

	_, err = pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add transceiver: %w", err)
	}

	s := &Subscriber{streamID: streamID, pc: pc, ready: make(chan struct{})}

	pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		slog.Debug("remote track", "stream", streamID, "codec", track.Codec().MimeType)
		s.mu.Lock()
		s.track = track
		s.mu.Unlock()
		s.once.Do(func() { close(s.ready) })
		go s.read(track)
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		slog.Debug("subscriber ICE state", "stream", streamID, "state", state.String())
	})

	return s, nil
}

// Offer creates the SDP offer sent to the publisher.
func (s *Subscriber) Offer(ctx context.Context) (string, error) {
	return createOffer(ctx, s.pc)
}

// Accept applies the publisher's answer.
func (s *Subscriber) Accept(answerSDP string) error {
	desc := pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: answerSDP}
	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (s *Subscriber) StreamID() string {
	return s.streamID
}

// Ready is closed when the remote track arrives.
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

func (s *Subscriber) Track() (*pion.TrackRemote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.track == nil {
		return nil, ErrNoTrack
	}
	return s.track, nil
}

// Stats returns RTP packets and payload bytes received so far.
func (s *Subscriber) Stats() (packets, bytes uint64) {
	return s.packets.Load(), s.bytes.Load()
}

func (s *Subscriber) read(track *pion.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		s.packets.Add(1)
		s.bytes.Add(uint64(len(pkt.Payload)))
	}
}

// Close releases the peer connection. It is safe to call more than once.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.pc.Close()
}
