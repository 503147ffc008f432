package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
)

// Publisher serves one local VP8 track to every subscriber that asks for
// it, with a peer connection per subscriber.
type Publisher struct {
	ice   ICEConfig
	track *pion.TrackLocalStaticSample

	mu     sync.Mutex
	peers  map[string]*pion.PeerConnection
	closed bool
}

func NewPublisher(ice ICEConfig, streamID string) (*Publisher, error) {
	track, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeVP8},
		"video",
		streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("create track: %w", err)
	}
	return &Publisher{ice: ice, track: track, peers: make(map[string]*pion.PeerConnection)}, nil
}

// Answer accepts a subscriber's offer and returns the SDP answer. A second
// offer from the same subscriber replaces its previous connection.
func (p *Publisher) Answer(ctx context.Context, subscriberID, offerSDP string) (string, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrClosed
	}
	p.mu.Unlock()

	pc, err := newPeerConnection(p.ice)
	if err != nil {
		return "", err
	}

	sender, err := pc.AddTrack(p.track)
	if err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("add track: %w", err)
	}
	go drainRTCP(sender)

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("publisher peer state", "subscriber", subscriberID, "state", state.String())
		if state == pion.PeerConnectionStateFailed || state == pion.PeerConnectionStateClosed {
			p.remove(subscriberID, pc)
		}
	})

	answer, err := createAnswer(ctx, pc, offerSDP)
	if err != nil {
		_ = pc.Close()
		return "", err
	}

	p.mu.Lock()
	old := p.peers[subscriberID]
	p.peers[subscriberID] = pc
	p.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return answer, nil
}

// Remove closes the connection serving subscriberID.
func (p *Publisher) Remove(subscriberID string) error {
	p.mu.Lock()
	pc, ok := p.peers[subscriberID]
	delete(p.peers, subscriberID)
	p.mu.Unlock()

	if !ok {
		return ErrUnknownPeer
	}
	return pc.Close()
}

func (p *Publisher) remove(subscriberID string, pc *pion.PeerConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peers[subscriberID] == pc {
		delete(p.peers, subscriberID)
	}
}

// Subscribers returns how many peer connections are open.
func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.peers)
}

// WriteSample sends one encoded frame to every subscriber.
func (p *Publisher) WriteSample(frame []byte, duration time.Duration) error {
	return p.track.WriteSample(pionmedia.Sample{Data: frame, Duration: duration})
}

// StreamIVF plays a VP8 IVF file in a loop until ctx is done.
func (p *Publisher) StreamIVF(ctx context.Context, src io.ReadSeeker) error {
	for {
		if _, err := src.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("rewind video: %w", err)
		}
		reader, header, err := ivfreader.NewWith(src)
		if err != nil {
			return fmt.Errorf("read ivf header: %w", err)
		}

		frameDuration := time.Second / 30
		if header.TimebaseDenominator > 0 {
			frameDuration = time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
		}

		ticker := time.NewTicker(frameDuration)
		err = p.playFrames(ctx, reader, ticker.C, frameDuration)
		ticker.Stop()

		switch {
		case errors.Is(err, io.EOF):
			continue
		case err != nil:
			return err
		}
	}
}

func (p *Publisher) playFrames(ctx context.Context, reader *ivfreader.IVFReader, tick <-chan time.Time, d time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}

		frame, _, err := reader.ParseNextFrame()
		if err != nil {
			return err
		}
		if err := p.WriteSample(frame, d); err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
	}
}

// Close closes every subscriber connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	peers := p.peers
	p.peers = make(map[string]*pion.PeerConnection)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, pc := range peers {
		if err := pc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
