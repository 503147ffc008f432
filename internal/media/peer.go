// Package media holds the WebRTC side of a session: subscribing to a remote
// participant's video and publishing a local one.
package media

import (
	"context"
	"errors"
	"fmt"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/roomview/internal/config"
	"github.com/BioHazard786/roomview/internal/utils"
)

var (
	ErrClosed       = errors.New("peer connection closed")
	ErrNoTrack      = errors.New("no remote track yet")
	ErrUnknownPeer  = errors.New("unknown subscriber")
	ErrGatherFailed = errors.New("ICE gathering did not complete")
)

// ICEConfig selects the ICE servers peer connections use.
type ICEConfig struct {
	STUNServers []string
	TURNServers []string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
}

// ICEFromConfig builds the ICE settings from the application config. With a
// TURN server configured, relay is forced on hosts behind a VPN or CGNAT.
func ICEFromConfig(cfg *config.Config) ICEConfig {
	user, pass := cfg.GetTURNCredentials()
	turn := cfg.GetTURNServers()
	return ICEConfig{
		STUNServers: cfg.GetSTUNServers(),
		TURNServers: turn,
		TURNUser:    user,
		TURNPass:    pass,
		ForceRelay:  turn != nil && (cfg.ForceRelay || utils.RestrictedNetwork()),
	}
}

func newPeerConnection(ice ICEConfig) (*pion.PeerConnection, error) {
	var iceServers []pion.ICEServer
	if len(ice.STUNServers) > 0 {
		iceServers = append(iceServers, pion.ICEServer{URLs: ice.STUNServers})
	}
	if ice.TURNServers != nil {
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       ice.TURNServers,
			Username:   ice.TURNUser,
			Credential: ice.TURNPass,
		})
	}

	policy := pion.ICETransportPolicyAll
	if ice.TURNServers != nil && ice.ForceRelay {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}

// setLocal applies desc and waits for ICE gathering so the returned SDP
// carries every candidate. The room server has no trickle path.
func setLocal(ctx context.Context, pc *pion.PeerConnection, desc pion.SessionDescription) (string, error) {
	gathered := pion.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrGatherFailed, ctx.Err())
	}
	return pc.LocalDescription().SDP, nil
}

func createOffer(ctx context.Context, pc *pion.PeerConnection) (string, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	return setLocal(ctx, pc, offer)
}

func createAnswer(ctx context.Context, pc *pion.PeerConnection, offerSDP string) (string, error) {
	offer := pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	return setLocal(ctx, pc, answer)
}
