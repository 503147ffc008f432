package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/BioHazard786/roomview/internal/broker"
	"github.com/BioHazard786/roomview/internal/config"
	"github.com/BioHazard786/roomview/internal/media"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// loadConfig merges the persistent flags into opts and loads the config.
func loadConfig(opts config.Options) (*config.Config, error) {
	opts.ConfigFile = flagConfig
	opts.ServerURL = flagServer
	opts.Secret = flagSecret
	opts.STUNServer = flagSTUN
	opts.TURNServer = flagTURN
	opts.TURNUser = flagTURNUser
	opts.TURNPass = flagTURNPass
	opts.ForceRelay = flagRelay

	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, errors.New("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

// sessionContext is what join and present need to reach a room.
type sessionContext struct {
	Config *config.Config
	Broker *broker.Client
	WSURL  string
	ICE    media.ICEConfig
}

func newSessionContext(opts config.Options) (*sessionContext, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	wsURL, err := cfg.WebSocketURL()
	if err != nil {
		return nil, err
	}
	return &sessionContext{
		Config: cfg,
		Broker: broker.New(cfg.ServerURL, cfg.Secret),
		WSURL:  wsURL,
		ICE:    media.ICEFromConfig(cfg),
	}, nil
}

// parseSessionInput accepts a bare session id or a link ending in one.
func parseSessionInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("session ID cannot be empty")
	}

	id := input
	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", fmt.Errorf("parse session URL: %w", err)
		}
		path := strings.Trim(u.Path, "/")
		id = path[strings.LastIndex(path, "/")+1:]
	}

	if !sessionIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid session ID %q", id)
	}
	return id, nil
}
