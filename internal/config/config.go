package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/BioHazard786/roomview/internal/layout"
	"github.com/BioHazard786/roomview/internal/session"
)

// Default configuration values (local development server)
const (
	DefaultServerURL  = "http://localhost:8080"
	DefaultSecret     = "MY_SECRET"
	DefaultNickname   = "viewer"
	DefaultAvatar     = "https://openvidu.io/img/logos/openvidu_globe_bg_transp_cropped.png"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultListenAddr = ":8080"

	EnvPrefix = "ROOMVIEW"
)

// Config holds application configuration
type Config struct {
	// ServerURL is the media server base URL, used by the token broker
	ServerURL string
	Secret    string

	Nickname      string
	Avatar        string
	DefaultAvatar string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	RelayoutDelay time.Duration
	TeardownDelay time.Duration
	EmphasizeMain bool
	Layout        layout.Options

	// ListenAddr is where `serve` binds
	ListenAddr string
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigFile string

	ServerURL  string
	Secret     string
	Nickname   string
	Avatar     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	ListenAddr string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables (ROOMVIEW_*, .env is loaded first)
// 3. Config file (--config or ./roomview.yaml)
// 4. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	overrides := map[string]string{
		"server_url":  opts.ServerURL,
		"secret":      opts.Secret,
		"nickname":    opts.Nickname,
		"avatar":      opts.Avatar,
		"stun_server": opts.STUNServer,
		"turn_server": opts.TURNServer,
		"turn_user":   opts.TURNUser,
		"turn_pass":   opts.TURNPass,
		"listen_addr": opts.ListenAddr,
	}
	for key, value := range overrides {
		if value != "" {
			v.Set(key, value)
		}
	}
	if opts.ForceRelay {
		v.Set("force_relay", true)
	}

	cfg := &Config{
		ServerURL:     strings.TrimRight(v.GetString("server_url"), "/"),
		Secret:        v.GetString("secret"),
		Nickname:      v.GetString("nickname"),
		Avatar:        v.GetString("avatar"),
		DefaultAvatar: v.GetString("default_avatar"),
		STUNServer:    v.GetString("stun_server"),
		TURNServer:    v.GetString("turn_server"),
		TURNUser:      v.GetString("turn_user"),
		TURNPass:      v.GetString("turn_pass"),
		ForceRelay:    v.GetBool("force_relay"),
		RelayoutDelay: v.GetDuration("relayout_delay"),
		TeardownDelay: v.GetDuration("teardown_delay"),
		EmphasizeMain: v.GetBool("emphasize_main"),
		ListenAddr:    v.GetString("listen_addr"),
		Layout: layout.Options{
			MinRatio:      v.GetFloat64("layout.min_ratio"),
			MaxRatio:      v.GetFloat64("layout.max_ratio"),
			FixedRatio:    v.GetBool("layout.fixed_ratio"),
			BigPercentage: v.GetFloat64("layout.big_percentage"),
			BigMinRatio:   v.GetFloat64("layout.big_min_ratio"),
			BigMaxRatio:   v.GetFloat64("layout.big_max_ratio"),
			BigFixedRatio: v.GetBool("layout.big_fixed_ratio"),
			BigFirst:      v.GetBool("layout.big_first"),
			Animate:       v.GetBool("layout.animate"),
		},
	}

	if err := cfg.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout config: %w", err)
	}
	if _, err := cfg.WebSocketURL(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	lo := layout.DefaultOptions()

	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("secret", DefaultSecret)
	v.SetDefault("nickname", DefaultNickname)
	v.SetDefault("avatar", DefaultAvatar)
	v.SetDefault("default_avatar", DefaultAvatar)
	v.SetDefault("stun_server", DefaultSTUN)
	v.SetDefault("turn_server", "")
	v.SetDefault("turn_user", "")
	v.SetDefault("turn_pass", "")
	v.SetDefault("force_relay", false)
	v.SetDefault("relayout_delay", session.DefaultRelayoutDelay)
	v.SetDefault("teardown_delay", session.DefaultTeardownDelay)
	v.SetDefault("emphasize_main", false)
	v.SetDefault("listen_addr", DefaultListenAddr)

	v.SetDefault("layout.min_ratio", lo.MinRatio)
	v.SetDefault("layout.max_ratio", lo.MaxRatio)
	v.SetDefault("layout.fixed_ratio", lo.FixedRatio)
	v.SetDefault("layout.big_percentage", lo.BigPercentage)
	v.SetDefault("layout.big_min_ratio", lo.BigMinRatio)
	v.SetDefault("layout.big_max_ratio", lo.BigMaxRatio)
	v.SetDefault("layout.big_fixed_ratio", lo.BigFixedRatio)
	v.SetDefault("layout.big_first", lo.BigFirst)
	v.SetDefault("layout.animate", lo.Animate)
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("roomview")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// WebSocketURL derives the signaling endpoint from the server URL.
func (c *Config) WebSocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", c.ServerURL, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url %q: unsupported scheme %q", c.ServerURL, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// MachineOptions returns the session settings derived from this config.
func (c *Config) MachineOptions() session.MachineOptions {
	return session.MachineOptions{
		Nickname:      c.Nickname,
		Avatar:        c.Avatar,
		DefaultAvatar: c.DefaultAvatar,
		RelayoutDelay: c.RelayoutDelay,
		TeardownDelay: c.TeardownDelay,
		MaxRemotes:    session.DefaultMaxRemotes,
	}
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
