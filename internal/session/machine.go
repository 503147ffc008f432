package session

import (
	"log/slog"
	"time"

	"github.com/BioHazard786/roomview/internal/presence"
)

type State string

const (
	StateNotJoined State = "not-joined"
	StateJoining   State = "joining"
	StateJoined    State = "joined"
	StateLeaving   State = "leaving"
)

// Transmission tracks the broadcaster ("main") stream. Once closed it stays
// closed for the rest of the process.
type Transmission string

const (
	TransmissionIdle    Transmission = "idle"
	TransmissionActive  Transmission = "active"
	TransmissionClosing Transmission = "closing"
	TransmissionClosed  Transmission = "closed"
)

const (
	DefaultRelayoutDelay = 20 * time.Millisecond
	DefaultTeardownDelay = 5 * time.Second
)

type MachineOptions struct {
	Nickname string

	// Avatar is what this client announces in presence signals.
	Avatar string

	// DefaultAvatar is shown for a remote until its own presence arrives.
	DefaultAvatar    string
	PlatformIsMobile bool

	RelayoutDelay time.Duration
	TeardownDelay time.Duration
	MaxRemotes    int
}

func (o MachineOptions) withDefaults() MachineOptions {
	if o.RelayoutDelay <= 0 {
		o.RelayoutDelay = DefaultRelayoutDelay
	}
	if o.TeardownDelay <= 0 {
		o.TeardownDelay = DefaultTeardownDelay
	}
	if o.MaxRemotes == 0 {
		o.MaxRemotes = DefaultMaxRemotes
	}
	return o
}

// Machine is the session lifecycle. Handle is a pure transition: it updates
// the machine's own state and registry and returns the effects the caller
// must run. It never blocks and never touches the network.
type Machine struct {
	opts         MachineOptions
	state        State
	transmission Transmission
	registry     *Registry
	relayoutSeq  uint64
}

func NewMachine(opts MachineOptions) *Machine {
	opts = opts.withDefaults()
	return &Machine{
		opts:         opts,
		state:        StateNotJoined,
		transmission: TransmissionIdle,
		registry:     NewRegistry(opts.MaxRemotes),
	}
}

func (m *Machine) State() State { return m.state }
func (m *Machine) Transmission() Transmission { return m.transmission }
func (m *Machine) Registry() *Registry { return m.registry }
func (m *Machine) Options() MachineOptions { return m.opts }

func (m *Machine) inSession() bool {
	return m.state == StateJoining || m.state == StateJoined
}

// Handle applies ev and returns the resulting effects.
func (m *Machine) Handle(ev Event) []Effect {
	switch ev := ev.(type) {
	case JoinRequested:
		return m.join()
	case Connected:
		return m.connected(ev)
	case ConnectFailed:
		return m.connectFailed(ev)
	case StreamCreated:
		return m.streamCreated(ev)
	case StreamDestroyed:
		return m.streamDestroyed(ev)
	case MediaReady:
		return m.mediaReady(ev)
	case StreamSubscribeFailed:
		return m.subscribeFailed(ev)
	case SignalReceived:
		return m.signalReceived(ev)
	case SessionDisconnected:
		return m.sessionDisconnected(ev)
	case Disconnected:
		if m.state == StateLeaving {
			m.state = StateNotJoined
		}
		return nil
	case Resized:
		return append([]Effect{ResizeContainer{Width: ev.Width, Height: ev.Height}}, m.scheduleRelayout())
	case RelayoutDue:
		if ev.Seq != m.relayoutSeq {
			return nil
		}
		return []Effect{Relayout{}}
	case GraceElapsed:
		return m.graceElapsed()
	case ExitRequested:
		return m.exit()
	}
	return nil
}

func (m *Machine) join() []Effect {
	if m.state != StateNotJoined {
		return []Effect{Report{Level: slog.LevelDebug, Msg: "join ignored", Err: WrapError("join", ErrJoinFailed, "already "+string(m.state))}}
	}

	m.state = StateJoining
	if m.transmission != TransmissionClosed {
		m.transmission = TransmissionIdle
	}
	m.registry = NewRegistry(m.opts.MaxRemotes)
	m.registry.SetLocal(Participant{
		Nickname:  m.opts.Nickname,
		AvatarURL: m.opts.Avatar,
	})

	meta := FormatConnectionData(ConnectionMeta{ClientData: m.opts.Nickname})
	return []Effect{ResetLayout{}, OpenSession{Metadata: meta}}
}

func (m *Machine) connected(ev Connected) []Effect {
	if m.state != StateJoining {
		return nil
	}
	m.state = StateJoined
	m.registry.SetLocalConnection(ev.ConnectionID)
	return nil
}

func (m *Machine) connectFailed(ev ConnectFailed) []Effect {
	if m.state != StateJoining {
		return nil
	}
	err := NewError("join", ErrJoinFailed, ev.Err)

	effects := m.release()
	effects = append(effects,
		CancelRelayout{},
		CloseSession{},
		Report{Level: slog.LevelError, Msg: "could not join session", Err: err},
		Teardown{Err: err},
	)
	m.state = StateNotJoined
	return effects
}

func (m *Machine) streamCreated(ev StreamCreated) []Effect {
	if !m.inSession() {
		return nil
	}
	if local, ok := m.registry.Local(); ok && local.ConnectionID != "" && local.ConnectionID == ev.Stream.ConnectionID {
		return nil
	}

	var effects []Effect
	meta, err := ParseConnectionData(ev.Stream.ConnectionData)
	if err != nil {
		effects = append(effects, Report{Level: slog.LevelDebug, Msg: "connection data is not JSON, using it as nickname", Err: err})
	}

	if meta.Main && m.transmission == TransmissionIdle {
		m.transmission = TransmissionActive
	}

	err = m.registry.AddRemote(Participant{
		ConnectionID: ev.Stream.ConnectionID,
		Nickname:     meta.ClientData,
		AvatarURL:    m.opts.DefaultAvatar,
		Main:         meta.Main,
		Stream:       ev.Stream,
	})
	if err != nil {
		return append(effects, Report{
			Level: slog.LevelDebug,
			Msg:   "stream ignored",
			Err:   &Error{Op: "stream created", Kind: ErrStreamIgnored, Err: err, Details: ev.Stream.ID},
		})
	}

	return append(effects,
		SubscribeStream{Stream: ev.Stream},
		Relayout{},
		BroadcastPresence{Message: presence.NewMessage(m.opts.Avatar, m.opts.PlatformIsMobile)},
	)
}

func (m *Machine) streamDestroyed(ev StreamDestroyed) []Effect {
	if !m.inSession() {
		return nil
	}

	var effects []Effect
	removed, ok := m.registry.RemoveByStream(ev.Stream.ID)
	if ok && removed.Media != nil {
		effects = append(effects, ReleaseMedia{Media: removed.Media})
	}

	meta, err := ParseConnectionData(ev.Stream.ConnectionData)
	if err != nil {
		meta = ConnectionMeta{}
	}
	local, _ := m.registry.Local()
	targeted := meta.Main || (meta.ClientData != "" && meta.ClientData == local.Nickname)
	if !ok && !targeted {
		return nil
	}

	effects = append(effects, m.scheduleRelayout())

	if meta.Main && ev.Reason == ReasonDisconnect &&
		(m.transmission == TransmissionIdle || m.transmission == TransmissionActive) {
		m.transmission = TransmissionClosing
		effects = append(effects, ScheduleTeardown{After: m.opts.TeardownDelay})
	}
	return effects
}

func (m *Machine) mediaReady(ev MediaReady) []Effect {
	if m.inSession() && m.registry.AttachMedia(ev.Stream.ID, ev.Media) {
		return []Effect{Relayout{}}
	}
	// participant left before the subscription finished
	return []Effect{ReleaseMedia{Media: ev.Media}}
}

func (m *Machine) subscribeFailed(ev StreamSubscribeFailed) []Effect {
	if !m.inSession() {
		return nil
	}
	effects := []Effect{Report{
		Level: slog.LevelWarn,
		Msg:   "subscribe failed",
		Err:   &Error{Op: "subscribe", Err: ev.Err, Details: ev.Stream.ID},
	}}
	if _, ok := m.registry.RemoveByStream(ev.Stream.ID); ok {
		effects = append(effects, m.scheduleRelayout())
	}
	return effects
}

func (m *Machine) signalReceived(ev SignalReceived) []Effect {
	if !m.inSession() || ev.Type != presence.SignalUserChanged {
		return nil
	}
	if _, err := presence.Handle(m.registry, ev.From, ev.Data); err != nil {
		return []Effect{Report{
			Level: slog.LevelWarn,
			Msg:   "dropping presence signal",
			Err:   &Error{Op: "signal", Kind: ErrSignalParse, Err: err, Details: ev.From},
		}}
	}
	return nil
}

func (m *Machine) sessionDisconnected(ev SessionDisconnected) []Effect {
	if !m.inSession() {
		return nil
	}
	err := WrapError("session", ErrSessionLost, ev.Reason)

	effects := m.release()
	effects = append(effects,
		CancelRelayout{},
		CancelTeardown{},
		ResetLayout{},
		CloseSession{},
		Report{Level: slog.LevelWarn, Msg: "session disconnected", Err: err},
		Teardown{Err: err},
	)
	m.state = StateNotJoined
	return effects
}

func (m *Machine) graceElapsed() []Effect {
	if m.transmission != TransmissionClosing || !m.inSession() {
		return nil
	}
	m.transmission = TransmissionClosed
	return m.exit()
}

func (m *Machine) exit() []Effect {
	if !m.inSession() {
		return nil
	}
	m.state = StateLeaving

	effects := []Effect{CancelTeardown{}, CancelRelayout{}}
	effects = append(effects, m.release()...)
	return append(effects, ResetLayout{}, CloseSession{}, Teardown{})
}

// release clears the registry and returns the media it held.
func (m *Machine) release() []Effect {
	var effects []Effect
	for _, p := range m.registry.Clear() {
		if p.Media != nil {
			effects = append(effects, ReleaseMedia{Media: p.Media})
		}
	}
	return effects
}

func (m *Machine) scheduleRelayout() Effect {
	m.relayoutSeq++
	return ScheduleRelayout{Seq: m.relayoutSeq, After: m.opts.RelayoutDelay}
}
