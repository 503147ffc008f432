package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/roomview/internal/layout"
	"github.com/BioHazard786/roomview/internal/presence"
)

const eventQueueSize = 64

// Transport is a live connection to the media server.
type Transport interface {
	// Listen installs the sink for stream, signal and disconnect events.
	// It is called before Connect.
	Listen(sink func(Event))
	Connect(ctx context.Context, token, metadata string) (connectionID string, err error)
	Subscribe(ctx context.Context, stream Stream) (MediaHandle, error)
	Signal(ctx context.Context, signalType, data string) error
	Disconnect() error
}

// Dialer creates a fresh transport for every join.
type Dialer func() (Transport, error)

type TokenSource interface {
	Token(ctx context.Context, sessionID string) (string, error)
}

// Snapshot is the observable state after an event was handled.
type Snapshot struct {
	State        State
	Transmission Transmission
	Local        Participant
	Remotes      []Participant
	Placements   []layout.Placement
	Width        float64
	Height       float64
}

type Config struct {
	SessionID string
	Machine   MachineOptions
	Layout    layout.Options

	// EmphasizeMain marks the broadcaster's tile big.
	EmphasizeMain bool

	Dial   Dialer
	Tokens TokenSource

	// Observer is called on the event goroutine after every event.
	Observer func(Snapshot)

	// Surface returns the render target for a participant's tile.
	Surface func(Participant) layout.Surface
}

// Orchestrator owns the machine, the registry and the layout engine and is
// the only goroutine that touches them. Transport callbacks and timers post
// events to its queue.
type Orchestrator struct {
	cfg     Config
	machine *Machine
	engine  *layout.Engine

	events chan Event
	done   chan struct{}
	once   sync.Once
	err    error

	ctx       context.Context
	transport Transport

	relayoutTimer *time.Timer
	teardownTimer *time.Timer
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Dial == nil {
		return nil, errors.New("session: no transport dialer")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("session: no token source")
	}
	engine, err := layout.NewEngine(cfg.Layout)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return &Orchestrator{
		cfg:     cfg,
		machine: NewMachine(cfg.Machine),
		engine:  engine,
		events:  make(chan Event, eventQueueSize),
		done:    make(chan struct{}),
		ctx:     context.Background(),
	}, nil
}

// Run processes events until the client tears down or ctx is cancelled.
// It returns the error that ended the client, if any.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	defer o.finish(nil)
	defer o.stopTimers()

	for {
		select {
		case <-ctx.Done():
			o.dispatch(ExitRequested{})
			return ctx.Err()
		case <-o.done:
			return o.err
		case ev := <-o.events:
			o.dispatch(ev)
			if o.finished() {
				return o.err
			}
		}
	}
}

// Post queues ev. It drops the event once the client has torn down.
func (o *Orchestrator) Post(ev Event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) Join() { o.Post(JoinRequested{}) }
func (o *Orchestrator) Exit() { o.Post(ExitRequested{}) }
func (o *Orchestrator) Resize(width, height float64) { o.Post(Resized{Width: width, Height: height}) }

// Done is closed once the client has torn down.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) finished() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) finish(err error) {
	o.once.Do(func() {
		o.err = err
		close(o.done)
	})
}

func (o *Orchestrator) dispatch(ev Event) {
	slog.Debug("session event", "event", fmt.Sprintf("%T", ev), "state", o.machine.State())

	for _, eff := range o.machine.Handle(ev) {
		o.execute(eff)
	}
	if o.cfg.Observer != nil {
		o.cfg.Observer(o.snapshot())
	}
}

func (o *Orchestrator) execute(eff Effect) {
	switch eff := eff.(type) {
	case OpenSession:
		o.open(eff.Metadata)

	case SubscribeStream:
		o.subscribe(eff.Stream)

	case ReleaseMedia:
		if eff.Media == nil {
			return
		}
		if err := eff.Media.Close(); err != nil {
			slog.Warn("failed to release media", "error", err)
		}

	case BroadcastPresence:
		o.broadcast(eff.Message)

	case Relayout:
		o.relayout()

	case ScheduleRelayout:
		seq := eff.Seq
		stopTimer(o.relayoutTimer)
		o.relayoutTimer = time.AfterFunc(eff.After, func() { o.Post(RelayoutDue{Seq: seq}) })

	case CancelRelayout:
		stopTimer(o.relayoutTimer)
		o.relayoutTimer = nil

	case ResizeContainer:
		o.engine.Mount(eff.Width, eff.Height)

	case ResetLayout:
		o.engine.Reset()

	case ScheduleTeardown:
		stopTimer(o.teardownTimer)
		o.teardownTimer = time.AfterFunc(eff.After, func() { o.Post(GraceElapsed{}) })

	case CancelTeardown:
		stopTimer(o.teardownTimer)
		o.teardownTimer = nil

	case CloseSession:
		if o.transport != nil {
			if err := o.transport.Disconnect(); err != nil {
				slog.Debug("disconnect", "error", err)
			}
			o.transport = nil
		}
		o.dispatch(Disconnected{})

	case Teardown:
		o.finish(eff.Err)

	case Report:
		args := []any{}
		if eff.Err != nil {
			args = append(args, "error", eff.Err)
		}
		slog.Log(o.ctx, eff.Level, eff.Msg, args...)
	}
}

// open dials a fresh transport, installs the event sink and connects in the
// background. The outcome comes back as Connected or ConnectFailed.
func (o *Orchestrator) open(metadata string) {
	t, err := o.cfg.Dial()
	if err != nil {
		o.dispatch(ConnectFailed{Err: fmt.Errorf("dial: %w", err)})
		return
	}
	t.Listen(o.Post)
	o.transport = t

	ctx := o.ctx
	sessionID := o.cfg.SessionID
	go func() {
		token, err := o.cfg.Tokens.Token(ctx, sessionID)
		if err != nil {
			o.Post(ConnectFailed{Err: err})
			return
		}
		connectionID, err := t.Connect(ctx, token, metadata)
		if err != nil {
			o.Post(ConnectFailed{Err: err})
			return
		}
		o.Post(Connected{ConnectionID: connectionID})
	}()
}

func (o *Orchestrator) subscribe(stream Stream) {
	t := o.transport
	if t == nil {
		o.dispatch(StreamSubscribeFailed{Stream: stream, Err: ErrTransportMissing})
		return
	}

	ctx := o.ctx
	go func() {
		media, err := t.Subscribe(ctx, stream)
		if err != nil {
			o.Post(StreamSubscribeFailed{Stream: stream, Err: err})
			return
		}
		o.Post(MediaReady{Stream: stream, Media: media})
	}()
}

func (o *Orchestrator) broadcast(m presence.Message) {
	t := o.transport
	if t == nil {
		slog.Debug("presence not sent", "error", ErrTransportMissing)
		return
	}
	data, err := presence.Encode(m)
	if err != nil {
		slog.Warn("presence not sent", "error", err)
		return
	}

	ctx := o.ctx
	go func() {
		if err := t.Signal(ctx, presence.SignalUserChanged, data); err != nil {
			slog.Warn("failed to send presence", "error", err)
		}
	}()
}

func (o *Orchestrator) relayout() {
	remotes := o.machine.Registry().Remotes()
	if len(remotes) == 0 {
		o.engine.Reset()
		return
	}

	tiles := make([]layout.Tile, 0, len(remotes))
	bigSet := false
	for _, p := range remotes {
		tile := layout.Tile{ID: p.ConnectionID}
		if o.cfg.EmphasizeMain && p.Main && !bigSet {
			tile.Big = true
			bigSet = true
		}
		if o.cfg.Surface != nil {
			tile.Surface = o.cfg.Surface(p)
		}
		tiles = append(tiles, tile)
	}

	if _, err := o.engine.Layout(tiles); err != nil {
		if errors.Is(err, layout.ErrNotMounted) {
			slog.Debug("layout skipped", "error", NewError("relayout", ErrLayoutSkipped, err))
			return
		}
		slog.Warn("layout failed", "error", err)
	}
}

func (o *Orchestrator) snapshot() Snapshot {
	reg := o.machine.Registry()
	local, _ := reg.Local()
	w, h := o.engine.Size()
	return Snapshot{
		State:        o.machine.State(),
		Transmission: o.machine.Transmission(),
		Local:        local,
		Remotes:      reg.Remotes(),
		Placements:   o.engine.Last(),
		Width:        w,
		Height:       h,
	}
}

func (o *Orchestrator) stopTimers() {
	stopTimer(o.relayoutTimer)
	stopTimer(o.teardownTimer)
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
