package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/roomview/internal/presence"
)

const (
	aliceData = `{"clientData":"Alice","main":true}%server`
	bobData   = `{"clientData":"Bob","main":false}%server`
)

func findEffect[T Effect](effects []Effect) (T, bool) {
	for _, eff := range effects {
		if v, ok := eff.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func countEffects[T Effect](effects []Effect) int {
	n := 0
	for _, eff := range effects {
		if _, ok := eff.(T); ok {
			n++
		}
	}
	return n
}

func newTestMachine() *Machine {
	return NewMachine(MachineOptions{
		Nickname:      "viewer",
		Avatar:        "https://x/me.png",
		DefaultAvatar: "https://x/default.png",
	})
}

// joined returns a machine that has joined and received Alice's main stream.
func joined(t *testing.T) *Machine {
	t.Helper()
	m := newTestMachine()
	m.Handle(JoinRequested{})
	m.Handle(Connected{ConnectionID: "local"})
	m.Handle(StreamCreated{Stream: Stream{ID: "s-alice", ConnectionID: "c-alice", ConnectionData: aliceData}})
	require.Equal(t, StateJoined, m.State())
	require.Equal(t, 1, m.Registry().RemoteCount())
	return m
}

func TestMachine_Join(t *testing.T) {
	m := newTestMachine()
	assert.Equal(t, StateNotJoined, m.State())

	effects := m.Handle(JoinRequested{})
	assert.Equal(t, StateJoining, m.State())

	open, ok := findEffect[OpenSession](effects)
	require.True(t, ok)
	assert.JSONEq(t, `{"clientData":"viewer","main":false}`, open.Metadata)

	local, ok := m.Registry().Local()
	require.True(t, ok)
	assert.Equal(t, "viewer", local.Nickname)

	m.Handle(Connected{ConnectionID: "local"})
	assert.Equal(t, StateJoined, m.State())

	// a second join while joined does nothing
	effects = m.Handle(JoinRequested{})
	_, ok = findEffect[OpenSession](effects)
	assert.False(t, ok)
}

func TestMachine_FirstMainStream(t *testing.T) {
	m := newTestMachine()
	m.Handle(JoinRequested{})
	m.Handle(Connected{ConnectionID: "local"})

	stream := Stream{ID: "s-alice", ConnectionID: "c-alice", ConnectionData: aliceData}
	effects := m.Handle(StreamCreated{Stream: stream})

	remotes := m.Registry().Remotes()
	require.Len(t, remotes, 1)
	assert.Equal(t, "Alice", remotes[0].Nickname)
	assert.True(t, remotes[0].Main)
	assert.Equal(t, "https://x/default.png", remotes[0].AvatarURL)
	assert.Equal(t, TransmissionActive, m.Transmission())

	sub, ok := findEffect[SubscribeStream](effects)
	require.True(t, ok)
	assert.Equal(t, stream, sub.Stream)
	assert.Equal(t, 1, countEffects[Relayout](effects))

	bc, ok := findEffect[BroadcastPresence](effects)
	require.True(t, ok)
	require.NotNil(t, bc.Message.Avatar)
	assert.Equal(t, "https://x/me.png", *bc.Message.Avatar)
}

func TestMachine_StreamBeforeConnected(t *testing.T) {
	m := newTestMachine()
	m.Handle(JoinRequested{})

	m.Handle(StreamCreated{Stream: Stream{ID: "s-bob", ConnectionID: "c-bob", ConnectionData: bobData}})
	assert.Equal(t, 1, m.Registry().RemoteCount())
	assert.Equal(t, TransmissionIdle, m.Transmission())
}

func TestMachine_SecondRemoteIgnored(t *testing.T) {
	m := joined(t)

	effects := m.Handle(StreamCreated{Stream: Stream{ID: "s-bob", ConnectionID: "c-bob", ConnectionData: bobData}})

	assert.Equal(t, 1, m.Registry().RemoteCount())
	assert.Zero(t, countEffects[Relayout](effects))
	assert.Zero(t, countEffects[SubscribeStream](effects))

	report, ok := findEffect[Report](effects)
	require.True(t, ok)
	assert.ErrorIs(t, report.Err, ErrStreamIgnored)
}

func TestMachine_NonJSONNickname(t *testing.T) {
	m := newTestMachine()
	m.Handle(JoinRequested{})

	m.Handle(StreamCreated{Stream: Stream{ID: "s1", ConnectionID: "c1", ConnectionData: "Bob%abc"}})

	remotes := m.Registry().Remotes()
	require.Len(t, remotes, 1)
	assert.Equal(t, "Bob", remotes[0].Nickname)
	assert.False(t, remotes[0].Main)
	assert.Equal(t, TransmissionIdle, m.Transmission())
}

func TestMachine_MainLeavesCleanly(t *testing.T) {
	m := joined(t)

	effects := m.Handle(StreamDestroyed{
		Stream: Stream{ID: "s-alice", ConnectionID: "c-alice", ConnectionData: aliceData},
		Reason: ReasonDisconnect,
	})

	assert.Zero(t, m.Registry().RemoteCount())
	assert.Equal(t, TransmissionClosing, m.Transmission())

	teardown, ok := findEffect[ScheduleTeardown](effects)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, teardown.After)

	relayout, ok := findEffect[ScheduleRelayout](effects)
	require.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, relayout.After)

	effects = m.Handle(GraceElapsed{})
	assert.Equal(t, TransmissionClosed, m.Transmission())
	assert.Equal(t, StateLeaving, m.State())
	_, ok = findEffect[CloseSession](effects)
	assert.True(t, ok)
	_, ok = findEffect[Teardown](effects)
	assert.True(t, ok)

	m.Handle(Disconnected{})
	assert.Equal(t, StateNotJoined, m.State())
}

func TestMachine_MainNetworkDisconnect(t *testing.T) {
	m := joined(t)

	effects := m.Handle(StreamDestroyed{
		Stream: Stream{ID: "s-alice", ConnectionID: "c-alice", ConnectionData: aliceData},
		Reason: ReasonNetworkDisconnect,
	})

	assert.Zero(t, m.Registry().RemoteCount())
	assert.Equal(t, TransmissionActive, m.Transmission())
	_, ok := findEffect[ScheduleTeardown](effects)
	assert.False(t, ok)
	_, ok = findEffect[ScheduleRelayout](effects)
	assert.True(t, ok)
}

func TestMachine_DestroyReleasesMedia(t *testing.T) {
	m := joined(t)
	media := &fakeMedia{}
	m.Handle(MediaReady{Stream: Stream{ID: "s-alice"}, Media: media})

	effects := m.Handle(StreamDestroyed{
		Stream: Stream{ID: "s-alice", ConnectionID: "c-alice", ConnectionData: aliceData},
		Reason: ReasonNetworkDisconnect,
	})

	release, ok := findEffect[ReleaseMedia](effects)
	require.True(t, ok)
	assert.Same(t, media, release.Media)
}

func TestMachine_CreateDestroyRoundTrip(t *testing.T) {
	m := newTestMachine()
	m.Handle(JoinRequested{})
	m.Handle(Connected{ConnectionID: "local"})

	stream := Stream{ID: "s-bob", ConnectionID: "c-bob", ConnectionData: bobData}
	m.Handle(StreamCreated{Stream: stream})
	require.Equal(t, 1, m.Registry().RemoteCount())

	effects := m.Handle(StreamDestroyed{Stream: stream, Reason: ReasonDisconnect})
	assert.Zero(t, m.Registry().RemoteCount())
	assert.Equal(t, TransmissionIdle, m.Transmission())
	_, ok := findEffect[ScheduleTeardown](effects)
	assert.False(t, ok)
}

func TestMachine_UnrelatedDestroyIgnored(t *testing.T) {
	m := joined(t)

	effects := m.Handle(StreamDestroyed{
		Stream: Stream{ID: "s-other", ConnectionID: "c-other", ConnectionData: bobData},
		Reason: ReasonDisconnect,
	})
	assert.Empty(t, effects)
	assert.Equal(t, 1, m.Registry().RemoteCount())
}

func TestMachine_RelayoutCoalesces(t *testing.T) {
	m := joined(t)

	first := m.Handle(Resized{Width: 800, Height: 600})
	second := m.Handle(Resized{Width: 1024, Height: 768})

	a, ok := findEffect[ScheduleRelayout](first)
	require.True(t, ok)
	b, ok := findEffect[ScheduleRelayout](second)
	require.True(t, ok)
	assert.Greater(t, b.Seq, a.Seq)

	resize, ok := findEffect[ResizeContainer](second)
	require.True(t, ok)
	assert.Equal(t, ResizeContainer{Width: 1024, Height: 768}, resize)

	assert.Empty(t, m.Handle(RelayoutDue{Seq: a.Seq}))
	assert.Equal(t, []Effect{Relayout{}}, m.Handle(RelayoutDue{Seq: b.Seq}))
}

func TestMachine_ExitCancelsTeardown(t *testing.T) {
	m := joined(t)
	media := &fakeMedia{}
	m.Handle(MediaReady{Stream: Stream{ID: "s-alice"}, Media: media})
	m.Handle(StreamCreated{Stream: Stream{ID: "s-x", ConnectionID: "c-x", ConnectionData: bobData}})

	m.Handle(StreamDestroyed{
		Stream: Stream{ID: "s-other", ConnectionID: "c-other", ConnectionData: `{"clientData":"Host","main":true}`},
		Reason: ReasonDisconnect,
	})
	require.Equal(t, TransmissionClosing, m.Transmission())

	effects := m.Handle(ExitRequested{})
	assert.Equal(t, StateLeaving, m.State())
	assert.Equal(t, CancelTeardown{}, effects[0])
	assert.Equal(t, 1, countEffects[ReleaseMedia](effects))
	assert.Zero(t, m.Registry().RemoteCount())

	assert.Empty(t, m.Handle(GraceElapsed{}))
	assert.Equal(t, TransmissionClosing, m.Transmission())

	m.Handle(Disconnected{})
	assert.Equal(t, StateNotJoined, m.State())
	assert.Empty(t, m.Handle(ExitRequested{}))
}

func TestMachine_ConnectFailed(t *testing.T) {
	m := newTestMachine()
	m.Handle(JoinRequested{})

	effects := m.Handle(ConnectFailed{Err: assert.AnError})
	assert.Equal(t, StateNotJoined, m.State())

	teardown, ok := findEffect[Teardown](effects)
	require.True(t, ok)
	assert.ErrorIs(t, teardown.Err, ErrJoinFailed)
	assert.ErrorIs(t, teardown.Err, assert.AnError)

	// late connect result after the failure
	assert.Empty(t, m.Handle(Connected{ConnectionID: "late"}))
	assert.Equal(t, StateNotJoined, m.State())
}

func TestMachine_Presence(t *testing.T) {
	m := joined(t)

	data, err := presence.Encode(presence.NewMessage("https://x/alice.png", false))
	require.NoError(t, err)

	assert.Empty(t, m.Handle(SignalReceived{Type: presence.SignalUserChanged, From: "c-alice", Data: data}))
	p, ok := m.Registry().FindRemote("c-alice")
	require.True(t, ok)
	assert.Equal(t, "https://x/alice.png", p.AvatarURL)

	effects := m.Handle(SignalReceived{Type: presence.SignalUserChanged, From: "c-alice", Data: "{not json"})
	report, ok := findEffect[Report](effects)
	require.True(t, ok)
	assert.ErrorIs(t, report.Err, ErrSignalParse)
	assert.ErrorIs(t, report.Err, presence.ErrMalformed)

	p, _ = m.Registry().FindRemote("c-alice")
	assert.Equal(t, "https://x/alice.png", p.AvatarURL)

	assert.Empty(t, m.Handle(SignalReceived{Type: "chat", From: "c-alice", Data: data}))
}

func TestMachine_MediaAfterLeave(t *testing.T) {
	m := joined(t)
	m.Handle(StreamDestroyed{
		Stream: Stream{ID: "s-alice", ConnectionID: "c-alice", ConnectionData: aliceData},
		Reason: ReasonNetworkDisconnect,
	})

	media := &fakeMedia{}
	effects := m.Handle(MediaReady{Stream: Stream{ID: "s-alice"}, Media: media})
	assert.Equal(t, []Effect{ReleaseMedia{Media: media}}, effects)
}

func TestMachine_SessionDisconnected(t *testing.T) {
	m := joined(t)

	effects := m.Handle(SessionDisconnected{Reason: ReasonNetworkDisconnect})
	assert.Equal(t, StateNotJoined, m.State())
	assert.Zero(t, m.Registry().RemoteCount())

	report, ok := findEffect[Report](effects)
	require.True(t, ok)
	assert.ErrorIs(t, report.Err, ErrSessionLost)
	teardown, ok := findEffect[Teardown](effects)
	require.True(t, ok)
	assert.ErrorIs(t, teardown.Err, ErrSessionLost)
}

func TestMachine_ClosedTransmissionStaysClosed(t *testing.T) {
	m := joined(t)
	m.Handle(StreamDestroyed{
		Stream: Stream{ID: "s-alice", ConnectionID: "c-alice", ConnectionData: aliceData},
		Reason: ReasonDisconnect,
	})
	m.Handle(GraceElapsed{})
	m.Handle(Disconnected{})
	require.Equal(t, TransmissionClosed, m.Transmission())

	m.Handle(JoinRequested{})
	m.Handle(StreamCreated{Stream: Stream{ID: "s2", ConnectionID: "c2", ConnectionData: aliceData}})
	assert.Equal(t, TransmissionClosed, m.Transmission())
}
