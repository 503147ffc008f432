package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BioHazard786/roomview/internal/layout"
	"github.com/BioHazard786/roomview/internal/session"
)

type fakeController struct {
	mu      sync.Mutex
	resizes [][2]float64
	exits   int
	done    chan struct{}
}

func newFakeController() *fakeController {
	return &fakeController{done: make(chan struct{})}
}

func (c *fakeController) Resize(w, h float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resizes = append(c.resizes, [2]float64{w, h})
}

func (c *fakeController) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exits++
}

func (c *fakeController) Done() <-chan struct{} { return c.done }

func joinedSnapshot() session.Snapshot {
	return session.Snapshot{
		State:        session.StateJoined,
		Transmission: session.TransmissionActive,
		Local: session.Participant{
			ConnectionID: "con_local",
			Nickname:     "viewer",
			AvatarURL:    "https://x/me.png",
			Role:         session.RoleLocal,
		},
		Remotes: []session.Participant{{
			ConnectionID: "con_remote",
			Nickname:     "alice",
			AvatarURL:    "https://x/alice.png",
			Role:         session.RoleRemote,
			Main:         true,
		}},
		Placements: []layout.Placement{{
			ID:   "con_remote",
			Rect: layout.Rect{X: 0, Y: 0, Width: 40, Height: 20},
		}},
		Width:  40,
		Height: 20,
	}
}

func TestCanvas_Size(t *testing.T) {
	w, h := Canvas{Cols: 80, Rows: 20}.Size()
	assert.Equal(t, 80.0, w)
	assert.Equal(t, 40.0, h)

	w, h = Canvas{Cols: 80}.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestCanvas_Cells(t *testing.T) {
	c := Canvas{Cols: 40, Rows: 10}

	tests := []struct {
		name string
		rect layout.Rect
		want cellRect
	}{
		{"full container", layout.Rect{Width: 80, Height: 40}, cellRect{0, 0, 40, 10}},
		{"right half", layout.Rect{X: 40, Width: 40, Height: 40}, cellRect{20, 0, 20, 10}},
		{"clamped overflow", layout.Rect{X: 60, Y: 30, Width: 80, Height: 80}, cellRect{30, 8, 10, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.cells(tt.rect, 80, 40))
		})
	}
}

func TestCanvas_Render(t *testing.T) {
	c := Canvas{Cols: 20, Rows: 5}
	out := c.Render(20, 10, []TileView{{
		Placement: layout.Placement{ID: "a", Rect: layout.Rect{Width: 20, Height: 10}},
		Label:     "alice",
	}})

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 5)
	for _, line := range lines {
		assert.Equal(t, 20, lipgloss.Width(line))
	}
	assert.Contains(t, lines[0], "┌")
	assert.Contains(t, lines[4], "┘")
	assert.Contains(t, lines[2], "alice")
}

func TestCanvas_RenderBigTile(t *testing.T) {
	c := Canvas{Cols: 10, Rows: 4}
	out := c.Render(10, 8, []TileView{{
		Placement: layout.Placement{ID: "a", Big: true, Rect: layout.Rect{Width: 10, Height: 8}},
		Label:     "a very long nickname",
	}})

	assert.Contains(t, out, "╔")
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, "┌")
}

func TestCanvas_RenderEmpty(t *testing.T) {
	assert.Empty(t, Canvas{}.Render(10, 10, nil))

	out := Canvas{Cols: 4, Rows: 2}.Render(0, 0, []TileView{{Label: "x"}})
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, 4, lipgloss.Width(line))
	}
	assert.NotContains(t, out, "x")
}

func TestRosterRows(t *testing.T) {
	rows := RosterRows(joinedSnapshot())
	require.Len(t, rows, 2)
	assert.Equal(t, RosterRow{Nickname: "viewer", Connection: "con_local", Avatar: "https://x/me.png", Role: "local"}, rows[0])
	assert.Equal(t, "broadcaster", rows[1].Role)

	assert.Empty(t, RosterRows(session.Snapshot{}))
}

func TestRosterView(t *testing.T) {
	out := RosterView(RosterRows(joinedSnapshot()))
	assert.Contains(t, out, "Nickname")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "broadcaster")

	assert.Contains(t, RosterView(nil), "No participants")
}

func TestViewer_ResizeAndExit(t *testing.T) {
	ctl := newFakeController()
	v := NewViewer("demo1", ctl)

	_, cmd := v.model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Nil(t, cmd)
	require.Len(t, ctl.resizes, 1)
	assert.Equal(t, [2]float64{100, float64(40-chromeRows) * CellAspect}, ctl.resizes[0])

	_, cmd = v.model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, ctl.exits)
	assert.Contains(t, v.model.View(), "Press q again")

	_, cmd = v.model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Equal(t, 1, ctl.exits)
}

func TestViewer_SmallTerminalUnmounts(t *testing.T) {
	ctl := newFakeController()
	v := NewViewer("demo1", ctl)

	v.model.Update(tea.WindowSizeMsg{Width: 80, Height: chromeRows - 2})
	require.Len(t, ctl.resizes, 1)
	assert.Equal(t, [2]float64{0, 0}, ctl.resizes[0])
}

func TestViewer_Snapshots(t *testing.T) {
	ctl := newFakeController()
	v := NewViewer("demo1", ctl)
	v.model.Update(tea.WindowSizeMsg{Width: 40, Height: chromeRows + 10})

	v.model.Update(snapshotMsg(session.Snapshot{State: session.StateJoining}))
	view := v.model.View()
	assert.Contains(t, view, "Joining session")
	assert.NotContains(t, view, "Transmission closed")

	v.model.Update(snapshotMsg(joinedSnapshot()))
	view = v.model.View()
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "┌")

	closed := joinedSnapshot()
	closed.Transmission = session.TransmissionClosing
	closed.Remotes, closed.Placements = nil, nil
	v.model.Update(snapshotMsg(closed))
	view = v.model.View()
	assert.Contains(t, view, "Transmission closed")
	assert.Contains(t, view, "Waiting for the broadcaster")

	s := v.Summary()
	assert.Equal(t, "demo1", s.Session)
	assert.Equal(t, "viewer", s.Nickname)
	assert.Equal(t, 1, s.RemotesSeen)
	assert.Equal(t, session.TransmissionClosing, s.Transmission)
}

func TestViewer_SessionDoneQuits(t *testing.T) {
	v := NewViewer("demo1", newFakeController())

	_, cmd := v.model.Update(sessionDoneMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, v.model.View())
}

func TestViewer_ObserveKeepsLatest(t *testing.T) {
	v := NewViewer("demo1", newFakeController())

	v.Observe(session.Snapshot{State: session.StateJoining})
	v.Observe(session.Snapshot{State: session.StateJoined})

	got := <-v.updates
	assert.Equal(t, session.StateJoined, got.State)
}

func TestSummaryView(t *testing.T) {
	out := SummaryView(Summary{
		Session:      "demo1",
		Nickname:     "viewer",
		RemotesSeen:  2,
		Transmission: session.TransmissionClosed,
	})
	assert.Contains(t, out, "Session Summary")
	assert.Contains(t, out, "demo1")
	assert.Contains(t, out, "Transmission ended")
	assert.Contains(t, out, "0s")

	out = SummaryView(Summary{Session: "demo1", Err: errors.New("join failed")})
	assert.Contains(t, out, "join failed")
}

func TestTokenView(t *testing.T) {
	out := TokenView(TokenInfo{Session: "demo1", Token: "tok_abc", Server: "http://localhost:8080"})
	assert.Contains(t, out, "tok_abc")
	assert.Contains(t, out, "demo1")
}
