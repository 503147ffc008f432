package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/roomview/internal/session"
)

// chromeRows is the height of everything around the tile canvas: header,
// banner, roster for two participants and footer.
const chromeRows = 14

// Controller is the part of the session orchestrator the viewer drives.
type Controller interface {
	Resize(width, height float64)
	Exit()
	Done() <-chan struct{}
}

type snapshotMsg session.Snapshot

type sessionDoneMsg struct{}

// Viewer is the live terminal view of a session. Observe is installed as
// the orchestrator's observer; Run blocks until the session tears down.
type Viewer struct {
	model   *viewerModel
	updates chan session.Snapshot
}

type viewerModel struct {
	sessionID string
	ctl       Controller
	updates   chan session.Snapshot

	spinner spinner.Model
	snap    session.Snapshot
	canvas  Canvas
	seen    map[string]struct{}
	started time.Time

	leaving  bool
	quitting bool
}

func NewViewer(sessionID string, ctl Controller) *Viewer {
	updates := make(chan session.Snapshot, 1)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &Viewer{
		updates: updates,
		model: &viewerModel{
			sessionID: sessionID,
			ctl:       ctl,
			updates:   updates,
			spinner:   s,
			seen:      make(map[string]struct{}),
			started:   time.Now(),
		},
	}
}

// Observe hands s to the view. It never blocks: if the view has not caught
// up, the pending snapshot is replaced by the newer one.
func (v *Viewer) Observe(s session.Snapshot) {
	for {
		select {
		case v.updates <- s:
			return
		default:
		}
		select {
		case <-v.updates:
		default:
		}
	}
}

// Run starts the bubbletea program. Inline mode keeps earlier output visible.
func (v *Viewer) Run(opts ...tea.ProgramOption) error {
	if _, err := tea.NewProgram(v.model, opts...).Run(); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}

// Summary describes the session as the view saw it.
func (v *Viewer) Summary() Summary {
	m := v.model
	return Summary{
		Session:      m.sessionID,
		Nickname:     m.snap.Local.Nickname,
		RemotesSeen:  len(m.seen),
		Duration:     time.Since(m.started),
		Transmission: m.snap.Transmission,
	}
}

func (m *viewerModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.listenForSnapshots(),
		m.waitForDone(),
	)
}

func (m *viewerModel) listenForSnapshots() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-m.updates)
	}
}

func (m *viewerModel) waitForDone() tea.Cmd {
	return func() tea.Msg {
		<-m.ctl.Done()
		return sessionDoneMsg{}
	}
}

func (m *viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// a second press quits without waiting for teardown
			if m.leaving {
				m.quitting = true
				return m, tea.Quit
			}
			m.leaving = true
			m.ctl.Exit()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.canvas = Canvas{Cols: msg.Width, Rows: max(msg.Height-chromeRows, 0)}
		m.ctl.Resize(m.canvas.Size())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case snapshotMsg:
		m.apply(session.Snapshot(msg))
		return m, m.listenForSnapshots()

	case sessionDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *viewerModel) apply(s session.Snapshot) {
	m.snap = s
	for _, p := range s.Remotes {
		m.seen[p.ConnectionID] = struct{}{}
	}
}

func (m *viewerModel) transmissionOver() bool {
	t := m.snap.Transmission
	return t == session.TransmissionClosing || t == session.TransmissionClosed
}

func (m *viewerModel) status() string {
	switch {
	case m.leaving:
		return "Leaving..."
	case m.snap.State == session.StateJoining:
		return "Joining session..."
	case m.snap.State == session.StateJoined:
		return "Waiting for the broadcaster..."
	case m.snap.State == session.StateLeaving:
		return "Leaving..."
	default:
		return "Starting..."
	}
}

func (m *viewerModel) tiles() []TileView {
	names := make(map[string]string, len(m.snap.Remotes))
	for _, p := range m.snap.Remotes {
		names[p.ConnectionID] = p.Nickname
	}

	views := make([]TileView, 0, len(m.snap.Placements))
	for _, p := range m.snap.Placements {
		label, ok := names[p.ID]
		if !ok {
			continue
		}
		views = append(views, TileView{Placement: p, Label: label})
	}
	return views
}

func (m *viewerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n%s %s %s %s\n\n",
		IconCamera,
		TitleStyle.Render(m.sessionID),
		StatusStyle.Render(string(m.snap.State)),
		MutedStyle.Render("transmission "+string(m.snap.Transmission)),
	))

	if m.transmissionOver() {
		b.WriteString(BannerStyle.Render(IconWarning + "  Transmission closed"))
		b.WriteString("\n")
	}

	switch {
	case len(m.snap.Remotes) == 0:
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.status()))
	case m.canvas.Rows > 0 && len(m.snap.Placements) > 0:
		b.WriteString(m.canvas.Render(m.snap.Width, m.snap.Height, m.tiles()))
		b.WriteString("\n")
	default:
		b.WriteString(MutedStyle.Render(IconWaiting+" laying out tiles...") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(RosterView(RosterRows(m.snap)))
	b.WriteString("\n")

	hint := "Press q to leave"
	if m.leaving {
		hint = "Press q again to quit now"
	}
	b.WriteString(FooterStyle.Render(hint))

	return b.String()
}
