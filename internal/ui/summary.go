package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/roomview/internal/session"
	"github.com/BioHazard786/roomview/internal/utils"
)

// Summary is printed after the viewer exits.
type Summary struct {
	Session      string
	Nickname     string
	RemotesSeen  int
	Duration     time.Duration
	Transmission session.Transmission
	Err          error
}

func (s Summary) status() string {
	switch {
	case s.Err != nil:
		return IconError + " " + s.Err.Error()
	case s.Transmission == session.TransmissionClosed || s.Transmission == session.TransmissionClosing:
		return IconSuccess + " Transmission ended"
	default:
		return IconSuccess + " Left session"
	}
}

func newTable(title string) table.Writer {
	tw := table.NewWriter()
	tw.SetTitle(title)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Title.Align = text.AlignCenter
	tw.Style().Options.SeparateRows = false
	tw.AppendHeader(table.Row{"Metric", "Value"})
	return tw
}

// SummaryView renders s with go-pretty.
func SummaryView(s Summary) string {
	tw := newTable("📊 Session Summary")
	tw.AppendRows([]table.Row{
		{"Status", s.status()},
		{"Session", s.Session},
		{"Nickname", s.Nickname},
		{"Remotes seen", s.RemotesSeen},
		{"Transmission", string(s.Transmission)},
		{"Duration", utils.FormatDuration(s.Duration)},
	})
	return tw.Render()
}

func RenderSummary(s Summary) {
	fmt.Fprintln(Output, SummaryView(s))
}

// TokenInfo describes a token minted by `roomview token`.
type TokenInfo struct {
	Session string
	Token   string
	Server  string
}

func TokenView(t TokenInfo) string {
	tw := newTable(IconKey + " Connection Token")
	tw.AppendRows([]table.Row{
		{"Session", t.Session},
		{"Server", t.Server},
		{"Token", t.Token},
	})
	return tw.Render()
}

func RenderToken(t TokenInfo) {
	fmt.Fprintln(Output, TokenView(t))
}
