package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/BioHazard786/roomview/internal/session"
	"github.com/BioHazard786/roomview/internal/utils"
)

// RosterRow is one line of the participant roster.
type RosterRow struct {
	Nickname   string
	Connection string
	Avatar     string
	Role       string
}

// RosterRows lists the local participant first, then the remotes in join
// order. A local participant that has not been registered yet is skipped.
func RosterRows(s session.Snapshot) []RosterRow {
	var rows []RosterRow
	if s.Local.Nickname != "" || s.Local.ConnectionID != "" {
		rows = append(rows, rosterRow(s.Local))
	}
	for _, p := range s.Remotes {
		rows = append(rows, rosterRow(p))
	}
	return rows
}

func rosterRow(p session.Participant) RosterRow {
	role := string(p.Role)
	if p.Role == session.RoleRemote && p.Main {
		role = "broadcaster"
	}
	conn := p.ConnectionID
	if conn == "" {
		conn = "-"
	}
	return RosterRow{
		Nickname:   p.Nickname,
		Connection: utils.ShortID(conn, 12),
		Avatar:     p.AvatarURL,
		Role:       role,
	}
}

// RosterView renders the roster with lipgloss/table.
func RosterView(rows []RosterRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("No participants")
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{
			utils.Truncate(r.Nickname, 20),
			r.Connection,
			utils.Truncate(r.Avatar, 36),
			r.Role,
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Nickname", "Connection", "Avatar", "Role").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RoomInfo is the box `present` shows once it is live in a room.
type RoomInfo struct {
	RoomID   string
	Nickname string
	Source   string
}

func (r RoomInfo) View() string {
	content := fmt.Sprintf("%s Presenting\n\n%s Room:     %s\n%s Nickname: %s\n%s Source:   %s",
		IconLive,
		IconRoom, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconPeer, r.Nickname,
		IconCamera, MutedStyle.Render(r.Source),
	)
	return InfoBoxStyle.Render(content)
}
