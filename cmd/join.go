package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomview/internal/config"
	"github.com/BioHazard786/roomview/internal/session"
	"github.com/BioHazard786/roomview/internal/signaling"
	"github.com/BioHazard786/roomview/internal/ui"
)

var (
	flagJoinNickname  string
	flagJoinAvatar    string
	flagJoinEmphasize bool
)

var joinCmd = &cobra.Command{
	Use:     "join <session-id|url>",
	Aliases: []string{"j"},
	Short:   "Join a room and watch the broadcaster",
	Long: `Join a video room as a viewer. The broadcaster's tile, the roster and the
room state are shown live until you leave or the broadcast ends.

Examples:
  roomview join demo1
  roomview join demo1 --nickname alice --emphasize
  roomview join http://localhost:8080/rooms/demo1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseSessionInput(args[0])
		if err != nil {
			return err
		}
		return joinSession(cmd.Context(), sessionID)
	},
}

func joinSession(ctx context.Context, sessionID string) error {
	sc, err := newSessionContext(config.Options{
		Nickname: flagJoinNickname,
		Avatar:   flagJoinAvatar,
	})
	if err != nil {
		return err
	}
	cfg := sc.Config
	if flagJoinEmphasize {
		cfg.EmphasizeMain = true
	}

	var viewer *ui.Viewer
	orch, err := session.New(session.Config{
		SessionID:     sessionID,
		Machine:       cfg.MachineOptions(),
		Layout:        cfg.Layout,
		EmphasizeMain: cfg.EmphasizeMain,
		Dial:          signaling.Dialer(sc.WSURL, sc.ICE),
		Tokens:        sc.Broker,
		Observer:      func(s session.Snapshot) { viewer.Observe(s) },
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	viewer = ui.NewViewer(sessionID, orch)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(ctx) }()
	orch.Join()

	slog.Debug("joining session", "session", sessionID, "server", cfg.ServerURL)
	uiErr := viewer.Run()

	// the viewer returns on teardown or on a forced quit
	cancel()
	err = <-runErr
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	summary := viewer.Summary()
	summary.Err = err
	fmt.Println()
	ui.RenderSummary(summary)

	return errors.Join(uiErr, err)
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagJoinNickname, "nickname", "n", "", "Nickname shown to other participants")
	joinCmd.Flags().StringVarP(&flagJoinAvatar, "avatar", "a", "", "Avatar URL announced to other participants")
	joinCmd.Flags().BoolVarP(&flagJoinEmphasize, "emphasize", "e", false, "Give the broadcaster a big tile")
}
