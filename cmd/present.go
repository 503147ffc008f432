package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomview/internal/config"
	"github.com/BioHazard786/roomview/internal/media"
	"github.com/BioHazard786/roomview/internal/presence"
	"github.com/BioHazard786/roomview/internal/session"
	"github.com/BioHazard786/roomview/internal/signaling"
	"github.com/BioHazard786/roomview/internal/ui"
)

var (
	flagPresentNickname string
	flagPresentAvatar   string
	flagPresentVideo    string
)

var presentCmd = &cobra.Command{
	Use:     "present <session-id|url>",
	Aliases: []string{"p"},
	Short:   "Join a room as the broadcaster and publish a stream",
	Long: `Join a video room as the main participant and publish a VP8 video track.
With --video the given IVF file is played in a loop; without it the track is
announced but stays silent.

Examples:
  roomview present demo1
  roomview present demo1 --video testdata/sample.ivf --nickname host`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseSessionInput(args[0])
		if err != nil {
			return err
		}
		return present(cmd.Context(), sessionID)
	},
}

func present(ctx context.Context, sessionID string) error {
	sc, err := newSessionContext(config.Options{
		Nickname: flagPresentNickname,
		Avatar:   flagPresentAvatar,
	})
	if err != nil {
		return err
	}
	cfg := sc.Config

	var video *os.File
	if flagPresentVideo != "" {
		if video, err = os.Open(flagPresentVideo); err != nil {
			return fmt.Errorf("open video: %w", err)
		}
		defer video.Close()
	}

	fmt.Println()
	spin := ui.NewConnectionSpinner("Connecting to server...")
	spin.Start()

	token, err := sc.Broker.Token(ctx, sessionID)
	if err != nil {
		spin.Error("Could not get a connection token")
		return err
	}

	client := signaling.NewClient(sc.WSURL, sc.ICE)
	client.Listen(func(ev session.Event) { logPresenterEvent(ev) })

	metadata := session.FormatConnectionData(session.ConnectionMeta{ClientData: cfg.Nickname, Main: true})
	connectionID, err := client.Connect(ctx, token, metadata)
	if err != nil {
		spin.Error("Could not join the room")
		return session.NewError("present", session.ErrJoinFailed, err)
	}
	defer func() {
		if err := client.Disconnect(); err != nil {
			slog.Debug("disconnect", "error", err)
		}
	}()

	pub, err := media.NewPublisher(sc.ICE, "roomview-"+connectionID)
	if err != nil {
		spin.Stop()
		return err
	}
	defer pub.Close()

	streamID, err := client.Publish(ctx, pub)
	if err != nil {
		spin.Error("Could not publish the stream")
		return err
	}
	spin.Success("Live")
	slog.Info("publishing", "session", sessionID, "connectionId", connectionID, "stream", streamID)

	if data, err := presence.Encode(presence.NewMessage(cfg.Avatar, false)); err == nil {
		if err := client.Signal(ctx, presence.SignalUserChanged, data); err != nil {
			slog.Warn("failed to send presence", "error", err)
		}
	}

	source := "silent track"
	if video != nil {
		source = flagPresentVideo
	}
	fmt.Println(ui.RoomInfo{RoomID: sessionID, Nickname: cfg.Nickname, Source: source}.View())
	ui.PrintInfo("Press Ctrl+C to stop presenting")

	videoErr := make(chan error, 1)
	if video != nil {
		go func() { videoErr <- pub.StreamIVF(ctx, video) }()
	}

	select {
	case <-ctx.Done():
		ui.PrintSuccess("Stopped presenting")
		return nil
	case <-client.Done():
		return session.NewError("present", session.ErrSessionLost, signaling.ErrClosed)
	case err := <-videoErr:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("stream video: %w", err)
	}
}

func logPresenterEvent(ev session.Event) {
	switch ev := ev.(type) {
	case session.SignalReceived:
		if ev.Type != presence.SignalUserChanged {
			return
		}
		m, err := presence.Decode(ev.Data)
		if err != nil {
			slog.Debug("ignoring presence", "from", ev.From, "error", err)
			return
		}
		avatar := ""
		if m.Avatar != nil {
			avatar = *m.Avatar
		}
		slog.Info("viewer presence", "connectionId", ev.From, "avatar", avatar, "mobile", m.PlatformIsMobile)
	case session.SessionDisconnected:
		slog.Warn("session disconnected", "reason", ev.Reason)
	}
}

func init() {
	rootCmd.AddCommand(presentCmd)

	presentCmd.Flags().StringVarP(&flagPresentNickname, "nickname", "n", "", "Nickname shown to viewers")
	presentCmd.Flags().StringVarP(&flagPresentAvatar, "avatar", "a", "", "Avatar URL announced to viewers")
	presentCmd.Flags().StringVarP(&flagPresentVideo, "video", "v", "", "VP8 IVF file to play in a loop")
}
