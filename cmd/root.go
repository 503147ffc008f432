package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomview/internal/ui"
	"github.com/BioHazard786/roomview/internal/version"
)

var (
	flagConfig   string
	flagServer   string
	flagSecret   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roomview",
	Short: "Terminal client for one-to-many WebRTC video rooms",
	Long: `roomview joins a video room as a viewer and shows the broadcaster's tile,
the participant roster and the room state live in the terminal. It can also
present a stream into a room, mint connection tokens, and run a local
development room server.`,
	Version: version.Version,
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Config file (default ./roomview.yaml)")
	pf.StringVar(&flagServer, "server", "", "Room server URL")
	pf.StringVar(&flagSecret, "secret", "", "Room server secret")
	pf.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	pf.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	pf.StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	pf.StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	pf.BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}
