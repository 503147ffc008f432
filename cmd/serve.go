package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomview/internal/config"
	"github.com/BioHazard786/roomview/internal/roomserver"
	"github.com/BioHazard786/roomview/internal/ui"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local development room server",
	Long: `Run the development room server: the REST endpoints the token broker talks
to and the websocket endpoint clients join rooms through. Rooms live in
memory and disappear when their last member leaves.

Examples:
  roomview serve
  roomview serve --listen :9000 --secret s3cret`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig(config.Options{ListenAddr: flagListen})
	if err != nil {
		return err
	}

	ui.PrintSuccessf("Room server listening on %s", cfg.ListenAddr)
	if cfg.Secret == config.DefaultSecret {
		ui.PrintWarning("Using the default secret; set ROOMVIEW_SECRET outside local development")
	}
	return roomserver.NewServer(cfg.ListenAddr, cfg.Secret).ListenAndServe(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Address to listen on (default :8080)")
}
