package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/roomview/internal/broker"
	"github.com/BioHazard786/roomview/internal/config"
	"github.com/BioHazard786/roomview/internal/ui"
)

var tokenCmd = &cobra.Command{
	Use:   "token <session-id|url>",
	Short: "Create the room if needed and print a connection token",
	Long: `Ask the room server for a connection token, creating the room first when it
does not exist yet. Tokens are single-use.

Examples:
  roomview token demo1
  roomview token demo1 --server https://rooms.example.com --secret s3cret`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := parseSessionInput(args[0])
		if err != nil {
			return err
		}
		return printToken(cmd.Context(), sessionID)
	},
}

func printToken(ctx context.Context, sessionID string) error {
	cfg, err := loadConfig(config.Options{})
	if err != nil {
		return err
	}

	stop := ui.RunConnectionSpinner("Requesting token...")
	token, err := broker.New(cfg.ServerURL, cfg.Secret).Token(ctx, sessionID)
	stop()
	if err != nil {
		return err
	}

	fmt.Println()
	ui.RenderToken(ui.TokenInfo{Session: sessionID, Token: token, Server: cfg.ServerURL})
	return nil
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
