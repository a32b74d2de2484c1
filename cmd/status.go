package cmd

import (
	"time"

	"agegate/internal/cli"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a verified session exists",
		Long: `Shows the configured client, the storage backend and the verified
session with its expiry. An expired or unreadable session is cleared as a
side effect of checking it.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	view := cli.StatusView{
		ClientID: cfg.ClientID,
		Backend:  string(cfg.Storage.Backend),
		Location: be.location,
		Now:      time.Now(),
	}
	if record, ok := be.sessions.Load(ctx); ok {
		view.Session = record
	}

	cli.PrintStatus(cmd.OutOrStdout(), view)
	return nil
}
