package cmd

import (
	"fmt"

	"agegate/internal/cli"
	"agegate/internal/gate"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the verified session",
		Long: `Removes the verified session from the shared store and the cookie jar.
The next verify asks for verification again.`,
		Args: cobra.NoArgs,
		RunE: runLogout,
	}
}

func runLogout(cmd *cobra.Command, args []string) error {
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

	g, err := gate.New(gate.Options{
		ClientID: cfg.ClientID,
		Sessions: be.sessions,
		Renderer: cli.NewTerminalRenderer(cmd.OutOrStdout()),
	})
	if err != nil {
		return err
	}
	if err := g.Logout(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Session cleared.")
	return nil
}
