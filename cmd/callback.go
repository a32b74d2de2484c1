package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agegate/internal/cli"
	"agegate/internal/gate"
	agesignal "agegate/internal/signal"
	"agegate/pkg/logging"

	"github.com/spf13/cobra"
)

const directPushTimeout = 5 * time.Second

func newCallbackCmd() *cobra.Command {
	var storeOnly bool

	cmd := &cobra.Command{
		Use:   "callback <redirect-url>",
		Short: "Relay a provider redirect to a waiting verify process",
		Long: `Hands the provider's redirect to the agegate verify process that started
the verification. Use it when the browser landed on the redirect URL on a
machine or session where the callback receiver was not reachable: copy the
full URL from the address bar and pass it here.

The result is written to the shared store and the cookie mirror, and pushed
directly to the callback receiver when it is reachable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallback(cmd, args[0], storeOnly)
		},
	}
	cmd.Flags().BoolVar(&storeOnly, "store-only", false, "Do not push to the callback receiver, only write shared storage")
	return cmd
}

func runCallback(cmd *cobra.Command, raw string, storeOnly bool) error {
	ctx := cmd.Context()

	query, err := callbackQuery(raw)
	if err != nil {
		return err
	}
	if gate.DetectRole(query, nil) != gate.RoleSecondary {
		return gate.ErrNotCallback
	}

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
		ClientID:   cfg.ClientID,
		SessionTTL: cfg.SessionTTL(),
		Sessions:   be.sessions,
		Sender: agesignal.NewSender(agesignal.SenderConfig{
			ClientID: cfg.ClientID,
			Store:    be.store,
			Cookies:  be.cookies,
		}),
		Renderer: cli.NewTerminalRenderer(cmd.OutOrStdout()),
	})
	if err != nil {
		return err
	}

	var opener agesignal.Opener
	if !storeOnly {
		opener = agesignal.NewHTTPOpener(cfg.SignalURL(), &http.Client{Timeout: directPushTimeout})
	}

	msg, err := g.HandleCallback(ctx, query, opener)
	if err != nil {
		var providerErr *gate.ProviderError
		if errors.As(err, &providerErr) && msg.State == "" {
			logging.Warn("Callback", "Redirect carries no state, the waiting process cannot match it")
		}
		return err
	}

	out := cmd.OutOrStdout()
	if gate.IsRegionExempt(msg) {
		fmt.Fprintln(out, "Verification not required in this region. The session has been saved.")
		return nil
	}
	if msg.IsError() {
		fmt.Fprintf(out, "Provider error forwarded: %s\n", msg.ErrorDescription)
		return nil
	}
	fmt.Fprintln(out, "Verification result sent. Return to the waiting agegate window.")
	return nil
}

// callbackQuery accepts a full redirect URL or just its query string.
func callbackQuery(raw string) (url.Values, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}

	query, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL: %w", err)
	}
	return query, nil
}
