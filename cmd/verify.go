package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"agegate/internal/browser"
	"agegate/internal/cli"
	"agegate/internal/config"
	"agegate/internal/gate"
	"agegate/internal/provider"
	agesignal "agegate/internal/signal"
	"agegate/pkg/logging"

	"github.com/spf13/cobra"
)

type verifyOptions struct {
	yes       bool
	noBrowser bool
}

func newVerifyCmd() *cobra.Command {
	var opts verifyOptions

	cmd := &cobra.Command{
		Use:   "verify [-- command [args...]]",
		Short: "Verify the user's age, then optionally run a command",
		Long: `Shows the age gate. If a verified session exists the gate opens at once;
otherwise the user is asked for consent and verification continues in the
browser. When a command is given it runs only after the gate has opened, and
its exit status becomes agegate's exit status.

Exit codes:
  0  verified (and the command succeeded)
  2  configuration error
  3  not verified (declined, denied or failed)`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args, opts)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Consent without prompting and fail on the first unsuccessful attempt")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "Print the verification URL instead of opening a browser")
	return cmd
}

func runVerify(cmd *cobra.Command, args []string, opts verifyOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	out := cmd.OutOrStdout()
	inbox := agesignal.NewInbox()

	g, err := newPrimaryGate(cfg, be, inbox, out, opts, strings.Join(args, " "))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := browser.NewCallbackServer(cfg.Callback.Host, cfg.Callback.Port,
		browser.WithInbox(inbox),
		browser.WithPage(browser.Page{Title: cfg.Text.Title, Logo: cfg.Logo, CSS: cfg.CSS}),
		browser.WithCallbackHandler(func(ctx context.Context, query url.Values) (agesignal.Message, error) {
			return g.HandleCallback(ctx, query, inbox)
		}),
	)
	if _, err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start callback receiver on %s: %w", cfg.RedirectURI(), err)
	}
	defer server.Stop()

	go func() {
		select {
		case err := <-server.Errors():
			logging.Error("Callback", err, "Callback receiver stopped")
			cancel()
		case <-ctx.Done():
		}
	}()

	if g.Start(ctx) != gate.StateUnlocked {
		if err := promptUntilSettled(ctx, g, cmd.ErrOrStderr(), opts); err != nil {
			return err
		}
	}

	return runGated(ctx, cmd, args)
}

// newPrimaryGate wires a gate that runs the whole handshake in this process.
func newPrimaryGate(cfg config.Config, be *backend, inbox *agesignal.Inbox, out io.Writer, opts verifyOptions, returnPath string) (*gate.Gate, error) {
	var launcher gate.Launcher = browser.NewSystemLauncher()
	if opts.noBrowser {
		launcher = browser.PrintLauncher{Out: out}
	}

	return gate.New(gate.Options{
		ClientID:    cfg.ClientID,
		RedirectURI: cfg.RedirectURI(),
		Text:        gate.Text(cfg.Text),
		SessionTTL:  cfg.SessionTTL(),
		ReturnPath:  returnPath,
		Sessions:    be.sessions,
		Provider: provider.NewClient(cfg.ClientID,
			provider.WithLogger(logging.For("Provider")),
			provider.WithEndpoints(provider.Endpoints{
				AuthorizeURL: cfg.Provider.AuthorizeURL,
				TokenURL:     cfg.Provider.TokenURL,
				UserinfoURL:  cfg.Provider.UserinfoURL,
			}),
		),
		Listener: agesignal.NewListener(agesignal.ListenerConfig{
			ClientID:     cfg.ClientID,
			Store:        be.store,
			Cookies:      be.cookies,
			Inbox:        inbox,
			Timeout:      cfg.Signal.Timeout,
			PollInterval: cfg.Signal.PollInterval,
		}),
		Sender: agesignal.NewSender(agesignal.SenderConfig{
			ClientID: cfg.ClientID,
			Store:    be.store,
			Cookies:  be.cookies,
		}),
		Launcher: launcher,
		Renderer: cli.NewTerminalRenderer(out),
	})
}

// promptUntilSettled drives the gate until it unlocks or the user gives up.
// With opts.yes it consents once and returns the first failure.
func promptUntilSettled(ctx context.Context, g *gate.Gate, stderr io.Writer, opts verifyOptions) error {
	var prompter *cli.Prompter
	if !opts.yes {
		p, err := cli.NewPrompter(nil, nil)
		if err != nil {
			return err
		}
		defer p.Close()
		prompter = p
	}

	for g.State() != gate.StateUnlocked {
		choice := cli.ChoiceVerify
		if prompter != nil {
			allowRetry := g.State() == gate.StateError
			question := "Verify your age? [y/n]"
			if allowRetry {
				question = "Try again? [r/q]"
			}

			var err error
			if choice, err = prompter.Ask(question, allowRetry); err != nil {
				return err
			}
		}

		switch choice {
		case cli.ChoiceDecline:
			g.Deny()
			return errNotVerified
		case cli.ChoiceQuit:
			if err := g.Err(); err != nil {
				return err
			}
			return errNotVerified
		case cli.ChoiceRetry:
			if err := g.Retry(); err != nil {
				return err
			}
			continue
		}

		if g.State() == gate.StateError {
			if err := g.Retry(); err != nil {
				return err
			}
		}

		err := g.Consent(ctx)
		if err == nil {
			_, err = g.Wait(ctx)
		}
		if ctx.Err() != nil {
			g.Cancel()
			return fmt.Errorf("verification interrupted: %w", errNotVerified)
		}
		if g.State() == gate.StateUnlocked {
			return nil
		}

		var popupErr *gate.PopupBlockedError
		switch {
		case errors.As(err, &popupErr):
			fmt.Fprintf(stderr, "%v\nOpen this URL manually:\n  %s\n", err, popupErr.URL)
		case err != nil && g.State() != gate.StateError:
			// Failures in the Error state were already shown by the renderer.
			fmt.Fprintln(stderr, err)
		}
		if prompter == nil {
			if err == nil {
				err = errNotVerified
			}
			return err
		}
	}
	return nil
}

// runGated runs the command after the gate opened. Its exit status is
// passed through.
func runGated(ctx context.Context, cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Stdin = cmd.InOrStdin()
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()

	logging.Debug("Gate", "Running %s", strings.Join(args, " "))
	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			if code < 0 {
				code = ExitCodeError
			}
			return &commandExitError{code: code, err: err}
		}
		return fmt.Errorf("failed to run %s: %w", args[0], err)
	}
	return nil
}
