package cmd

import (
	"errors"
	"fmt"
	"os"

	"agegate/internal/config"
	"agegate/internal/gate"
	"agegate/internal/provider"
	"agegate/pkg/logging"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeConfig indicates the configuration could not be loaded or is invalid.
	ExitCodeConfig = 2
	// ExitCodeNotVerified indicates the user was not verified.
	ExitCodeNotVerified = 3
)

// errNotVerified is returned when the user declines or quits before the
// gate unlocks.
var errNotVerified = errors.New("age verification was not completed")

// commandExitError carries the exit status of a gated command.
type commandExitError struct {
	code int
	err  error
}

func (e *commandExitError) Error() string {
	return fmt.Sprintf("command exited with status %d: %v", e.code, e.err)
}

func (e *commandExitError) Unwrap() error {
	return e.err
}

// Persistent flags shared by all subcommands.
var (
	configPath      string
	debug           bool
	clientIDFlag    string
	storageFlag     string
	redisURLFlag    string
	callbackPortArg int
)

// rootCmd represents the base command for the agegate application.
var rootCmd = &cobra.Command{
	Use:   "agegate",
	Short: "Gate content and commands behind AgeWallet age verification",
	Long: `agegate asks the user to verify their age with AgeWallet before
revealing content or running a command. Verification opens the provider in a
browser, receives the result on a local callback receiver and remembers the
verified session until it expires.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logging.LevelWarn
		if debug {
			level = logging.LevelDebug
		}
		logging.InitForCLI(level, cmd.ErrOrStderr())
		return nil
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agegate version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var exitErr *commandExitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	var configErr config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeConfig
	}

	var (
		popupErr    *gate.PopupBlockedError
		timeoutErr  *gate.SignalTimeoutError
		providerErr *gate.ProviderError
		exchangeErr *provider.ExchangeError
		userinfoErr *provider.UserinfoError
	)
	switch {
	case errors.Is(err, errNotVerified),
		errors.Is(err, gate.ErrVerificationDenied),
		errors.As(err, &popupErr),
		errors.As(err, &timeoutErr),
		errors.As(err, &providerErr),
		errors.As(err, &exchangeErr),
		errors.As(err, &userinfoErr):
		return ExitCodeNotVerified
	}

	// Default to general error
	return ExitCodeError
}

func init() {
	defaultConfigPath := config.GetDefaultConfigPathOrPanic()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config-path", defaultConfigPath, "Directory holding config.yaml and local state")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.StringVar(&clientIDFlag, "client-id", "", "AgeWallet client ID (overrides config and "+config.EnvClientID+")")
	flags.StringVar(&storageFlag, "storage", "", "Shared storage backend: file, redis or memory")
	flags.StringVar(&redisURLFlag, "redis-url", "", "Redis URL for the redis storage backend")
	flags.IntVar(&callbackPortArg, "callback-port", 0, "Port of the local callback receiver (0 uses the configured port)")

	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newCallbackCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
