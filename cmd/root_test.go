package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"agegate/internal/config"
	"agegate/internal/gate"
	"agegate/internal/provider"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if GetVersion() != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "agegate" {
		t.Errorf("Expected Use to be 'agegate', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "agegate version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	expected := "agegate version 1.0.0\n"
	if buf.String() != expected {
		t.Errorf("Expected version output %q, got %q", expected, buf.String())
	}
}

func TestSubcommands(t *testing.T) {
	expectedCommands := []string{"verify", "callback", "status", "logout", "version", "self-update"}
	foundCommands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"config-path", "debug", "client-id", "storage", "redis-url", "callback-port"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag --%s", name)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitCodeSuccess},
		{"generic", errors.New("boom"), ExitCodeError},
		{"configuration", config.NewConfigurationError("", config.ErrorTypeValidation, "invalid configuration", "clientId: is required"), ExitCodeConfig},
		{"wrapped configuration", fmt.Errorf("load: %w", config.NewConfigurationError("x", config.ErrorTypeParse, "bad", "")), ExitCodeConfig},
		{"declined", errNotVerified, ExitCodeNotVerified},
		{"denied", gate.ErrVerificationDenied, ExitCodeNotVerified},
		{"popup", &gate.PopupBlockedError{URL: "https://example.com", Err: errors.New("no display")}, ExitCodeNotVerified},
		{"timeout", &gate.SignalTimeoutError{}, ExitCodeNotVerified},
		{"provider", &gate.ProviderError{Code: "server_error"}, ExitCodeNotVerified},
		{"exchange", &provider.ExchangeError{Status: 400, Code: "invalid_grant"}, ExitCodeNotVerified},
		{"userinfo", &provider.UserinfoError{Status: 401}, ExitCodeNotVerified},
		{"gated command", &commandExitError{code: 7, err: errors.New("exit status 7")}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
