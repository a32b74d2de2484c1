package browser

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"agegate/pkg/logging"
)

// startCommand launches cmd without waiting for it. Replaced in tests.
var startCommand = func(cmd *exec.Cmd) error {
	return cmd.Start()
}

// SystemLauncher opens URLs in the default web browser.
// It supports Linux, macOS, and Windows.
type SystemLauncher struct{}

// NewSystemLauncher returns a launcher for the current platform.
func NewSystemLauncher() *SystemLauncher {
	return &SystemLauncher{}
}

// Launch opens url and returns once the browser process has started.
func (l *SystemLauncher) Launch(ctx context.Context, url string) error {
	cmd, err := browserCommand(ctx, runtime.GOOS, url)
	if err != nil {
		return err
	}

	if err := startCommand(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	// Reap the opener process; browsers detach from it.
	if cmd.Process != nil {
		go func() { _ = cmd.Wait() }()
	}

	logging.Debug("Callback", "Opened browser with %s", cmd.Path)
	return nil
}

func browserCommand(ctx context.Context, goos, url string) (*exec.Cmd, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return exec.CommandContext(ctx, "xdg-open", url), nil
	case "darwin":
		return exec.CommandContext(ctx, "open", url), nil
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// PrintLauncher asks the user to open the URL themselves, for machines
// without a browser.
type PrintLauncher struct {
	Out io.Writer
}

// Launch prints url and never fails.
func (l PrintLauncher) Launch(_ context.Context, url string) error {
	_, err := fmt.Fprintf(l.Out, "Open this URL in a browser to verify your age:\n  %s\n", url)
	return err
}
