package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"agegate/internal/gate"
	agestrings "agegate/pkg/strings"
)

// TerminalRenderer draws the gate in a terminal.
type TerminalRenderer struct {
	out io.Writer

	mu      sync.Mutex
	spinner *spinner.Spinner
}

// NewTerminalRenderer returns a renderer writing to out.
func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	return &TerminalRenderer{out: out}
}

// Prompt draws the consent box.
func (r *TerminalRenderer) Prompt(t gate.Text) {
	r.stopSpinner()

	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = true
	tw.AppendHeader(table.Row{text.Bold.Sprint(t.Title)})
	tw.AppendRow(table.Row{text.WrapSoft(t.Description, 60)})
	tw.AppendRow(table.Row{fmt.Sprintf("[y] %s    [n] %s",
		text.FgMagenta.Sprint(t.YesLabel), text.FgHiBlack.Sprint(t.NoLabel))})
	tw.Render()
}

// Denied prints the configured denial text.
func (r *TerminalRenderer) Denied(t gate.Text) {
	r.stopSpinner()
	fmt.Fprintln(r.out, text.FgRed.Sprint(t.ErrorMessage))
}

// Verifying prints the authorization URL and starts the spinner.
func (r *TerminalRenderer) Verifying(authURL string) {
	fmt.Fprintf(r.out, "Complete verification in your browser. If it did not open, visit:\n  %s\n", authURL)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spinner != nil {
		r.spinner.Stop()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(r.out))
	s.Suffix = " Waiting for verification..."
	s.Start()
	r.spinner = s
}

// Reveal reports that the content is unlocked.
func (r *TerminalRenderer) Reveal(returnPath string) {
	r.stopSpinner()
	msg := "Age verified"
	if returnPath != "" && returnPath != "/" {
		msg += ", continuing to " + returnPath
	}
	fmt.Fprintln(r.out, text.FgGreen.Sprint(msg))
}

// Failed reports a failed attempt.
func (r *TerminalRenderer) Failed(err error) {
	r.stopSpinner()
	title := "Verification Error"
	if !gate.IsRetryable(err) {
		title = "Verification Failed"
	}
	// Provider error descriptions are untrusted and unbounded.
	fmt.Fprintf(r.out, "%s: %s\n", text.FgRed.Sprint(title), agestrings.Truncate(err.Error(), agestrings.DefaultMessageMaxLen))
}

func (r *TerminalRenderer) stopSpinner() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.spinner != nil {
		r.spinner.Stop()
		r.spinner = nil
	}
}
