// Package cli provides the terminal front end of the gate.
//
// TerminalRenderer implements gate.Renderer: the consent prompt is drawn as a
// go-pretty box, progress while waiting for the browser uses a spinner, and
// results are colored. Prompter reads the user's choice with readline.
// PrintStatus renders the session table for `agegate status`.
//
// Spinners only animate on a terminal; when output is redirected the
// renderer prints plain lines.
package cli
