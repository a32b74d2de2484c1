package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Choice is the user's answer to a prompt.
type Choice int

const (
	ChoiceNone Choice = iota
	ChoiceVerify
	ChoiceDecline
	ChoiceRetry
	ChoiceQuit
)

// ParseChoice maps a line of input to a choice. Retry is accepted only when
// allowRetry is set.
func ParseChoice(line string, allowRetry bool) Choice {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "v", "verify":
		return ChoiceVerify
	case "n", "no":
		return ChoiceDecline
	case "r", "retry":
		if allowRetry {
			return ChoiceRetry
		}
	case "q", "quit", "exit":
		return ChoiceQuit
	}
	return ChoiceNone
}

// Prompter reads choices interactively.
type Prompter struct {
	rl *readline.Instance
}

// NewPrompter creates a prompter on stdin/stdout. Either may be nil to use
// the process's standard streams.
func NewPrompter(stdin io.ReadCloser, stdout io.Writer) (*Prompter, error) {
	config := &readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           stdin,
		Stdout:          stdout,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	return &Prompter{rl: rl}, nil
}

// Ask reads until the user gives a valid answer. Ctrl+C and Ctrl+D quit.
func (p *Prompter) Ask(question string, allowRetry bool) (Choice, error) {
	p.rl.SetPrompt(question + " ")
	for {
		line, err := p.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return ChoiceQuit, nil
		} else if err != nil {
			return ChoiceNone, err
		}

		if choice := ParseChoice(line, allowRetry); choice != ChoiceNone {
			return choice, nil
		}
	}
}

// Close releases the terminal.
func (p *Prompter) Close() error {
	return p.rl.Close()
}
