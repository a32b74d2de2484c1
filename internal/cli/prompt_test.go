package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		line       string
		allowRetry bool
		want       Choice
	}{
		{line: "y", want: ChoiceVerify},
		{line: " YES ", want: ChoiceVerify},
		{line: "n", want: ChoiceDecline},
		{line: "no", want: ChoiceDecline},
		{line: "r", want: ChoiceNone},
		{line: "retry", allowRetry: true, want: ChoiceRetry},
		{line: "q", want: ChoiceQuit},
		{line: "exit", want: ChoiceQuit},
		{line: "", want: ChoiceNone},
		{line: "maybe", want: ChoiceNone},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseChoice(tt.line, tt.allowRetry))
		})
	}
}
