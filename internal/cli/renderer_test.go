package cli

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"

	"agegate/internal/gate"
	"agegate/internal/session"
)

func TestMain(m *testing.M) {
	text.DisableColors()
	os.Exit(m.Run())
}

func TestTerminalRenderer_Prompt(t *testing.T) {
	var out bytes.Buffer
	NewTerminalRenderer(&out).Prompt(gate.DefaultText())

	assert.Contains(t, out.String(), "Age Verification")
	assert.Contains(t, out.String(), "You must verify your age")
	assert.Contains(t, out.String(), "[y] Verify with AgeWallet")
	assert.Contains(t, out.String(), "[n] I Disagree")
}

func TestTerminalRenderer_Denied(t *testing.T) {
	var out bytes.Buffer
	NewTerminalRenderer(&out).Denied(gate.Text{ErrorMessage: "Sorry, you do not meet the minimum requirements."})
	assert.Equal(t, "Sorry, you do not meet the minimum requirements.\n", out.String())
}

func TestTerminalRenderer_VerifyingThenReveal(t *testing.T) {
	var out bytes.Buffer
	r := NewTerminalRenderer(&out)

	r.Verifying("https://app.agewallet.io/user/authorize?state=s")
	r.Reveal("/members")

	assert.Contains(t, out.String(), "https://app.agewallet.io/user/authorize?state=s")
	assert.Contains(t, out.String(), "Age verified, continuing to /members")
}

func TestTerminalRenderer_Failed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "retryable", err: &gate.SignalTimeoutError{Timeout: time.Minute}, want: "Verification Error: "},
		{name: "denied", err: gate.ErrVerificationDenied, want: "Verification Failed: age requirement not met"},
		{name: "other", err: errors.New("boom"), want: "Verification Failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			NewTerminalRenderer(&out).Failed(tt.err)
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestTerminalRenderer_FailedTruncatesProviderText(t *testing.T) {
	var out bytes.Buffer
	NewTerminalRenderer(&out).Failed(&gate.ProviderError{Code: "server_error", Description: strings.Repeat("x", 2000)})

	assert.Contains(t, out.String(), "...")
	assert.Less(t, len(out.String()), 400)
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	PrintStatus(&out, StatusView{ClientID: "abc123", Backend: "file", Location: "/tmp/store", Now: now})
	assert.Contains(t, out.String(), "abc123")
	assert.Contains(t, out.String(), "/tmp/store")
	assert.Contains(t, out.String(), "Not verified")

	out.Reset()
	record := session.NewRecord(now, 90*time.Minute)
	PrintStatus(&out, StatusView{ClientID: "abc123", Backend: "redis", Session: &record, Now: now})
	assert.Contains(t, out.String(), "Verified")
	assert.Contains(t, out.String(), "1h30m0s")
}
