package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// KeyPrefix prefixes the client ID to name the shared signal entry and its
// cookie mirror.
const KeyPrefix = "aw_signal_"

// Key returns the shared-store key for clientID's signal.
func Key(clientID string) string {
	return KeyPrefix + clientID
}

// Message is the signal pushed from the secondary to the primary context.
// State is the idempotency key: at most one message per state is acted on.
type Message struct {
	// Code is the authorization code from the provider redirect.
	Code string `json:"code,omitempty"`

	// State is the correlation token round-tripped through the provider.
	State string `json:"state"`

	// Timestamp is when the secondary created the message, in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Error is the provider error code when the redirect carried one.
	Error string `json:"error,omitempty"`

	// ErrorDescription is the provider's human-readable error description.
	ErrorDescription string `json:"error_description,omitempty"`
}

// NewMessage creates a message for a successful redirect.
func NewMessage(code, state string, now time.Time) Message {
	return Message{
		Code:      code,
		State:     state,
		Timestamp: now.UnixMilli(),
	}
}

// IsError reports whether the message relays a provider error.
func (m Message) IsError() bool {
	return m.Error != ""
}

// ErrInvalidMessage is returned by Decode for values that are not signals.
var ErrInvalidMessage = errors.New("invalid signal message")

// Encode serializes m for the shared store.
func Encode(m Message) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode signal: %w", err)
	}
	return string(data), nil
}

// Decode parses a serialized message and checks it carries a state and
// either a code or an error.
func Decode(raw string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.State == "" {
		return Message{}, fmt.Errorf("%w: missing state", ErrInvalidMessage)
	}
	if m.Code == "" && m.Error == "" {
		return Message{}, fmt.Errorf("%w: missing code", ErrInvalidMessage)
	}
	return m, nil
}
