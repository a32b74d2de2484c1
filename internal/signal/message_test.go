package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "aw_signal_abc123", Key("abc123"))
}

func TestNewMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := NewMessage("code-1", "state-1", now)

	assert.Equal(t, "code-1", msg.Code)
	assert.Equal(t, "state-1", msg.State)
	assert.Equal(t, now.UnixMilli(), msg.Timestamp)
	assert.False(t, msg.IsError())
}

func TestEncode_WireFormat(t *testing.T) {
	encoded, err := Encode(Message{Code: "c", State: "s", Timestamp: 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"c","state":"s","timestamp":42}`, encoded)

	encoded, err = Encode(Message{State: "s", Timestamp: 42, Error: "access_denied", ErrorDescription: "nope"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"s","timestamp":42,"error":"access_denied","error_description":"nope"}`, encoded)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		isError bool
	}{
		{name: "code", raw: `{"code":"c","state":"s","timestamp":1}`},
		{name: "provider error", raw: `{"state":"s","error":"access_denied"}`, isError: true},
		{name: "not json", raw: `garbage`, wantErr: true},
		{name: "missing state", raw: `{"code":"c"}`, wantErr: true},
		{name: "missing code and error", raw: `{"state":"s"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "s", msg.State)
			assert.Equal(t, tt.isError, msg.IsError())
		})
	}
}
