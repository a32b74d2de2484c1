package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbox_ServeHTTP(t *testing.T) {
	valid := `{"code":"c","state":"state-1","timestamp":1}`

	tests := []struct {
		name       string
		method     string
		body       string
		listen     bool
		wantStatus int
	}{
		{name: "wrong method", method: http.MethodGet, wantStatus: http.StatusMethodNotAllowed},
		{name: "malformed", method: http.MethodPost, body: `{`, wantStatus: http.StatusBadRequest},
		{name: "no listener", method: http.MethodPost, body: valid, wantStatus: http.StatusConflict},
		{name: "accepted", method: http.MethodPost, body: valid, listen: true, wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChannelFixture(t)
			if tt.listen {
				attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
				require.NoError(t, err)
				defer attempt.Cancel()
			}

			req := httptest.NewRequest(tt.method, "/signal", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			f.inbox.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHTTPOpener_DeliversToRemoteInbox(t *testing.T) {
	f := newChannelFixture(t)
	server := httptest.NewServer(f.inbox)
	defer server.Close()

	opener := NewHTTPOpener(server.URL, server.Client())
	msg := NewMessage("code-1", "state-1", time.Now())

	assert.ErrorIs(t, opener.PostMessage(context.Background(), msg), ErrNoListener)

	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)
	require.NoError(t, opener.PostMessage(context.Background(), msg))

	delivery, err := waitFor(t, attempt)
	require.NoError(t, err)
	assert.Equal(t, TransportDirect, delivery.Transport)
	assert.Equal(t, msg, delivery.Message)
}

func TestHTTPOpener_BadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	s := NewSender(SenderConfig{ClientID: testClientID, RetryInterval: time.Millisecond})
	report, err := s.Send(context.Background(), NewHTTPOpener(server.URL, nil), NewMessage("c", "s", time.Now()))
	require.Error(t, err)
	assert.Equal(t, 1, report.DirectTries)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPOpener_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewSender(SenderConfig{ClientID: testClientID, RetryInterval: time.Millisecond})
	report, err := s.Send(context.Background(), NewHTTPOpener(server.URL, nil), NewMessage("c", "s", time.Now()))
	require.NoError(t, err)
	assert.True(t, report.Direct)
	assert.Equal(t, 3, report.DirectTries)
}

func TestInbox_SettledAttemptAnswersGone(t *testing.T) {
	f := newChannelFixture(t)
	server := httptest.NewServer(f.inbox)
	defer server.Close()

	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)
	attempt.Cancel()
	<-attempt.Done()

	resp, err := server.Client().Post(server.URL, "application/json",
		strings.NewReader(`{"code":"c","state":"state-1","timestamp":1}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	s := NewSender(SenderConfig{ClientID: testClientID, RetryInterval: time.Millisecond})
	report, err := s.Send(context.Background(), NewHTTPOpener(server.URL, server.Client()), NewMessage("c", "state-1", time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettled)
	assert.Equal(t, 1, report.DirectTries)
}
