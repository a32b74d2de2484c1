package signal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"agegate/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyOpener rejects the first failures posts.
type flakyOpener struct {
	failures int32
	calls    atomic.Int32
}

func (o *flakyOpener) PostMessage(context.Context, Message) error {
	if o.calls.Add(1) <= o.failures {
		return ErrNoListener
	}
	return nil
}

type failingStore struct{ storage.Store }

func (failingStore) Set(context.Context, string, string) error { return errors.New("quota exceeded") }

// consumingStore drops the entry as soon as it is written, like a primary
// accepting the signal before the sender gets to the cookie mirror.
type consumingStore struct{ *storage.MemoryStore }

func (s consumingStore) Set(ctx context.Context, key, value string) error {
	if err := s.MemoryStore.Set(ctx, key, value); err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, key)
}

func TestNewSender_Defaults(t *testing.T) {
	s := NewSender(SenderConfig{ClientID: testClientID})
	assert.Equal(t, DefaultRetryCount, s.cfg.RetryCount)
	assert.Equal(t, DefaultRetryInterval, s.cfg.RetryInterval)
	assert.Equal(t, DefaultMirrorTTL, s.cfg.MirrorTTL)
}

func TestSender_WritesStoreAndMirror(t *testing.T) {
	f := newChannelFixture(t)
	msg := NewMessage("code-1", "state-1", time.Now())

	report, err := f.sender().Send(context.Background(), nil, msg)
	require.NoError(t, err)
	assert.True(t, report.Stored)
	assert.True(t, report.Mirrored)
	assert.False(t, report.Direct)
	assert.Zero(t, report.DirectTries)

	raw, err := f.store.Get(context.Background(), Key(testClientID))
	require.NoError(t, err)
	stored, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, msg, stored)

	c := f.cookies.Cookie(Key(testClientID))
	require.NotNil(t, c)
	assert.WithinDuration(t, time.Now().Add(DefaultMirrorTTL), c.Expires, 2*time.Second)
}

func TestSender_RetriesDirectPush(t *testing.T) {
	tests := []struct {
		name       string
		failures   int32
		wantDirect bool
		wantTries  int
	}{
		{name: "first try", failures: 0, wantDirect: true, wantTries: 1},
		{name: "after rejections", failures: 3, wantDirect: true, wantTries: 4},
		{name: "abandoned", failures: 100, wantDirect: false, wantTries: DefaultRetryCount + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newChannelFixture(t)
			opener := &flakyOpener{failures: tt.failures}

			report, err := f.sender().Send(context.Background(), opener, NewMessage("c", "s", time.Now()))
			require.NoError(t, err)
			assert.Equal(t, tt.wantDirect, report.Direct)
			assert.Equal(t, tt.wantTries, report.DirectTries)
			assert.True(t, report.Stored)
		})
	}
}

func TestSender_FailsWhenNothingTakesTheMessage(t *testing.T) {
	s := NewSender(SenderConfig{
		ClientID:      testClientID,
		Store:         failingStore{storage.NewMemoryStore()},
		RetryCount:    1,
		RetryInterval: time.Millisecond,
	})

	report, err := s.Send(context.Background(), &flakyOpener{failures: 100}, NewMessage("c", "s", time.Now()))
	require.Error(t, err)
	assert.False(t, report.Delivered())
	assert.Equal(t, 2, report.DirectTries)
	assert.ErrorIs(t, err, ErrNoListener)
}

func TestSender_NoTransports(t *testing.T) {
	_, err := NewSender(SenderConfig{ClientID: testClientID}).Send(context.Background(), nil, NewMessage("c", "s", time.Now()))
	assert.Error(t, err)
}

func TestSender_WithdrawsMirrorWhenAlreadyConsumed(t *testing.T) {
	f := newChannelFixture(t)
	s := NewSender(SenderConfig{
		ClientID: testClientID,
		Store:    consumingStore{f.store},
		Cookies:  f.cookies,
	})

	report, err := s.Send(context.Background(), nil, NewMessage("c", "s", time.Now()))
	require.NoError(t, err)
	assert.True(t, report.Stored)
	assert.True(t, report.Mirrored)
	f.assertCleared(t)
}

func TestSender_KeepsMirrorWhileEntryIsPending(t *testing.T) {
	f := newChannelFixture(t)

	_, err := f.sender().Send(context.Background(), nil, NewMessage("c", "s", time.Now()))
	require.NoError(t, err)

	_, ok := f.cookies.Get(Key(testClientID))
	assert.True(t, ok)
}

func TestSender_StopsDirectPushOnceSettled(t *testing.T) {
	f := newChannelFixture(t)
	ctx := context.Background()

	attempt, err := f.listener(5*time.Second).Listen(ctx, "state-1")
	require.NoError(t, err)
	msg := NewMessage("code-1", "state-1", time.Now())
	require.NoError(t, f.inbox.PostMessage(ctx, msg))
	_, err = waitFor(t, attempt)
	require.NoError(t, err)

	s := NewSender(SenderConfig{
		ClientID:      testClientID,
		Store:         f.store,
		Cookies:       f.cookies,
		RetryInterval: time.Second,
	})
	start := time.Now()
	report, err := s.Send(ctx, f.inbox, msg)
	require.NoError(t, err)

	assert.Equal(t, 1, report.DirectTries)
	assert.False(t, report.Direct)
	assert.Less(t, time.Since(start), time.Second)
}
