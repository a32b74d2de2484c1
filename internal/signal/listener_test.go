package signal

import (
	"context"
	"sync"
	"testing"
	"time"

	"agegate/internal/cookie"
	"agegate/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "abc123"

type channelFixture struct {
	store   *storage.MemoryStore
	cookies *cookie.Jar
	inbox   *Inbox
}

func newChannelFixture(t *testing.T) *channelFixture {
	t.Helper()
	jar, err := cookie.NewJar("")
	require.NoError(t, err)
	return &channelFixture{
		store:   storage.NewMemoryStore(),
		cookies: jar,
		inbox:   NewInbox(),
	}
}

func (f *channelFixture) listener(timeout time.Duration) *Listener {
	return NewListener(ListenerConfig{
		ClientID: testClientID,
		Store:    f.store,
		Cookies:  f.cookies,
		Inbox:    f.inbox,
		Timeout:  timeout,
	})
}

func (f *channelFixture) sender() *Sender {
	return NewSender(SenderConfig{
		ClientID:      testClientID,
		Store:         f.store,
		Cookies:       f.cookies,
		RetryInterval: time.Millisecond,
	})
}

func (f *channelFixture) assertCleared(t *testing.T) {
	t.Helper()
	_, err := f.store.Get(context.Background(), Key(testClientID))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, ok := f.cookies.Get(Key(testClientID))
	assert.False(t, ok)
}

func waitFor(t *testing.T, a *Attempt) (Delivery, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.Wait(ctx)
}

func TestNewListener_Defaults(t *testing.T) {
	l := NewListener(ListenerConfig{ClientID: testClientID, PollInterval: 5 * time.Second})
	assert.Equal(t, DefaultTimeout, l.Timeout())
	assert.Equal(t, DefaultPollInterval, l.cfg.PollInterval)
}

func TestListener_RequiresState(t *testing.T) {
	f := newChannelFixture(t)
	_, err := f.listener(time.Second).Listen(context.Background(), "")
	assert.Error(t, err)
}

func TestListener_DirectDelivery(t *testing.T) {
	f := newChannelFixture(t)
	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)
	assert.NotEmpty(t, attempt.ID)
	assert.Equal(t, "state-1", attempt.State())

	msg := NewMessage("code-1", "state-1", time.Now())
	require.NoError(t, f.inbox.PostMessage(context.Background(), msg))

	delivery, err := waitFor(t, attempt)
	require.NoError(t, err)
	assert.Equal(t, msg, delivery.Message)
	assert.Equal(t, TransportDirect, delivery.Transport)
	assert.True(t, attempt.Processed())

	// The inbox detaches once the attempt is done and reports it settled.
	assert.ErrorIs(t, f.inbox.PostMessage(context.Background(), msg), ErrSettled)
}

func TestListener_StorageEventDelivery(t *testing.T) {
	f := newChannelFixture(t)
	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)

	msg := NewMessage("code-1", "state-1", time.Now())
	encoded, err := Encode(msg)
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), Key(testClientID), encoded))

	delivery, err := waitFor(t, attempt)
	require.NoError(t, err)
	assert.Equal(t, msg, delivery.Message)
	assert.Contains(t, []Transport{TransportStorage, TransportPoll}, delivery.Transport)
	f.assertCleared(t)
}

func TestListener_PollsCookieMirror(t *testing.T) {
	f := newChannelFixture(t)
	l := NewListener(ListenerConfig{
		ClientID:     testClientID,
		Cookies:      f.cookies,
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	attempt, err := l.Listen(context.Background(), "state-1")
	require.NoError(t, err)

	encoded, err := Encode(NewMessage("code-1", "state-1", time.Now()))
	require.NoError(t, err)
	require.NoError(t, f.cookies.Set(Key(testClientID), encoded, time.Minute))

	delivery, err := waitFor(t, attempt)
	require.NoError(t, err)
	assert.Equal(t, TransportPoll, delivery.Transport)
	assert.Equal(t, "code-1", delivery.Message.Code)
	f.assertCleared(t)
}

func TestListener_AcceptsOneMessageAcrossTransports(t *testing.T) {
	f := newChannelFixture(t)
	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)

	msg := NewMessage("code-1", "state-1", time.Now())
	report, err := f.sender().Send(context.Background(), f.inbox, msg)
	require.NoError(t, err)
	assert.True(t, report.Stored)
	assert.True(t, report.Mirrored)

	delivery, err := waitFor(t, attempt)
	require.NoError(t, err)
	assert.Equal(t, msg, delivery.Message)

	// A second copy of the same message finds nobody listening.
	err = f.inbox.PostMessage(context.Background(), msg)
	assert.ErrorIs(t, err, ErrNoListener)
	again, err := attempt.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, delivery, again)
}

func TestListener_IgnoresStateMismatch(t *testing.T) {
	f := newChannelFixture(t)
	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)

	require.NoError(t, f.inbox.PostMessage(context.Background(), NewMessage("stale", "state-0", time.Now())))
	assert.False(t, attempt.Processed())

	require.NoError(t, f.inbox.PostMessage(context.Background(), NewMessage("fresh", "state-1", time.Now())))

	delivery, err := waitFor(t, attempt)
	require.NoError(t, err)
	assert.Equal(t, "fresh", delivery.Message.Code)
}

func TestListener_ClearsLeftoversOnListen(t *testing.T) {
	f := newChannelFixture(t)
	encoded, err := Encode(NewMessage("old", "state-0", time.Now()))
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), Key(testClientID), encoded))
	require.NoError(t, f.cookies.Set(Key(testClientID), encoded, time.Minute))

	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)
	defer attempt.Cancel()

	f.assertCleared(t)
}

func TestListener_TimeoutTearsDown(t *testing.T) {
	f := newChannelFixture(t)
	attempt, err := f.listener(50*time.Millisecond).Listen(context.Background(), "state-1")
	require.NoError(t, err)

	encoded, err := Encode(NewMessage("other", "state-9", time.Now()))
	require.NoError(t, err)
	require.NoError(t, f.store.Set(context.Background(), Key(testClientID), encoded))

	_, err = waitFor(t, attempt)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, attempt.Processed())
	f.assertCleared(t)

	// Late signals are dropped.
	assert.ErrorIs(t, f.inbox.PostMessage(context.Background(), NewMessage("late", "state-1", time.Now())), ErrNoListener)
}

func TestAttempt_CancelIsIdempotent(t *testing.T) {
	f := newChannelFixture(t)
	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attempt.Cancel()
		}()
	}
	wg.Wait()

	_, err = waitFor(t, attempt)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.NotPanics(t, attempt.Cancel)

	select {
	case <-attempt.Done():
	default:
		t.Fatal("attempt should be done")
	}
}

func TestListener_ParentCancellation(t *testing.T) {
	f := newChannelFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	attempt, err := f.listener(5*time.Second).Listen(ctx, "state-1")
	require.NoError(t, err)

	cancel()
	_, err = waitFor(t, attempt)
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestAttempt_WaitHonoursCallerContext(t *testing.T) {
	f := newChannelFixture(t)
	attempt, err := f.listener(5*time.Second).Listen(context.Background(), "state-1")
	require.NoError(t, err)
	defer attempt.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = attempt.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, attempt.Processed())
}
