package signal

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"agegate/internal/cookie"
	"agegate/internal/storage"
	"agegate/pkg/logging"
)

const (
	// DefaultTimeout bounds how long an attempt waits for a signal.
	DefaultTimeout = 120 * time.Second

	// DefaultPollInterval is the polling period, also its upper bound.
	DefaultPollInterval = time.Second

	deliveryBuffer = 8
	teardownBudget = 5 * time.Second
)

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// ClientID namespaces the shared signal entry.
	ClientID string

	// Store is the shared key/value store written by the secondary.
	Store storage.Store

	// Cookies holds the cookie mirror of the signal. Optional.
	Cookies *cookie.Jar

	// Inbox receives direct pushes. Optional.
	Inbox *Inbox

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// PollInterval defaults to DefaultPollInterval and is capped at it.
	PollInterval time.Duration
}

// Listener starts attempts on the primary side.
type Listener struct {
	cfg ListenerConfig
	key string
}

// NewListener returns a Listener with defaults applied.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 || cfg.PollInterval > DefaultPollInterval {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Listener{cfg: cfg, key: Key(cfg.ClientID)}
}

// Timeout returns the effective attempt timeout.
func (l *Listener) Timeout() time.Duration {
	return l.cfg.Timeout
}

// Listen starts every transport for a request with the given expected state
// and returns the running attempt. Cancelling ctx cancels the attempt.
func (l *Listener) Listen(ctx context.Context, expectedState string) (*Attempt, error) {
	if expectedState == "" {
		return nil, errors.New("expected state is required")
	}

	// Leftovers from an abandoned attempt can never match a fresh state.
	l.clear()

	a := newAttempt(ctx, expectedState, deliveryBuffer)
	logger := logging.For("Signal").With("attempt", a.ID)

	// Subscribe before returning so no write after Listen can be missed.
	var events <-chan storage.Event
	if l.cfg.Store != nil {
		ch, err := l.cfg.Store.Watch(a.ctx)
		if err != nil {
			logger.Warn("Storage notifications unavailable, relying on polling", "error", err)
		} else {
			events = ch
		}
	}

	detach := func() {}
	if l.cfg.Inbox != nil {
		detach = l.cfg.Inbox.attach(a)
	}

	var group errgroup.Group
	if events != nil {
		group.Go(func() error {
			l.watch(a, events)
			return nil
		})
	}
	group.Go(func() error {
		l.poll(a)
		return nil
	})

	timer := time.NewTimer(l.cfg.Timeout)
	go l.consume(a, timer, func() {
		detach()
		_ = group.Wait()
	})

	logger.Debug("Listening for verification signal", "timeout", l.cfg.Timeout, "poll_interval", l.cfg.PollInterval)
	return a, nil
}

func (l *Listener) consume(a *Attempt, timer *time.Timer, stopProducers func()) {
	logger := logging.For("Signal").With("attempt", a.ID)

	var (
		result Delivery
		err    error
	)
loop:
	for {
		select {
		case d := <-a.deliveries:
			if d.Message.State != a.state {
				logger.Debug("Ignoring signal", "error", ErrStateMismatch, "transport", d.Transport)
				continue
			}
			if !a.processed.CompareAndSwap(false, true) {
				continue
			}
			result = d
			logger.Info("Verification signal accepted", "transport", d.Transport)
			break loop
		case <-timer.C:
			a.processed.Store(true)
			err = ErrTimeout
			logger.Warn("Timed out waiting for verification signal")
			break loop
		case <-a.ctx.Done():
			a.processed.Store(true)
			err = ErrCancelled
			logger.Debug("Attempt cancelled")
			break loop
		}
	}

	timer.Stop()
	a.Cancel()
	stopProducers()
	l.clear()

	a.result, a.err = result, err
	close(a.done)
}

// watch forwards storage notifications for the signal key.
func (l *Listener) watch(a *Attempt, events <-chan storage.Event) {
	for {
		select {
		case <-a.ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Key != l.key || event.Type != storage.EventSet {
				continue
			}
			msg, err := Decode(event.Value)
			if err != nil {
				logging.Debug("Signal", "Ignoring storage event: %v", err)
				continue
			}
			if !a.offer(Delivery{Message: msg, Transport: TransportStorage}) {
				return
			}
		}
	}
}

// poll reads the shared entry and the cookie mirror on every tick, starting
// immediately.
func (l *Listener) poll(a *Attempt) {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for _, msg := range l.read(a.ctx) {
			if !a.offer(Delivery{Message: msg, Transport: TransportPoll}) {
				return
			}
		}
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l *Listener) read(ctx context.Context) []Message {
	var found []Message
	if l.cfg.Store != nil {
		raw, err := l.cfg.Store.Get(ctx, l.key)
		switch {
		case err == nil:
			if msg, decodeErr := Decode(raw); decodeErr == nil {
				found = append(found, msg)
			}
		case !errors.Is(err, storage.ErrNotFound) && ctx.Err() == nil:
			logging.Debug("Signal", "Polling shared store failed: %v", err)
		}
	}
	if l.cfg.Cookies != nil {
		if raw, ok := l.cfg.Cookies.Get(l.key); ok {
			if msg, err := Decode(raw); err == nil {
				found = append(found, msg)
			}
		}
	}
	return found
}

// clear deletes the shared entry and its cookie mirror.
func (l *Listener) clear() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownBudget)
	defer cancel()

	if l.cfg.Store != nil {
		if err := l.cfg.Store.Delete(ctx, l.key); err != nil {
			logging.Warn("Signal", "Failed to delete shared signal entry: %v", err)
		}
	}
	if l.cfg.Cookies != nil {
		if err := l.cfg.Cookies.Delete(l.key); err != nil {
			logging.Warn("Signal", "Failed to delete signal cookie: %v", err)
		}
	}
}
