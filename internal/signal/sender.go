package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"agegate/internal/cookie"
	"agegate/internal/storage"
	"agegate/pkg/logging"
)

const (
	// DefaultRetryCount is how many times a rejected direct push is retried.
	DefaultRetryCount = 5

	// DefaultRetryInterval is the pause between direct push attempts.
	DefaultRetryInterval = 200 * time.Millisecond

	// DefaultMirrorTTL is the lifetime of the signal cookie mirror.
	DefaultMirrorTTL = 5 * time.Minute
)

// SenderConfig configures a Sender.
type SenderConfig struct {
	ClientID string
	Store    storage.Store
	Cookies  *cookie.Jar

	RetryCount    int
	RetryInterval time.Duration
	MirrorTTL     time.Duration
}

// Sender is the secondary side of the channel.
type Sender struct {
	cfg SenderConfig
	key string
}

// Report records which transports took the message.
type Report struct {
	Stored   bool
	Mirrored bool
	Direct   bool

	// DirectTries counts calls to the opener, zero without one.
	DirectTries int
}

// Delivered reports whether at least one transport took the message.
func (r Report) Delivered() bool {
	return r.Stored || r.Mirrored || r.Direct
}

// NewSender returns a Sender with defaults applied.
func NewSender(cfg SenderConfig) *Sender {
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	} else if cfg.RetryCount == 0 {
		cfg.RetryCount = DefaultRetryCount
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.MirrorTTL <= 0 {
		cfg.MirrorTTL = DefaultMirrorTTL
	}
	return &Sender{cfg: cfg, key: Key(cfg.ClientID)}
}

// Send publishes msg on every transport available to the secondary: the
// shared store, the cookie mirror, then the opener if one is given. It
// returns an error only when no transport took the message.
func (s *Sender) Send(ctx context.Context, opener Opener, msg Message) (Report, error) {
	var report Report

	encoded, err := Encode(msg)
	if err != nil {
		return report, err
	}

	var errs []error
	if s.cfg.Store != nil {
		if err := s.cfg.Store.Set(ctx, s.key, encoded); err != nil {
			errs = append(errs, fmt.Errorf("shared store: %w", err))
		} else {
			report.Stored = true
		}
	}
	if s.cfg.Cookies != nil {
		if err := s.cfg.Cookies.Set(s.key, encoded, s.cfg.MirrorTTL); err != nil {
			errs = append(errs, fmt.Errorf("cookie mirror: %w", err))
		} else {
			report.Mirrored = true
			if report.Stored {
				s.withdrawMirrorIfConsumed(ctx)
			}
		}
	}

	if opener != nil {
		tries, err := s.push(ctx, opener, msg)
		report.DirectTries = tries
		if err != nil {
			logging.Debug("Signal", "Direct push abandoned after %d tries: %v", tries, err)
			errs = append(errs, fmt.Errorf("direct: %w", err))
		} else {
			report.Direct = true
		}
	}

	if !report.Delivered() {
		if len(errs) == 0 {
			return report, errors.New("no signal transport available")
		}
		return report, fmt.Errorf("failed to deliver signal: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		if errors.Is(err, ErrSettled) {
			logging.Debug("Signal", "Primary already settled the attempt: %v", err)
			continue
		}
		logging.Warn("Signal", "Signal transport failed: %v", err)
	}
	return report, nil
}

// withdrawMirrorIfConsumed removes the mirror written after the store entry
// when the primary consumed and cleared the entry in between. The primary's
// own teardown covers every later interleaving.
func (s *Sender) withdrawMirrorIfConsumed(ctx context.Context) {
	if _, err := s.cfg.Store.Get(ctx, s.key); !errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err := s.cfg.Cookies.Delete(s.key); err != nil {
		logging.Debug("Signal", "Failed to withdraw signal cookie: %v", err)
		return
	}
	logging.Debug("Signal", "Signal consumed before the cookie mirror was written, mirror withdrawn")
}

func (s *Sender) push(ctx context.Context, opener Opener, msg Message) (int, error) {
	tries := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		tries++
		err := opener.PostMessage(ctx, msg)
		if errors.Is(err, ErrSettled) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.cfg.RetryInterval)),
		backoff.WithMaxTries(uint(s.cfg.RetryCount+1)), // #nosec G115 -- RetryCount is non-negative
		backoff.WithNotify(func(err error, next time.Duration) {
			logging.Debug("Signal", "Direct push rejected (%v), retrying in %s", err, next)
		}),
	)
	return tries, err
}
