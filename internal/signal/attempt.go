package signal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Transport identifies how a message reached the primary context.
type Transport string

const (
	TransportDirect  Transport = "direct"
	TransportStorage Transport = "storage-event"
	TransportPoll    Transport = "poll"
)

// Delivery is an accepted message and the transport that delivered it first.
type Delivery struct {
	Message   Message
	Transport Transport
}

// Attempt is one listening session for a single pending request. It owns the
// producers, the timeout timer and the processed flag, and is torn down
// exactly once.
type Attempt struct {
	// ID uniquely identifies the attempt in logs.
	ID string

	state      string
	processed  atomic.Bool
	deliveries chan Delivery

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	done   chan struct{}
	result Delivery
	err    error
}

func newAttempt(parent context.Context, state string, buffer int) *Attempt {
	ctx, cancel := context.WithCancel(parent)
	return &Attempt{
		ID:         uuid.NewString(),
		state:      state,
		deliveries: make(chan Delivery, buffer),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// State returns the expected state this attempt accepts.
func (a *Attempt) State() string {
	return a.state
}

// Processed reports whether a message has already been accepted.
func (a *Attempt) Processed() bool {
	return a.processed.Load()
}

// Cancel stops the attempt. Safe to call repeatedly and from any goroutine;
// a no-op once the attempt has finished.
func (a *Attempt) Cancel() {
	a.once.Do(a.cancel)
}

// Done is closed once the attempt has finished and been torn down.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the attempt finishes or ctx is done. It returns the
// accepted delivery, or ErrTimeout / ErrCancelled. Cancelling ctx only stops
// waiting; use Cancel to stop the attempt itself.
func (a *Attempt) Wait(ctx context.Context) (Delivery, error) {
	select {
	case <-a.done:
		return a.result, a.err
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// offer hands a delivery to the consumer. It reports false when the attempt
// is no longer accepting input.
func (a *Attempt) offer(d Delivery) bool {
	if a.processed.Load() {
		return false
	}
	select {
	case a.deliveries <- d:
		return true
	case <-a.ctx.Done():
		return false
	}
}
