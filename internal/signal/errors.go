package signal

import "errors"

var (
	// ErrTimeout is returned when no matching signal arrives in time.
	ErrTimeout = errors.New("no verification signal received before the timeout")

	// ErrCancelled is returned when the attempt is cancelled before a signal arrives.
	ErrCancelled = errors.New("verification attempt cancelled")

	// ErrStateMismatch marks a signal for a different pending request.
	// Such signals are ignored, never surfaced.
	ErrStateMismatch = errors.New("signal state does not match the pending request")

	// ErrNoListener is returned by an Opener when no attempt is waiting.
	ErrNoListener = errors.New("no verification attempt is listening")

	// ErrSettled is returned by an Opener when the attempt it would deliver
	// to has already finished. Retrying cannot succeed.
	ErrSettled = errors.New("verification attempt already settled")
)
