package gate

import (
	"errors"
	"fmt"
	"time"

	"agegate/internal/provider"
	"agegate/internal/signal"
)

// ErrVerificationDenied is returned when the provider reports the user does
// not meet the age requirement.
var ErrVerificationDenied = errors.New("age requirement not met")

// RegionExemptError and RegionExemptDescription identify the provider's
// error redirect for regions where verification is not required.
const (
	RegionExemptError       = "access_denied"
	RegionExemptDescription = "Region does not require verification"
)

// IsRegionExempt reports whether msg is the provider's region exemption.
// It counts as a successful verification and may arrive without a state.
func IsRegionExempt(msg signal.Message) bool {
	return msg.Error == RegionExemptError && msg.ErrorDescription == RegionExemptDescription
}

// PopupBlockedError is returned when the secondary context could not be opened.
type PopupBlockedError struct {
	URL string
	Err error
}

func (e *PopupBlockedError) Error() string {
	return fmt.Sprintf("could not open the verification window: %v", e.Err)
}

func (e *PopupBlockedError) Unwrap() error {
	return e.Err
}

// SignalTimeoutError is returned when the secondary never reported back.
type SignalTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *SignalTimeoutError) Error() string {
	return fmt.Sprintf("no response from the verification window after %s. "+
		"Private browsing or strict storage settings can block the handoff; try again in a regular browser window", e.Timeout)
}

func (e *SignalTimeoutError) Unwrap() error {
	return e.Err
}

// ProviderError is returned when the provider redirected back with an error.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return "verification error: " + e.Description
	}
	return "verification error: " + e.Code
}

// TransitionError is returned when an operation is not allowed in the
// current state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

// IsRetryable reports whether starting a new attempt could succeed.
// Explicit denial and configuration problems are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var popupErr *PopupBlockedError
	var timeoutErr *SignalTimeoutError
	var providerErr *ProviderError
	var exchangeErr *provider.ExchangeError
	var userinfoErr *provider.UserinfoError

	switch {
	case errors.Is(err, ErrVerificationDenied):
		return false
	case errors.As(err, &popupErr),
		errors.As(err, &timeoutErr),
		errors.As(err, &providerErr),
		errors.As(err, &exchangeErr),
		errors.As(err, &userinfoErr):
		return true
	default:
		return false
	}
}
