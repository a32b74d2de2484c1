package provider

import "fmt"

// ExchangeError is returned when the authorization code could not be
// redeemed for an access token.
type ExchangeError struct {
	// Status is the HTTP status code, zero when no response was received.
	Status int

	// Code and Description come from the provider's error response, if any.
	Code        string
	Description string

	Err error
}

func (e *ExchangeError) Error() string {
	switch {
	case e.Description != "":
		return "token exchange failed: " + e.Description
	case e.Code != "":
		return "token exchange failed: " + e.Code
	case e.Err != nil:
		return "token exchange failed: " + e.Err.Error()
	default:
		return fmt.Sprintf("token exchange failed with status %d", e.Status)
	}
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// UserinfoError is returned when the verification status could not be read.
type UserinfoError struct {
	Status int
	Err    error
}

func (e *UserinfoError) Error() string {
	if e.Err != nil {
		return "userinfo request failed: " + e.Err.Error()
	}
	return fmt.Sprintf("userinfo request failed with status %d", e.Status)
}

func (e *UserinfoError) Unwrap() error {
	return e.Err
}
