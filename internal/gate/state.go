package gate

import (
	"net/url"

	"agegate/internal/signal"
)

// State is the gate's position in the verification flow.
type State int

const (
	StateLocked State = iota
	StateVerifying
	StateUnlocked
	StateError
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateVerifying:
		return "verifying"
	case StateUnlocked:
		return "unlocked"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Role tells a context whether it owns the gate or relays a callback.
type Role int

const (
	RolePrimary Role = iota
	RoleSecondary
)

func (r Role) String() string {
	if r == RoleSecondary {
		return "secondary"
	}
	return "primary"
}

// DetectRole inspects how the context was reached. It is secondary when it
// has an opener to report back to, or when the query is a provider redirect.
func DetectRole(query url.Values, opener signal.Opener) Role {
	if opener != nil {
		return RoleSecondary
	}
	if IsCallback(query) {
		return RoleSecondary
	}
	return RolePrimary
}

// IsCallback reports whether query carries a provider redirect.
func IsCallback(query url.Values) bool {
	if query.Get("error") != "" {
		return true
	}
	return query.Get("code") != "" && query.Get("state") != ""
}
