// Package gate implements the age-verification state machine.
//
// A Gate runs in one of two roles. The primary role owns the gated content:
// it checks for a session, asks for consent, starts the PKCE handshake in a
// secondary context (the system browser) and waits for the signal carrying
// the authorization code. The secondary role is the context the provider
// redirects to; it only relays the redirect back through the signal channel.
//
// Primary transitions:
//
//	Locked    --Consent-->      Verifying
//	Verifying --signal ok-->    Unlocked
//	Verifying --failure-->      Error
//	Verifying --cancel-->       Locked
//	Error     --Retry-->        Locked
//	Unlocked  --Logout-->       Locked
//
// A signal whose state does not match the pending request never causes a
// transition, and each attempt performs at most one token exchange.
package gate
