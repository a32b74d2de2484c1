// Package logging provides the structured logging used across agegate.
//
// It is a thin layer over log/slog. Every entry carries a subsystem
// attribute so output from the gate, the signal channel and the storage
// backends can be told apart when several contexts write to the same
// terminal.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Gate", "Session valid until %s", expiry)
//	logging.Debug("Signal", "Ignoring signal with mismatched state")
//	logging.Warn("Session", "Cookie backend unavailable")
//	logging.Error("Provider", err, "Token exchange failed")
//
// Components that accept a *slog.Logger can be handed For(subsystem), which
// returns a logger pre-bound to the subsystem attribute.
//
// # Subsystems
//
//   - Gate: state machine transitions
//   - Signal: transports, dedup and timeouts
//   - Session: session record persistence
//   - Provider: token exchange and userinfo calls
//   - Storage: key/value and cookie backends
//   - Callback: the local redirect receiver
//   - Config: configuration loading
//
// Secrets (code verifiers, authorization codes, access tokens) are never
// passed to the logger; log their length or the attempt ID instead.
package logging
