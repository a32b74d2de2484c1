// Package session persists the local "verified" record that keeps the gate
// open between runs.
//
// A Record is written to two independent backends: the durable key/value
// store and a cookie with the same expiry. Either one alone is enough to keep
// the session alive, so clearing one backend (or a backend refusing writes)
// does not re-trigger the gate.
//
// Reads prefer the key/value store and fall back to the cookie. A record with
// an unknown schema version, or whose expiry has passed, is treated as absent
// and deleted from both backends as part of the read.
//
// Expiry uses the wall clock. There is no protection against the system
// clock being moved; a clock set back keeps a session alive longer.
package session
