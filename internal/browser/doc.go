// Package browser drives the secondary context: it opens the system browser
// on the provider's authorization URL and runs the local callback receiver
// the provider redirects back to.
//
// The callback receiver serves three things on the redirect origin:
//
//   - GET / with a provider redirect query: relays it through the signal
//     channel and renders a "verification complete" or error page.
//   - GET / without one: renders a "verifying" page.
//   - POST /signal: the primary's Inbox, for secondaries running in another
//     process.
package browser
