// Package provider talks to the age-verification identity provider: it
// builds the authorization URL, redeems an authorization code for an access
// token with PKCE, and reads the age claim from the userinfo endpoint.
//
// The provider expects a bare form POST to its token endpoint (no
// grant_type, no client secret), so the exchange is done by hand rather than
// through oauth2.Config.Exchange. Results are still returned as *oauth2.Token.
//
// Nothing here retries; a failed exchange is surfaced to the caller, who
// decides whether to start a new attempt.
package provider
