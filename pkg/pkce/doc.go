// Package pkce generates the secrets used by the age verification handshake.
//
// Every random value the gate needs (the PKCE code verifier, the state
// correlation token and the OIDC nonce) comes from GenerateSecret, which reads
// crypto/rand and hex-encodes the bytes. DeriveChallenge turns a verifier into
// the S256 code challenge sent in the authorization request.
//
// # Usage
//
//	verifier, err := pkce.GenerateSecret(pkce.VerifierBytes)
//	if err != nil {
//	    return err // the flow cannot proceed without a secure random source
//	}
//	challenge := pkce.DeriveChallenge(verifier)
package pkce
