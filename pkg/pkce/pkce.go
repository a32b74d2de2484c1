package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Method is the only code challenge method the gate uses.
const Method = "S256"

const (
	// StateBytes is the number of random bytes behind the state token.
	// The state is the only correlation between the two contexts, so it must
	// stay at 32 bytes or more.
	StateBytes = 32

	// NonceBytes is the number of random bytes behind the OIDC nonce.
	NonceBytes = 32

	// VerifierBytes is the number of random bytes behind the code verifier.
	// Hex encoding yields 128 characters, the maximum RFC 7636 allows.
	VerifierBytes = 64
)

// ErrRandomUnavailable is returned when the secure random source fails.
// Callers treat it as a fatal configuration error.
var ErrRandomUnavailable = errors.New("secure random source unavailable")

// randReader is swapped in tests to simulate a broken entropy source.
var randReader io.Reader = rand.Reader

// GenerateSecret returns length random bytes, hex-encoded.
func GenerateSecret(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(randReader, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomUnavailable, err)
	}

	return hex.EncodeToString(buf), nil
}

// DeriveChallenge returns the S256 code challenge for verifier:
// base64url(SHA-256(verifier)) with the padding stripped.
func DeriveChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
