package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy pool exhausted")
}

func TestGenerateSecret(t *testing.T) {
	t.Run("hex encodes the requested number of bytes", func(t *testing.T) {
		secret, err := GenerateSecret(StateBytes)
		require.NoError(t, err)
		assert.Len(t, secret, StateBytes*2)

		raw, err := hex.DecodeString(secret)
		require.NoError(t, err)
		assert.Len(t, raw, StateBytes)
	})

	t.Run("produces unique values", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			secret, err := GenerateSecret(VerifierBytes)
			require.NoError(t, err)
			assert.False(t, seen[secret], "duplicate secret on iteration %d", i)
			seen[secret] = true
		}
	})

	t.Run("rejects non-positive lengths", func(t *testing.T) {
		_, err := GenerateSecret(0)
		require.Error(t, err)
	})

	t.Run("surfaces an unavailable random source", func(t *testing.T) {
		original := randReader
		randReader = failingReader{}
		defer func() { randReader = original }()

		_, err := GenerateSecret(StateBytes)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRandomUnavailable))
	})
}

func TestDeriveChallenge(t *testing.T) {
	t.Run("matches the S256 transform", func(t *testing.T) {
		verifier := strings.Repeat("ab", VerifierBytes)
		hash := sha256.Sum256([]byte(verifier))
		want := base64.RawURLEncoding.EncodeToString(hash[:])

		assert.Equal(t, want, DeriveChallenge(verifier))
	})

	t.Run("is deterministic", func(t *testing.T) {
		verifier, err := GenerateSecret(VerifierBytes)
		require.NoError(t, err)
		assert.Equal(t, DeriveChallenge(verifier), DeriveChallenge(verifier))
	})

	t.Run("is unpadded base64url", func(t *testing.T) {
		challenge := DeriveChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
		assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", challenge)
		assert.NotContains(t, challenge, "=")
		assert.NotContains(t, challenge, "+")
		assert.NotContains(t, challenge, "/")
	})
}
