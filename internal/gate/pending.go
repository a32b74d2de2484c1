package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agegate/internal/storage"
	"agegate/pkg/pkce"
)

// PendingKeyPrefix prefixes the client ID to name the pending request in
// the context-scoped store.
const PendingKeyPrefix = "aw_oidc_"

// PendingKey returns the context-scoped key for clientID's pending request.
func PendingKey(clientID string) string {
	return PendingKeyPrefix + clientID
}

// PendingRequest is the primary's record of an in-flight handshake. The
// verifier never leaves the primary context.
type PendingRequest struct {
	State      string `json:"s"`
	Nonce      string `json:"n"`
	Verifier   string `json:"v"`
	ReturnPath string `json:"r,omitempty"`
	CreatedAt  int64  `json:"t"`
}

// NewPendingRequest generates fresh state, nonce and verifier values.
func NewPendingRequest(returnPath string, now time.Time) (*PendingRequest, error) {
	state, err := pkce.GenerateSecret(pkce.StateBytes)
	if err != nil {
		return nil, err
	}
	nonce, err := pkce.GenerateSecret(pkce.NonceBytes)
	if err != nil {
		return nil, err
	}
	verifier, err := pkce.GenerateSecret(pkce.VerifierBytes)
	if err != nil {
		return nil, err
	}
	return &PendingRequest{
		State:      state,
		Nonce:      nonce,
		Verifier:   verifier,
		ReturnPath: returnPath,
		CreatedAt:  now.UnixMilli(),
	}, nil
}

// Challenge derives the S256 code challenge from the verifier.
func (p *PendingRequest) Challenge() string {
	return pkce.DeriveChallenge(p.Verifier)
}

func savePending(ctx context.Context, store storage.Store, key string, p *PendingRequest) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pending request: %w", err)
	}
	return store.Set(ctx, key, string(data))
}

func loadPending(ctx context.Context, store storage.Store, key string) (*PendingRequest, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var p PendingRequest
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to decode pending request: %w", err)
	}
	return &p, nil
}
