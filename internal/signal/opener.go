package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"agegate/pkg/logging"
)

// Opener is the direct channel from a secondary context back to the primary
// context that opened it.
type Opener interface {
	PostMessage(ctx context.Context, msg Message) error
}

// Inbox is the primary's direct endpoint. It forwards posts to the attempt
// currently listening. Without one it rejects them with ErrSettled when the
// last attempt has finished and ErrNoListener otherwise.
type Inbox struct {
	mu      sync.Mutex
	attempt *Attempt
	last    *Attempt
}

// NewInbox returns an Inbox with no attempt attached.
func NewInbox() *Inbox {
	return &Inbox{}
}

// PostMessage implements Opener.
func (i *Inbox) PostMessage(_ context.Context, msg Message) error {
	i.mu.Lock()
	a, last := i.attempt, i.last
	i.mu.Unlock()

	if a == nil {
		if last != nil && last.Processed() {
			return ErrSettled
		}
		return ErrNoListener
	}
	if !a.offer(Delivery{Message: msg, Transport: TransportDirect}) {
		if a.Processed() {
			return ErrSettled
		}
		return ErrNoListener
	}
	return nil
}

func (i *Inbox) attach(a *Attempt) (detach func()) {
	i.mu.Lock()
	i.attempt = a
	i.mu.Unlock()

	return func() {
		i.mu.Lock()
		if i.attempt == a {
			i.attempt = nil
			i.last = a
		}
		i.mu.Unlock()
	}
}

// maxMessageBytes bounds the request body accepted by ServeHTTP.
const maxMessageBytes = 16 << 10

// ServeHTTP accepts a JSON Message posted by an out-of-process secondary.
// It answers 202 when the message was handed to a listening attempt, 409
// when no attempt is listening and 410 when the attempt already settled.
func (i *Inbox) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	msg, err := Decode(string(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := i.PostMessage(r.Context(), msg); err != nil {
		logging.Debug("Signal", "Rejected direct signal: %v", err)
		status := http.StatusConflict
		if errors.Is(err, ErrSettled) {
			status = http.StatusGone
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HTTPOpener posts messages to a remote Inbox.
type HTTPOpener struct {
	url    string
	client *http.Client
}

// NewHTTPOpener returns an opener posting to url. A nil client gets a
// client with a short timeout.
func NewHTTPOpener(url string, client *http.Client) *HTTPOpener {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPOpener{url: url, client: client}
}

// PostMessage implements Opener. A 409 maps to ErrNoListener and a 410 to
// ErrSettled; 410 and 400 are permanent and not worth retrying.
func (o *HTTPOpener) PostMessage(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to encode signal: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create signal request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post signal: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxMessageBytes))

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return ErrNoListener
	case resp.StatusCode == http.StatusGone:
		return backoff.Permanent(ErrSettled)
	case resp.StatusCode == http.StatusBadRequest:
		return backoff.Permanent(errors.New("opener rejected signal as malformed"))
	default:
		return fmt.Errorf("opener returned status %d", resp.StatusCode)
	}
}
