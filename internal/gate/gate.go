package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"agegate/internal/provider"
	"agegate/internal/session"
	"agegate/internal/signal"
	"agegate/internal/storage"
	"agegate/pkg/logging"
)

// Text is the user-facing copy of the consent prompt.
type Text struct {
	Title        string
	Description  string
	YesLabel     string
	NoLabel      string
	ErrorMessage string
}

// DefaultText returns the stock prompt copy.
func DefaultText() Text {
	return Text{
		Title:        "Age Verification",
		Description:  "You must verify your age to view this content.",
		YesLabel:     "Verify with AgeWallet",
		NoLabel:      "I Disagree",
		ErrorMessage: "Sorry, you do not meet the minimum requirements.",
	}
}

// Renderer presents the gate. Calls are made without the gate's lock held.
type Renderer interface {
	// Prompt shows the consent prompt.
	Prompt(text Text)
	// Denied shows the denial message after the user declined.
	Denied(text Text)
	// Verifying shows that a handshake is in progress.
	Verifying(authURL string)
	// Reveal unlocks the content.
	Reveal(returnPath string)
	// Failed shows a terminal error for the attempt.
	Failed(err error)
}

// Launcher opens the secondary context.
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

// Provider is the identity provider the gate verifies against.
type Provider interface {
	AuthorizeURL(redirectURI, state, nonce, challenge string) string
	Exchange(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error)
	FetchVerification(ctx context.Context, token *oauth2.Token) (*provider.Verification, error)
}

// Options wires a Gate.
type Options struct {
	ClientID    string
	RedirectURI string
	Text        Text
	SessionTTL  time.Duration

	// ReturnPath is handed back to Renderer.Reveal after a successful attempt.
	ReturnPath string

	Sessions *session.Store
	Provider Provider
	Listener *signal.Listener
	Sender   *signal.Sender
	Launcher Launcher
	Renderer Renderer

	// Pending is the context-scoped store for the pending request.
	// Defaults to an in-memory store.
	Pending storage.Store

	Now func() time.Time
}

func (o *Options) validate() error {
	switch {
	case o.ClientID == "":
		return errors.New("client ID is required")
	case o.Sessions == nil:
		return errors.New("session store is required")
	case o.Renderer == nil:
		return errors.New("renderer is required")
	}
	return nil
}

// Gate is the verification state machine for one client ID.
type Gate struct {
	opts       Options
	pendingKey string

	mu      sync.Mutex
	state   State
	lastErr error
	attempt *signal.Attempt
	settled chan struct{}
}

// New creates a Gate in the Locked state.
func New(opts Options) (*Gate, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = session.DefaultTTL
	}
	if opts.Text == (Text{}) {
		opts.Text = DefaultText()
	}
	if opts.Pending == nil {
		opts.Pending = storage.NewMemoryStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Gate{
		opts:       opts,
		pendingKey: PendingKey(opts.ClientID),
		state:      StateLocked,
	}, nil
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Err returns the error that put the gate in the Error state.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Start determines the initial state from the session store.
func (g *Gate) Start(ctx context.Context) State {
	if _, ok := g.opts.Sessions.Load(ctx); ok {
		g.transition(StateUnlocked, nil)
		logging.Debug("Gate", "Valid session found, content unlocked")
		g.opts.Renderer.Reveal(g.opts.ReturnPath)
		return StateUnlocked
	}

	g.transition(StateLocked, nil)
	g.opts.Renderer.Prompt(g.opts.Text)
	return StateLocked
}

// Deny records that the user declined. The gate stays locked.
func (g *Gate) Deny() {
	logging.Info("Gate", "User declined verification")
	g.opts.Renderer.Denied(g.opts.Text)
}

// Consent starts a verification attempt. The attempt lives until it is
// settled or ctx is cancelled.
func (g *Gate) Consent(ctx context.Context) error {
	if g.opts.Provider == nil || g.opts.Listener == nil || g.opts.Launcher == nil {
		return errors.New("gate is not configured for the primary role")
	}

	g.mu.Lock()
	if g.state != StateLocked {
		state := g.state
		g.mu.Unlock()
		return &TransitionError{Op: "start verification", State: state}
	}
	g.state = StateVerifying
	g.lastErr = nil
	g.mu.Unlock()

	pending, err := NewPendingRequest(g.opts.ReturnPath, g.opts.Now())
	if err != nil {
		g.transition(StateLocked, nil)
		return err
	}
	if err := savePending(ctx, g.opts.Pending, g.pendingKey, pending); err != nil {
		g.transition(StateLocked, nil)
		return err
	}

	attempt, err := g.opts.Listener.Listen(ctx, pending.State)
	if err != nil {
		g.discardPending()
		g.transition(StateLocked, nil)
		return err
	}

	authURL := g.opts.Provider.AuthorizeURL(g.opts.RedirectURI, pending.State, pending.Nonce, pending.Challenge())
	if err := g.opts.Launcher.Launch(ctx, authURL); err != nil {
		attempt.Cancel()
		<-attempt.Done()
		g.discardPending()
		g.transition(StateLocked, nil)
		logging.Warn("Gate", "Failed to open verification window: %v", err)
		return &PopupBlockedError{URL: authURL, Err: err}
	}

	settled := make(chan struct{})
	g.mu.Lock()
	g.attempt = attempt
	g.settled = settled
	g.mu.Unlock()

	logging.Info("Gate", "Verification started (attempt %s)", attempt.ID)
	g.opts.Renderer.Verifying(authURL)

	go g.settle(context.WithoutCancel(ctx), attempt, pending, settled)
	return nil
}

// Wait blocks until the current attempt is settled and returns the
// resulting state. Without an attempt it returns immediately.
func (g *Gate) Wait(ctx context.Context) (State, error) {
	g.mu.Lock()
	settled := g.settled
	g.mu.Unlock()

	if settled != nil {
		select {
		case <-settled:
		case <-ctx.Done():
			return g.State(), ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.lastErr
}

// Cancel abandons the current attempt. The gate returns to Locked.
func (g *Gate) Cancel() {
	g.mu.Lock()
	attempt := g.attempt
	g.mu.Unlock()

	if attempt != nil {
		attempt.Cancel()
	}
}

// Retry moves the gate from Error back to Locked and shows the prompt.
func (g *Gate) Retry() error {
	g.mu.Lock()
	if g.state != StateError {
		state := g.state
		g.mu.Unlock()
		return &TransitionError{Op: "retry", State: state}
	}
	g.state = StateLocked
	g.lastErr = nil
	g.mu.Unlock()

	g.opts.Renderer.Prompt(g.opts.Text)
	return nil
}

// Logout clears the session and locks the gate.
func (g *Gate) Logout(ctx context.Context) error {
	g.Cancel()
	err := g.opts.Sessions.Clear(ctx)
	g.transition(StateLocked, nil)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	logging.Info("Gate", "Session cleared")
	return nil
}

func (g *Gate) transition(state State, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != state {
		logging.Debug("Gate", "State %s -> %s", g.state, state)
	}
	g.state = state
	g.lastErr = err
}

func (g *Gate) discardPending() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.opts.Pending.Delete(ctx, g.pendingKey); err != nil {
		logging.Debug("Gate", "Failed to discard pending request: %v", err)
	}
}

// settle waits for the attempt and performs the single token exchange for it.
func (g *Gate) settle(ctx context.Context, attempt *signal.Attempt, pending *PendingRequest, settled chan struct{}) {
	state, err := g.outcome(ctx, attempt, pending)
	g.discardPending()

	g.mu.Lock()
	if g.attempt == attempt {
		g.attempt = nil
	}
	g.mu.Unlock()
	g.transition(state, err)

	switch state {
	case StateUnlocked:
		g.opts.Renderer.Reveal(pending.ReturnPath)
	case StateError:
		logging.Warn("Gate", "Verification failed: %v", err)
		g.opts.Renderer.Failed(err)
	}
	close(settled)
}

func (g *Gate) outcome(ctx context.Context, attempt *signal.Attempt, pending *PendingRequest) (State, error) {
	delivery, err := attempt.Wait(ctx)
	switch {
	case errors.Is(err, signal.ErrTimeout):
		// Another context may have committed the session directly.
		if _, ok := g.opts.Sessions.Load(ctx); ok {
			logging.Info("Gate", "Session committed by another context, unlocking")
			return StateUnlocked, nil
		}
		return StateError, &SignalTimeoutError{Timeout: g.opts.Listener.Timeout(), Err: err}
	case errors.Is(err, signal.ErrCancelled):
		logging.Info("Gate", "Verification cancelled")
		return StateLocked, nil
	case err != nil:
		return StateError, err
	}

	msg := delivery.Message
	if msg.IsError() {
		if IsRegionExempt(msg) {
			logging.Info("Gate", "Provider reported region exemption, unlocking without exchange")
			g.commit(ctx)
			return StateUnlocked, nil
		}
		return StateError, &ProviderError{Code: msg.Error, Description: msg.ErrorDescription}
	}

	// The verifier is read back from the context-scoped store; it never
	// travels through the signal channel.
	stored, err := loadPending(ctx, g.opts.Pending, g.pendingKey)
	if err != nil {
		return StateError, fmt.Errorf("pending request for this verification is gone: %w", err)
	}

	token, err := g.opts.Provider.Exchange(ctx, msg.Code, stored.Verifier, g.opts.RedirectURI)
	if err != nil {
		return StateError, err
	}
	verification, err := g.opts.Provider.FetchVerification(ctx, token)
	if err != nil {
		return StateError, err
	}
	if !verification.AgeVerified {
		return StateError, ErrVerificationDenied
	}

	g.commit(ctx)
	return StateUnlocked, nil
}

func (g *Gate) commit(ctx context.Context) {
	if _, err := g.opts.Sessions.Save(ctx, g.opts.SessionTTL); err != nil {
		// Content still unlocks; the session just will not survive a restart.
		logging.Warn("Gate", "Session could not be persisted: %v", err)
	}
}
