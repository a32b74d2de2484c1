package browser

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Masterminds/sprig/v3"

	"agegate/internal/gate"
	"agegate/internal/signal"
	"agegate/pkg/logging"
)

// DefaultCallbackPort is the default port for the local callback server.
const DefaultCallbackPort = 3000

// SignalPath is where the server accepts direct signals.
const SignalPath = "/signal"

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(sprig.HtmlFuncMap()).ParseFS(templateFS, "templates/*.html"))

// CallbackHandler relays a provider redirect. It is usually Gate.HandleCallback
// with the opener bound.
type CallbackHandler func(ctx context.Context, query url.Values) (signal.Message, error)

// Page is the branding shown on callback pages.
type Page struct {
	Title string
	Logo  string
	CSS   string
}

// ServerOption configures the CallbackServer.
type ServerOption func(*CallbackServer)

// WithCallbackHandler sets the handler for provider redirects.
func WithCallbackHandler(h CallbackHandler) ServerOption {
	return func(s *CallbackServer) {
		s.onCallback = h
	}
}

// WithInbox exposes inbox at SignalPath.
func WithInbox(inbox http.Handler) ServerOption {
	return func(s *CallbackServer) {
		s.inbox = inbox
	}
}

// WithPage sets the page branding.
func WithPage(page Page) ServerOption {
	return func(s *CallbackServer) {
		s.page = page
	}
}

// CallbackServer is the local HTTP receiver on the redirect origin.
type CallbackServer struct {
	host string
	port int
	page Page

	onCallback CallbackHandler
	inbox      http.Handler

	server    *http.Server
	listener  net.Listener
	errorCh   chan error
	stopOnce  sync.Once
	serverURL string
}

// NewCallbackServer creates a callback server for host:port. A zero port
// uses DefaultCallbackPort; a negative port picks a free one.
func NewCallbackServer(host string, port int, opts ...ServerOption) *CallbackServer {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = DefaultCallbackPort
	}

	s := &CallbackServer{
		host:    host,
		port:    port,
		errorCh: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins serving. The server stops when ctx is cancelled. It returns
// the redirect URI: the server origin without a trailing slash.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	port := s.port
	if port < 0 {
		port = 0
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.serverURL = fmt.Sprintf("http://%s:%d", s.host, s.port)

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	logging.Debug("Callback", "Callback server listening on %s", s.serverURL)
	return s.serverURL, nil
}

// Handler returns the server's routes.
func (s *CallbackServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	if s.inbox != nil {
		mux.Handle(SignalPath, s.inbox)
	}
	return mux
}

// Errors reports a failure of the serving goroutine.
func (s *CallbackServer) Errors() <-chan error {
	return s.errorCh
}

type pageData struct {
	Page
	Heading string
	Message string
	Failed  bool
}

func (s *CallbackServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	if !gate.IsCallback(query) || s.onCallback == nil {
		s.render(w, http.StatusOK, "verifying.html", pageData{Page: s.page, Heading: "Verifying..."})
		return
	}

	msg, err := s.onCallback(r.Context(), query)
	switch {
	case err != nil:
		logging.Warn("Callback", "Failed to relay verification callback: %v", err)
		s.render(w, http.StatusOK, "result.html", pageData{
			Page:    s.page,
			Heading: "Verification Error",
			Message: callbackErrorMessage(err),
			Failed:  true,
		})
	case msg.IsError() && !gate.IsRegionExempt(msg):
		s.render(w, http.StatusOK, "result.html", pageData{
			Page:    s.page,
			Heading: "Verification Error",
			Message: msg.ErrorDescription,
			Failed:  true,
		})
	default:
		s.render(w, http.StatusOK, "result.html", pageData{
			Page:    s.page,
			Heading: "Verification complete",
			Message: "You may close this window and return to the application.",
		})
	}
}

func callbackErrorMessage(err error) string {
	var providerErr *gate.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Description
	}
	return "The verification result could not be delivered. Return to the application and try again."
}

func (s *CallbackServer) render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		logging.Error("Callback", err, "Failed to render %s", name)
	}
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// RedirectURI returns the redirect URI for the authorization request.
func (s *CallbackServer) RedirectURI() string {
	return s.serverURL
}

// SignalURL returns the URL of the direct signal endpoint.
func (s *CallbackServer) SignalURL() string {
	return s.serverURL + SignalPath
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	return s.port
}
