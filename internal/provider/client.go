package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"agegate/pkg/pkce"
)

const (
	// DefaultHTTPTimeout bounds each request to the provider.
	DefaultHTTPTimeout = 30 * time.Second

	DefaultAuthorizeURL = "https://app.agewallet.io/user/authorize"
	DefaultTokenURL     = "https://app.agewallet.io/embed/token"
	DefaultUserinfoURL  = "https://app.agewallet.io/user/userinfo"

	// Scope is the only scope requested.
	Scope = "openid"

	maxResponseBytes = 1 << 20
)

// Endpoints are the provider URLs.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
	UserinfoURL  string
}

// DefaultEndpoints returns the hosted provider endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthorizeURL: DefaultAuthorizeURL,
		TokenURL:     DefaultTokenURL,
		UserinfoURL:  DefaultUserinfoURL,
	}
}

// Verification is the subset of the userinfo response the gate acts on.
type Verification struct {
	// AgeVerified is true only when the provider returned the JSON boolean true.
	AgeVerified bool
}

// Client talks to one provider on behalf of one client ID.
type Client struct {
	clientID   string
	endpoints  Endpoints
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithEndpoints overrides the provider URLs. Empty fields keep their defaults.
func WithEndpoints(endpoints Endpoints) ClientOption {
	return func(c *Client) {
		if endpoints.AuthorizeURL != "" {
			c.endpoints.AuthorizeURL = endpoints.AuthorizeURL
		}
		if endpoints.TokenURL != "" {
			c.endpoints.TokenURL = endpoints.TokenURL
		}
		if endpoints.UserinfoURL != "" {
			c.endpoints.UserinfoURL = endpoints.UserinfoURL
		}
	}
}

// NewClient creates a provider client for clientID.
func NewClient(clientID string, opts ...ClientOption) *Client {
	c := &Client{
		clientID:   clientID,
		endpoints:  DefaultEndpoints(),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoints returns the effective provider URLs.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

func (c *Client) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: redirectURI,
		Scopes:      []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.endpoints.AuthorizeURL,
			TokenURL:  c.endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizeURL builds the authorization request URL.
func (c *Client) AuthorizeURL(redirectURI, state, nonce, challenge string) string {
	return c.oauthConfig(redirectURI).AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.Method),
	)
}

// tokenResponse is the token endpoint body, success or error.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	IDToken          string `json:"id_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchange redeems code for an access token using the PKCE verifier.
func (c *Client) Exchange(ctx context.Context, code, verifier, redirectURI string) (*oauth2.Token, error) {
	data := url.Values{
		"client_id":     {c.clientID},
		"code":          {code},
		"code_verifier": {verifier},
		"redirect_uri":  {redirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &ExchangeError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ExchangeError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read token response: %w", err)}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Debug("Unparsable token response",
			"status", resp.StatusCode,
			"body", string(body))
		return nil, &ExchangeError{Status: resp.StatusCode, Err: fmt.Errorf("failed to parse token response: %w", err)}
	}

	if parsed.Error != "" {
		return nil, &ExchangeError{Status: resp.StatusCode, Code: parsed.Error, Description: parsed.ErrorDescription}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ExchangeError{Status: resp.StatusCode}
	}
	if parsed.AccessToken == "" {
		return nil, &ExchangeError{Status: resp.StatusCode, Err: errors.New("response has no access token")}
	}

	token := &oauth2.Token{
		AccessToken: parsed.AccessToken,
		TokenType:   parsed.TokenType,
		ExpiresIn:   parsed.ExpiresIn,
	}
	if parsed.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	if parsed.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{"id_token": parsed.IDToken})
	}

	c.logger.Debug("Token exchange succeeded", "expires_in", parsed.ExpiresIn)
	return token, nil
}

// FetchVerification reads the age-verification claim for token's subject.
func (c *Client) FetchVerification(ctx context.Context, token *oauth2.Token) (*Verification, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &UserinfoError{Err: errors.New("no access token")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.UserinfoURL, nil)
	if err != nil {
		return nil, &UserinfoError{Err: fmt.Errorf("failed to create userinfo request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UserinfoError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UserinfoError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read userinfo response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Userinfo request failed",
			"status", resp.StatusCode,
			"body", string(body))
		return nil, &UserinfoError{Status: resp.StatusCode}
	}

	var claims map[string]json.RawMessage
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, &UserinfoError{Status: resp.StatusCode, Err: fmt.Errorf("failed to parse userinfo response: %w", err)}
	}

	return &Verification{AgeVerified: string(claims["age_verified"]) == "true"}, nil
}
