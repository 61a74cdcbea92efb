package webauthz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultHTTPTimeout is the default timeout for authorization server calls.
	DefaultHTTPTimeout = 30 * time.Second

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 1 << 20

	defaultUserAgent = "webauthz-go"
)

// Transport talks to the authorization server.
type Transport interface {
	// FetchConfiguration GETs the discovery document at discoveryURI.
	FetchConfiguration(ctx context.Context, discoveryURI string) (*Configuration, error)

	// Register POSTs req to registerURI and returns the issued registration.
	Register(ctx context.Context, registerURI string, req RegistrationRequest) (*Registration, error)

	// Exchange POSTs req to exchangeURI authenticated with clientToken.
	Exchange(ctx context.Context, exchangeURI string, clientToken RedactedToken, req TokenRequest) (*TokenResponse, error)
}

// StatusError is returned by HTTPTransport for non-2xx responses.
type StatusError struct {
	URI        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URI, e.StatusCode)
}

// HTTPTransport implements Transport over net/http with JSON bodies.
type HTTPTransport struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		t.httpClient = httpClient
	}
}

// WithTransportLogger sets a custom logger.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithUserAgent sets the User-Agent header sent on every call.
func WithUserAgent(userAgent string) TransportOption {
	return func(t *HTTPTransport) {
		t.userAgent = userAgent
	}
}

// NewHTTPTransport creates a new HTTPTransport.
func NewHTTPTransport(opts ...TransportOption) *HTTPTransport {
	t := &HTTPTransport{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FetchConfiguration implements Transport.
func (t *HTTPTransport) FetchConfiguration(ctx context.Context, discoveryURI string) (*Configuration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var cfg Configuration
	if err := t.do(req, &cfg); err != nil {
		return nil, err
	}
	if cfg.RegisterURI == "" || cfg.RequestURI == "" || cfg.ExchangeURI == "" {
		return nil, errors.New("discovery document is missing required endpoints")
	}
	return &cfg, nil
}

// Register implements Transport.
func (t *HTTPTransport) Register(ctx context.Context, registerURI string, body RegistrationRequest) (*Registration, error) {
	req, err := t.newJSONRequest(ctx, registerURI, body)
	if err != nil {
		return nil, err
	}

	var reg Registration
	if err := t.do(req, &reg); err != nil {
		return nil, err
	}
	if reg.ClientID == "" || reg.ClientToken == "" {
		return nil, errors.New("registration response is missing client_id or client_token")
	}
	return &reg, nil
}

// Exchange implements Transport. A 2xx response without an access token is
// returned as-is; deciding what that means is up to the caller.
func (t *HTTPTransport) Exchange(ctx context.Context, exchangeURI string, clientToken RedactedToken, body TokenRequest) (*TokenResponse, error) {
	req, err := t.newJSONRequest(ctx, exchangeURI, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+clientToken.Value())

	var resp TokenResponse
	if err := t.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *HTTPTransport) newJSONRequest(ctx context.Context, uri string, body any) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out.
func (t *HTTPTransport) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The body may echo credentials, so it only goes to debug output.
		t.logger.Debug("Authorization server returned an error",
			"method", req.Method,
			"uri", req.URL.Redacted(),
			"status", resp.StatusCode,
			"body", string(body))
		return &StatusError{URI: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Redacted(), err)
	}
	return nil
}
