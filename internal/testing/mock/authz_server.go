package mock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
)

// AuthzServerConfig configures the mock webauthz authorization server.
type AuthzServerConfig struct {
	// AccessTokenMaxSeconds is returned with every access token when set.
	AccessTokenMaxSeconds *int64

	// RefreshTokenMaxSeconds is returned with every refresh token when set.
	RefreshTokenMaxSeconds *int64

	// IssueRefreshTokens makes exchanges return a new refresh token.
	IssueRefreshTokens bool

	// DenyAll makes every exchange answer 200 without an access token.
	DenyAll bool

	// ExchangeStatus, when non-zero, is returned by /exchange instead of a
	// token response.
	ExchangeStatus int

	// DiscoveryStatus, when non-zero, is returned by the discovery endpoint.
	DiscoveryStatus int

	// RegisterStatus, when non-zero, is returned by /register.
	RegisterStatus int

	// RequestQuery is appended to the advertised request URI, to check that
	// clients keep existing query parameters.
	RequestQuery string
}

// ExchangeRecord is what the server saw on one /exchange call.
type ExchangeRecord struct {
	Authorization    string
	GrantToken       string
	RefreshToken     string
	AccessRequestURI string
}

// AuthzServer is a mock webauthz authorization server. It implements
// discovery, registration and exchange. Grants are minted by the test with
// Grant, standing in for a user approving the request.
type AuthzServer struct {
	config     AuthzServerConfig
	httpServer *http.Server
	listener   net.Listener
	baseURL    string
	running    bool
	mu         sync.RWMutex

	clients       map[string]string // client_token -> client_id
	grants        map[string]string // grant_token -> client_id
	refreshTokens map[string]string // refresh_token -> client_id

	discoveryCalls int
	registerCalls  int
	exchanges      []ExchangeRecord
}

// NewAuthzServer creates a new mock authorization server.
func NewAuthzServer(config AuthzServerConfig) *AuthzServer {
	return &AuthzServer{
		config:        config,
		clients:       make(map[string]string),
		grants:        make(map[string]string),
		refreshTokens: make(map[string]string),
	}
}

// Start starts the server on a random loopback port.
func (s *AuthzServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener
	s.baseURL = "http://" + listener.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/webauthz.json", s.handleDiscovery)
	mux.HandleFunc("/register", s.handleRegister)
	mux.HandleFunc("/exchange", s.handleExchange)

	s.httpServer = &http.Server{
		Handler:  mux,
		ErrorLog: log.New(io.Discard, "", 0),
	}
	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	s.running = true
	return nil
}

// Stop stops the server.
func (s *AuthzServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// URL returns the server's base URL.
func (s *AuthzServer) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// DiscoveryURI returns the URI of the discovery document.
func (s *AuthzServer) DiscoveryURI() string {
	return s.URL() + "/.well-known/webauthz.json"
}

// Grant mints a single-use grant token for clientID.
func (s *AuthzServer) Grant(clientID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := opaqueToken("grant")
	s.grants[token] = clientID
	return token
}

// SetConfig replaces the server behaviour between calls.
func (s *AuthzServer) SetConfig(config AuthzServerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// DiscoveryCalls returns how often the discovery document was fetched.
func (s *AuthzServer) DiscoveryCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discoveryCalls
}

// RegisterCalls returns how many registrations were made.
func (s *AuthzServer) RegisterCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registerCalls
}

// Exchanges returns every /exchange call seen so far.
func (s *AuthzServer) Exchanges() []ExchangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ExchangeRecord(nil), s.exchanges...)
}

func (s *AuthzServer) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	s.discoveryCalls++
	status := s.config.DiscoveryStatus
	requestURI := s.baseURL + "/request"
	if s.config.RequestQuery != "" {
		requestURI += "?" + s.config.RequestQuery
	}
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"webauthz_register_uri": s.baseURL + "/register",
		"webauthz_request_uri":  requestURI,
		"webauthz_exchange_uri": s.baseURL + "/exchange",
	})
}

func (s *AuthzServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		ClientName       string `json:"client_name"`
		GrantRedirectURI string `json:"grant_redirect_uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ClientName == "" || body.GrantRedirectURI == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerCalls++
	if s.config.RegisterStatus != 0 {
		w.WriteHeader(s.config.RegisterStatus)
		return
	}

	clientID := opaqueToken("client")
	clientToken := opaqueToken("client-token")
	s.clients[clientToken] = clientID
	writeJSON(w, http.StatusOK, map[string]string{
		"client_id":    clientID,
		"client_token": clientToken,
	})
}

func (s *AuthzServer) handleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		GrantToken       string `json:"grant_token"`
		RefreshToken     string `json:"refresh_token"`
		AccessRequestURI string `json:"access_request_uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	authorization := r.Header.Get("Authorization")
	s.exchanges = append(s.exchanges, ExchangeRecord{
		Authorization:    authorization,
		GrantToken:       body.GrantToken,
		RefreshToken:     body.RefreshToken,
		AccessRequestURI: body.AccessRequestURI,
	})

	if s.config.ExchangeStatus != 0 {
		w.WriteHeader(s.config.ExchangeStatus)
		return
	}

	clientID, ok := s.clients[strings.TrimPrefix(authorization, "Bearer ")]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	var owner string
	switch {
	case body.GrantToken != "":
		owner, ok = s.grants[body.GrantToken]
		delete(s.grants, body.GrantToken)
	case body.RefreshToken != "":
		owner, ok = s.refreshTokens[body.RefreshToken]
		delete(s.refreshTokens, body.RefreshToken)
	default:
		ok = false
	}
	if !ok || owner != clientID || s.config.DenyAll {
		writeJSON(w, http.StatusOK, map[string]string{"status": "denied"})
		return
	}

	resp := map[string]any{"access_token": opaqueToken("access")}
	if s.config.AccessTokenMaxSeconds != nil {
		resp["access_token_max_seconds"] = *s.config.AccessTokenMaxSeconds
	}
	if s.config.IssueRefreshTokens {
		refreshToken := opaqueToken("refresh")
		s.refreshTokens[refreshToken] = clientID
		resp["refresh_token"] = refreshToken
		if s.config.RefreshTokenMaxSeconds != nil {
			resp["refresh_token_max_seconds"] = *s.config.RefreshTokenMaxSeconds
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func opaqueToken(prefix string) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
