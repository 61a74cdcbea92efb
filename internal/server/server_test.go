package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webauthz/internal/testing/mock"
	"webauthz/pkg/store"
	"webauthz/pkg/webauthz"
)

const resourceURI = "https://api.example/api/contact/1234"

type testEnv struct {
	authz  *mock.AuthzServer
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	authz := mock.NewAuthzServer(mock.AuthzServerConfig{})
	require.NoError(t, authz.Start(context.Background()))
	t.Cleanup(func() { _ = authz.Stop(context.Background()) })

	client, err := webauthz.New(webauthz.Config{
		Store:            store.NewMemoryStore(),
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		ClientName:       "Contacts",
		GrantRedirectURI: "http://localhost:8080/v1/grant",
	})
	require.NoError(t, err)

	return &testEnv{authz: authz, server: New(client, Options{})}
}

func (e *testEnv) do(t *testing.T, method, target, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(DefaultUserHeader, user)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// startNegotiation returns client_state and client_id for a new negotiation.
func (e *testEnv) startNegotiation(t *testing.T, user string) (string, string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/negotiations", user, map[string]string{
		"www_authenticate": `Bearer realm="contacts", webauthz_discovery_uri="` + e.authz.DiscoveryURI() + `"`,
		"resource_uri":     resourceURI,
		"context":          "return-to-list",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	requestURI, err := url.Parse(body["access_request_uri"].(string))
	require.NoError(t, err)
	return body["client_state"].(string), requestURI.Query().Get("client_id")
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestRequiresUserHeader(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/v1/token?resource_uri=x", "/v1/negotiations/abc", "/v1/grant"} {
		rec := env.do(t, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestNegotiationFlow(t *testing.T) {
	env := newTestEnv(t)

	clientState, clientID := env.startNegotiation(t, "alice")

	rec := env.do(t, http.MethodGet, "/v1/negotiations/"+clientState, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode(t, rec)
	assert.Equal(t, "redirect", view["status"])
	assert.Equal(t, "return-to-list", view["context"])
	assert.NotContains(t, view, "refresh_token")

	rec = env.do(t, http.MethodGet, "/v1/negotiations/"+clientState, "mallory", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "access denied", decode(t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/v1/token?resource_uri="+url.QueryEscape(resourceURI), "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("client_state", clientState)
	q.Set("grant_token", env.authz.Grant(clientID))
	rec = env.do(t, http.MethodGet, "/v1/grant?"+q.Encode(), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	granted := decode(t, rec)
	assert.Equal(t, "granted", granted["status"])
	assert.Equal(t, resourceURI, granted["resource_uri"])

	rec = env.do(t, http.MethodGet, "/v1/token?resource_uri="+url.QueryEscape(resourceURI), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, granted["access_token"], decode(t, rec)["access_token"])
}

func TestStartNegotiation_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/negotiations", "alice", map[string]string{
		"www_authenticate": `Basic realm="legacy"`,
		"resource_uri":     resourceURI,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/negotiations", "alice", map[string]string{
		"resource_uri": resourceURI,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/negotiations", "alice", map[string]string{
		"www_authenticate": `Bearer webauthz_discovery_uri="` + env.authz.DiscoveryURI() + `"`,
		"resource_uri":     "not-absolute",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request", decode(t, rec)["error"])
}

func TestStartNegotiation_DiscoveryFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.authz.SetConfig(mock.AuthzServerConfig{DiscoveryStatus: http.StatusInternalServerError})

	rec := env.do(t, http.MethodPost, "/v1/negotiations", "alice", map[string]string{
		"www_authenticate": `Bearer webauthz_discovery_uri="` + env.authz.DiscoveryURI() + `"`,
		"resource_uri":     resourceURI,
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "discovery failed", decode(t, rec)["error"])
}

func TestExchange(t *testing.T) {
	env := newTestEnv(t)
	clientState, clientID := env.startNegotiation(t, "alice")

	rec := env.do(t, http.MethodPost, "/v1/exchange", "alice", map[string]any{
		"client_id":    clientID,
		"client_state": clientState,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "neither grant nor refresh")

	rec = env.do(t, http.MethodPost, "/v1/exchange", "alice", map[string]any{
		"client_id":    "someone-else",
		"client_state": clientState,
		"grant_token":  "g",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/exchange", "alice", map[string]any{
		"client_id":    clientID,
		"client_state": clientState,
		"grant_token":  env.authz.Grant(clientID),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode(t, rec)["access_token"])
}

func TestExchange_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	clientState, clientID := env.startNegotiation(t, "alice")
	env.authz.SetConfig(mock.AuthzServerConfig{ExchangeStatus: http.StatusServiceUnavailable})

	rec := env.do(t, http.MethodPost, "/v1/exchange", "alice", map[string]any{
		"client_id":    clientID,
		"client_state": clientState,
		"grant_token":  "g",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "exchange failed", decode(t, rec)["error"])
}

func TestStatusForKind(t *testing.T) {
	tests := map[webauthz.Kind]int{
		webauthz.KindNotFound:           http.StatusNotFound,
		webauthz.KindAccessDenied:       http.StatusForbidden,
		webauthz.KindInvalidRequest:     http.StatusBadRequest,
		webauthz.KindExchangeFailed:     http.StatusBadGateway,
		webauthz.KindDiscoveryFailed:    http.StatusBadGateway,
		webauthz.KindRegistrationFailed: http.StatusBadGateway,
		webauthz.KindStorage:            http.StatusInternalServerError,
		webauthz.KindUnknown:            http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusForKind(kind), kind.String())
	}
}

func TestServeListener_ShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.ServeListener(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
