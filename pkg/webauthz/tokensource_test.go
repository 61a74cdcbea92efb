package webauthz_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webauthz/internal/testing/mock"
	"webauthz/pkg/webauthz"
)

func TestTokenSource(t *testing.T) {
	f := newFixture(t, mock.AuthzServerConfig{AccessTokenMaxSeconds: seconds(600)})
	_, _, result := f.grant(t, testUser, testResource, "/api")

	tok, err := f.client.TokenSource(context.Background(), testUser, testResource).Token()
	require.NoError(t, err)
	assert.Equal(t, result.AccessToken, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, testStart.Add(10*time.Minute), tok.Expiry)

	_, err = f.client.TokenSource(context.Background(), otherUser, testResource).Token()
	assert.True(t, errors.Is(err, webauthz.ErrNotFound))
}

func TestOAuth2Token_NoExpiry(t *testing.T) {
	tok := (&webauthz.AccessToken{AccessToken: "a1"}).OAuth2Token()
	assert.True(t, tok.Expiry.IsZero())
	assert.True(t, tok.Valid())
}

func TestRoundTripper(t *testing.T) {
	var seen []string
	resource := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer resource.Close()

	f := newFixture(t, mock.AuthzServerConfig{})
	_, _, result := f.grant(t, testUser, resource.URL+"/api/contacts", "/api")

	httpClient := &http.Client{Transport: f.client.RoundTripper(testUser, nil)}

	resp, err := httpClient.Get(resource.URL + "/api/contacts/7")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = httpClient.Get(resource.URL + "/public")
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, resource.URL+"/api/contacts/7", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	resp, err = httpClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, seen, 3)
	assert.Equal(t, "Bearer "+result.AccessToken, seen[0])
	assert.Empty(t, seen[1], "no token is stored for /public")
	assert.Equal(t, "Basic dXNlcjpwYXNz", seen[2], "existing credentials are kept")
	assert.Equal(t, "Basic dXNlcjpwYXNz", req.Header.Get("Authorization"))
}
