package webauthz

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// TokenSource returns an oauth2.TokenSource that resolves userID's token for
// resourceURI on every call. When no token is available Token fails with an
// error of kind KindNotFound.
func (c *Client) TokenSource(ctx context.Context, userID, resourceURI string) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c, userID: userID, resourceURI: resourceURI}
}

type tokenSource struct {
	ctx         context.Context
	client      *Client
	userID      string
	resourceURI string
}

// Token implements oauth2.TokenSource.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.client.Resolve(s.ctx, s.userID, s.resourceURI)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, newError(KindNotFound, "token source", nil)
	}
	return tok.OAuth2Token(), nil
}

// OAuth2Token converts t for use with golang.org/x/oauth2.
func (t *AccessToken) OAuth2Token() *oauth2.Token {
	ot := &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   "Bearer",
	}
	if t.AccessTokenNotAfter != nil {
		ot.Expiry = *t.AccessTokenNotAfter
	}
	return ot
}

// RoundTripper returns an http.RoundTripper that adds userID's access token
// for the request URL, when one resolves, before delegating to base. A nil
// base means http.DefaultTransport. Requests that already carry an
// Authorization header are left alone.
//
// Challenges in the response are not handled here; use ParseChallenge.
func (c *Client) RoundTripper(userID string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{client: c, userID: userID, base: base}
}

type roundTripper struct {
	client *Client
	userID string
	base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return rt.base.RoundTrip(req)
	}

	tok, err := rt.client.Resolve(req.Context(), rt.userID, req.URL.String())
	if err != nil {
		rt.client.logger.Debug("Could not resolve access token for request",
			"url", req.URL.Redacted(),
			"error", err)
	}
	if tok == nil {
		return rt.base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	tok.OAuth2Token().SetAuthHeader(clone)
	return rt.base.RoundTrip(clone)
}
