package webauthz

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Resolve returns the access token to use for userID's request to
// resourceURI, or nil if there is none.
//
// The token stored for the longest matching path prefix wins, with "/" as
// the last fallback. An expired token is refreshed when its refresh token
// is still valid; a failed refresh is logged and reported as nil.
func (c *Client) Resolve(ctx context.Context, userID, resourceURI string) (_ *AccessToken, err error) {
	const op = "resolve"

	ctx, span := c.tracer.Start(ctx, "webauthz.Resolve")
	defer func() { endSpan(span, err) }()

	origin, resourcePath, err := splitResourceURI(resourceURI)
	if err != nil {
		return nil, newError(KindInvalidRequest, op, err)
	}
	span.SetAttributes(attribute.String("webauthz.origin", origin))

	token, err := c.store.FetchAccessToken(ctx, TokenQuery{
		UserID: userID,
		Origin: origin,
		Paths:  candidatePaths(resourcePath),
	})
	if err != nil {
		return nil, storageError(op, err)
	}
	if token == nil {
		return nil, nil
	}

	now := c.clock.Now()
	if !expired(now, token.AccessTokenNotAfter) {
		return token, nil
	}
	if !token.RefreshTokenExists || expired(now, token.RefreshTokenNotAfter) {
		c.logger.Debug("Access token expired and cannot be refreshed",
			"user_id", userID,
			"origin", origin,
			"path", token.Path)
		return nil, nil
	}

	out, err := c.exchange(ctx, ExchangeRequest{
		ClientID:    token.ClientID,
		ClientState: token.ClientState,
		Refresh:     true,
		UserID:      userID,
	})
	if err != nil {
		c.logger.Info("Access token refresh failed",
			"user_id", userID,
			"origin", origin,
			"path", token.Path,
			"error", err)
		return nil, nil
	}
	span.SetAttributes(attribute.Bool("webauthz.refreshed", true))
	return out.token, nil
}

// candidatePaths lists path and each of its parents, most specific first,
// always ending with "/". A path with N segments yields N+1 entries.
func candidatePaths(path string) []string {
	p := normalizePath(path)
	paths := make([]string, 0, strings.Count(p, "/")+1)
	for p != "/" {
		paths = append(paths, p)
		i := strings.LastIndexByte(p, '/')
		if i <= 0 {
			p = "/"
		} else {
			p = p[:i]
		}
	}
	return append(paths, "/")
}

// normalizePath makes p absolute and drops a trailing slash.
func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// splitResourceURI returns the origin (scheme, host and non-default port)
// and the normalized path of an absolute http(s) URI.
func splitResourceURI(resourceURI string) (origin, path string, err error) {
	if resourceURI == "" {
		return "", "", errors.New("resource URI is required")
	}
	u, err := url.Parse(resourceURI)
	if err != nil {
		return "", "", fmt.Errorf("invalid resource URI: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("resource URI %q is not an absolute http(s) URI", resourceURI)
	}

	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host += ":" + port
	}
	return scheme + "://" + host, normalizePath(u.EscapedPath()), nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
