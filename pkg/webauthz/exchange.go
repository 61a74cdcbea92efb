package webauthz

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ExchangeRequest asks for an access token. Set exactly one of GrantToken
// or Refresh.
type ExchangeRequest struct {
	ClientID    string
	ClientState string
	GrantToken  string
	Refresh     bool
	UserID      string
}

// ExchangeResult is returned by a successful Exchange.
type ExchangeResult struct {
	ResourceURI         string     `json:"resource_uri"`
	Status              Status     `json:"status"`
	AccessToken         string     `json:"access_token"`
	AccessTokenNotAfter *time.Time `json:"access_token_not_after,omitempty"`
}

// exchanged is the outcome shared between concurrent refreshes.
type exchanged struct {
	resourceURI string
	token       *AccessToken
}

// Exchange trades a grant token, or the refresh token stored on the access
// request, for a new access token. On success a new AccessToken is stored
// and the access request becomes granted with the refresh token from the
// response, which replaces (or clears) the previous one.
//
// Concurrent refreshes of the same access request by the same user share a
// single call to the authorization server.
func (c *Client) Exchange(ctx context.Context, req ExchangeRequest) (_ *ExchangeResult, err error) {
	ctx, span := c.tracer.Start(ctx, "webauthz.Exchange")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Bool("webauthz.refresh", req.Refresh))

	out, err := c.exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ExchangeResult{
		ResourceURI:         out.resourceURI,
		Status:              StatusGranted,
		AccessToken:         out.token.AccessToken,
		AccessTokenNotAfter: out.token.AccessTokenNotAfter,
	}, nil
}

func (c *Client) exchange(ctx context.Context, req ExchangeRequest) (*exchanged, error) {
	if !req.Refresh || req.GrantToken != "" {
		return c.doExchange(ctx, req)
	}
	key := strings.Join([]string{req.ClientState, req.UserID, req.ClientID}, "\x00")
	v, err := shared(ctx, &c.refreshes, key, KindExchangeFailed, "exchange", func(ctx context.Context) (interface{}, error) {
		return c.doExchange(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*exchanged), nil
}

func (c *Client) doExchange(ctx context.Context, req ExchangeRequest) (*exchanged, error) {
	const op = "exchange"

	switch {
	case req.GrantToken == "" && !req.Refresh:
		return nil, newError(KindInvalidRequest, op, errors.New("grant token or refresh is required"))
	case req.GrantToken != "" && req.Refresh:
		return nil, newError(KindInvalidRequest, op, errors.New("grant token and refresh are mutually exclusive"))
	}

	accessRequest, err := c.loadOwnedRequest(ctx, op, req.ClientState, req.UserID)
	if err != nil {
		return nil, err
	}

	if req.Refresh {
		if accessRequest.RefreshToken == "" {
			return nil, newError(KindInvalidRequest, op, errors.New("no refresh token available"))
		}
		if expired(c.clock.Now(), accessRequest.RefreshTokenNotAfter) {
			return nil, newError(KindAccessDenied, op, errors.New("refresh token expired"))
		}
	}

	cfg, reg, err := c.resolveServer(ctx, accessRequest.DiscoveryURI)
	if err != nil {
		return nil, err
	}
	if req.ClientID != reg.ClientID {
		c.logger.Warn("Exchange requested with a client id that does not match the registration",
			"discovery_uri", accessRequest.DiscoveryURI)
		return nil, newError(KindNotFound, op, nil)
	}

	body := TokenRequest{AccessRequestURI: accessRequest.AccessRequestURI}
	if req.Refresh {
		body.RefreshToken = accessRequest.RefreshToken
	} else {
		body.GrantToken = req.GrantToken
	}

	resp, err := c.transport.Exchange(ctx, cfg.ExchangeURI, NewRedactedToken(reg.ClientToken), body)
	if err != nil {
		c.logger.Error("Token exchange failed",
			"exchange_uri", cfg.ExchangeURI,
			"refresh", req.Refresh,
			"error", err)
		return nil, newError(KindExchangeFailed, op, nil)
	}

	if resp.AccessToken == "" {
		accessRequest.Status = StatusDenied
		if err := c.store.EditAccessRequest(ctx, req.ClientState, accessRequest); err != nil {
			return nil, storageError(op, err)
		}
		c.logger.Info("Authorization server denied access",
			"user_id", req.UserID,
			"resource_uri", accessRequest.ResourceURI)
		return nil, newError(KindAccessDenied, op, errors.New("authorization server issued no access token"))
	}

	origin, resourcePath, err := splitResourceURI(accessRequest.ResourceURI)
	if err != nil {
		return nil, newError(KindInvalidRequest, op, err)
	}
	tokenPath := normalizePath(accessRequest.Path)
	if accessRequest.Path == "" {
		tokenPath = resourcePath
	}

	now := c.clock.Now()
	var refreshNotAfter *time.Time
	if resp.RefreshToken != "" {
		refreshNotAfter = notAfter(now, resp.RefreshTokenMaxSeconds)
	}

	token := &AccessToken{
		ID:                   uuid.NewString(),
		UserID:               accessRequest.UserID,
		Origin:               origin,
		Path:                 tokenPath,
		AccessToken:          resp.AccessToken,
		AccessTokenNotAfter:  notAfter(now, resp.AccessTokenMaxSeconds),
		RefreshTokenExists:   resp.RefreshToken != "",
		RefreshTokenNotAfter: refreshNotAfter,
		ClientID:             reg.ClientID,
		ClientState:          req.ClientState,
		CreatedAt:            now,
	}
	if err := c.store.CreateAccessToken(ctx, token.ID, token); err != nil {
		return nil, storageError(op, err)
	}

	accessRequest.Status = StatusGranted
	accessRequest.RefreshToken = resp.RefreshToken
	accessRequest.RefreshTokenNotAfter = refreshNotAfter
	if err := c.store.EditAccessRequest(ctx, req.ClientState, accessRequest); err != nil {
		return nil, storageError(op, err)
	}

	c.logger.Debug("Access token issued",
		"user_id", token.UserID,
		"origin", token.Origin,
		"path", token.Path,
		"refresh", req.Refresh,
		"refresh_token_exists", token.RefreshTokenExists)

	return &exchanged{resourceURI: accessRequest.ResourceURI, token: token}, nil
}
