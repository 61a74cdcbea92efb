package webauthz

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// clientStateBytes is the amount of randomness in a client_state.
const clientStateBytes = 32

// randRead is the entropy source for client_state values.
var randRead = rand.Read

// Negotiation is what a caller needs to send the user to the authorization server.
type Negotiation struct {
	ClientState      string `json:"client_state"`
	AccessRequestURI string `json:"access_request_uri"`
}

// StartNegotiation records a new access request for challenge and returns
// the URI the user must visit. challenge.UserID and challenge.ResourceURI
// must be set. appContext is stored as-is and returned by GetNegotiation.
func (c *Client) StartNegotiation(ctx context.Context, challenge *Challenge, appContext string) (_ *Negotiation, err error) {
	const op = "start negotiation"

	ctx, span := c.tracer.Start(ctx, "webauthz.StartNegotiation")
	defer func() { endSpan(span, err) }()

	if challenge == nil || challenge.DiscoveryURI == "" {
		return nil, newError(KindInvalidRequest, op, errors.New("challenge has no discovery URI"))
	}
	if challenge.UserID == "" {
		return nil, newError(KindInvalidRequest, op, errors.New("user id is required"))
	}
	if _, _, err := splitResourceURI(challenge.ResourceURI); err != nil {
		return nil, newError(KindInvalidRequest, op, err)
	}
	span.SetAttributes(attribute.String("webauthz.discovery_uri", challenge.DiscoveryURI))

	cfg, reg, err := c.resolveServer(ctx, challenge.DiscoveryURI)
	if err != nil {
		return nil, err
	}

	clientState, err := newClientState()
	if err != nil {
		c.logger.Error("Failed to generate client state", "error", err)
		return nil, newError(KindUnknown, op, err)
	}

	requestURI, err := buildAccessRequestURI(cfg.RequestURI, reg.ClientID, clientState, challenge)
	if err != nil {
		c.logger.Error("Authorization server advertised an unusable request URI",
			"discovery_uri", challenge.DiscoveryURI,
			"request_uri", cfg.RequestURI,
			"error", err)
		return nil, newError(KindDiscoveryFailed, op, nil)
	}

	req := &AccessRequest{
		ResourceURI:      challenge.ResourceURI,
		Realm:            challenge.Realm,
		Scope:            challenge.Scope,
		Path:             challenge.Path,
		DiscoveryURI:     challenge.DiscoveryURI,
		UserID:           challenge.UserID,
		Context:          appContext,
		AccessRequestURI: requestURI,
		Status:           StatusRedirect,
	}
	if err := c.store.CreateAccessRequest(ctx, clientState, req); err != nil {
		return nil, storageError(op, err)
	}

	c.logger.Debug("Started access negotiation",
		"user_id", challenge.UserID,
		"resource_uri", challenge.ResourceURI,
		"client_id", reg.ClientID)

	return &Negotiation{ClientState: clientState, AccessRequestURI: requestURI}, nil
}

// GetNegotiation returns the access request stored under clientState if it
// belongs to userID. The refresh token is never part of the result.
func (c *Client) GetNegotiation(ctx context.Context, clientState, userID string) (*AccessRequestView, error) {
	req, err := c.loadOwnedRequest(ctx, "get negotiation", clientState, userID)
	if err != nil {
		return nil, err
	}
	return req.View(clientState), nil
}

// loadOwnedRequest fetches an access request and checks its owner.
func (c *Client) loadOwnedRequest(ctx context.Context, op, clientState, userID string) (*AccessRequest, error) {
	if clientState == "" {
		return nil, newError(KindNotFound, op, nil)
	}
	req, err := c.store.FetchAccessRequest(ctx, clientState)
	if err != nil {
		return nil, storageError(op, err)
	}
	if req == nil {
		return nil, newError(KindNotFound, op, nil)
	}
	if req.UserID != userID {
		c.logger.Warn("Access request read by a user who does not own it", "user_id", userID)
		return nil, newError(KindAccessDenied, op, errors.New("access request belongs to another user"))
	}
	return req, nil
}

// buildAccessRequestURI appends the negotiation parameters to the server's
// request endpoint, keeping any query it already has.
func buildAccessRequestURI(endpoint, clientID, clientState string, challenge *Challenge) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("request URI %q is not absolute", endpoint)
	}

	q := u.Query()
	q.Set("client_id", clientID)
	q.Set("client_state", clientState)
	if challenge.Realm != "" {
		q.Set("realm", challenge.Realm)
	}
	if challenge.Scope != "" {
		q.Set("scope", challenge.Scope)
	}
	if challenge.Path != "" {
		q.Set("path", challenge.Path)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newClientState() (string, error) {
	b := make([]byte, clientStateBytes)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("failed to generate client state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
}
