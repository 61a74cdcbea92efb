// Package webauthz implements the client side of the webauthz delegated
// authorization protocol.
//
// A Client parses Bearer challenges from protected resources, negotiates
// access with the authorization server named in the challenge, exchanges
// grant and refresh tokens for access tokens, and resolves the right access
// token for later requests by a user to a resource.
//
// Persistent state lives in a Store and all network calls go through a
// Transport, so a host application can supply its own of either.
package webauthz

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "webauthz"

// Config holds the collaborators and settings of a Client.
type Config struct {
	// Store persists configurations, registrations, access requests and
	// access tokens. Required.
	Store Store

	// Transport talks to authorization servers. Defaults to NewHTTPTransport().
	Transport Transport

	// Clock is used for every expiry decision. Defaults to RealClock.
	Clock Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Tracer defaults to the global provider's "webauthz" tracer.
	Tracer trace.Tracer

	// ClientName is sent when registering with an authorization server. Required.
	ClientName string

	// GrantRedirectURI is where the authorization server sends the user
	// back with a grant token. Required.
	GrantRedirectURI string
}

// Client runs the webauthz token lifecycle. It is safe for concurrent use.
type Client struct {
	store            Store
	transport        Transport
	clock            Clock
	logger           *slog.Logger
	tracer           trace.Tracer
	clientName       string
	grantRedirectURI string

	// fills deduplicates configuration and registration fetches per URI.
	fills singleflight.Group
	// refreshes deduplicates refresh exchanges per client_state.
	refreshes singleflight.Group
}

// New validates cfg, fills in defaults and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, newError(KindInvalidRequest, "new", errors.New("store is required"))
	}
	if cfg.ClientName == "" {
		return nil, newError(KindInvalidRequest, "new", errors.New("client name is required"))
	}
	if cfg.GrantRedirectURI == "" {
		return nil, newError(KindInvalidRequest, "new", errors.New("grant redirect URI is required"))
	}

	c := &Client{
		store:            cfg.Store,
		transport:        cfg.Transport,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
		tracer:           cfg.Tracer,
		clientName:       cfg.ClientName,
		grantRedirectURI: cfg.GrantRedirectURI,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(WithTransportLogger(c.logger))
	}
	if c.clock == nil {
		c.clock = RealClock{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c, nil
}
