package webauthz

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// shared runs fn once per key for all concurrent callers. fn gets a context
// without the caller's cancellation, so it completes for everyone waiting on
// key; each caller stops waiting when its own ctx is done and then gets an
// error of the given kind wrapping ctx.Err().
func shared(ctx context.Context, g *singleflight.Group, key string, kind Kind, op string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, newError(kind, op, ctx.Err())
	}
}

// GetConfiguration returns the discovery document for discoveryURI, fetching
// and persisting it on first use. Documents are kept until removed from the
// store by someone else. A fetched document that cannot be stored is not
// returned.
func (c *Client) GetConfiguration(ctx context.Context, discoveryURI string) (*Configuration, error) {
	const op = "get configuration"

	cfg, err := c.store.FetchConfiguration(ctx, discoveryURI)
	if err != nil {
		return nil, storageError(op, err)
	}
	if cfg != nil {
		return cfg, nil
	}

	v, err := shared(ctx, &c.fills, "configuration:"+discoveryURI, KindDiscoveryFailed, op, func(ctx context.Context) (interface{}, error) {
		// Another caller may have filled it while we were queued.
		cfg, err := c.store.FetchConfiguration(ctx, discoveryURI)
		if err != nil {
			return nil, storageError(op, err)
		}
		if cfg != nil {
			return cfg, nil
		}

		cfg, err = c.transport.FetchConfiguration(ctx, discoveryURI)
		if err != nil {
			c.logger.Error("Failed to fetch authorization server configuration",
				"discovery_uri", discoveryURI,
				"error", err)
			return nil, newError(KindDiscoveryFailed, op, nil)
		}
		if err := c.store.StoreConfiguration(ctx, discoveryURI, cfg); err != nil {
			c.logger.Error("Failed to store authorization server configuration",
				"discovery_uri", discoveryURI,
				"error", err)
			return nil, storageError(op, err)
		}
		c.logger.Debug("Stored authorization server configuration", "discovery_uri", discoveryURI)
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Configuration), nil
}

// GetRegistration returns this application's registration at registerURI,
// registering on first use with the configured client name and grant
// redirect URI. The same persistence rule as GetConfiguration applies.
func (c *Client) GetRegistration(ctx context.Context, registerURI string) (*Registration, error) {
	const op = "get registration"

	reg, err := c.store.FetchRegistration(ctx, registerURI)
	if err != nil {
		return nil, storageError(op, err)
	}
	if reg != nil {
		return reg, nil
	}

	v, err := shared(ctx, &c.fills, "registration:"+registerURI, KindRegistrationFailed, op, func(ctx context.Context) (interface{}, error) {
		reg, err := c.store.FetchRegistration(ctx, registerURI)
		if err != nil {
			return nil, storageError(op, err)
		}
		if reg != nil {
			return reg, nil
		}

		reg, err = c.transport.Register(ctx, registerURI, RegistrationRequest{
			ClientName:       c.clientName,
			GrantRedirectURI: c.grantRedirectURI,
		})
		if err != nil {
			c.logger.Error("Failed to register with authorization server",
				"register_uri", registerURI,
				"error", err)
			return nil, newError(KindRegistrationFailed, op, nil)
		}
		if err := c.store.StoreRegistration(ctx, registerURI, reg); err != nil {
			c.logger.Error("Failed to store client registration",
				"register_uri", registerURI,
				"error", err)
			return nil, storageError(op, err)
		}
		c.logger.Info("Registered with authorization server",
			"register_uri", registerURI,
			"client_id", reg.ClientID)
		return reg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Registration), nil
}

// resolveServer loads both the configuration and the registration for a
// discovery URI.
func (c *Client) resolveServer(ctx context.Context, discoveryURI string) (*Configuration, *Registration, error) {
	cfg, err := c.GetConfiguration(ctx, discoveryURI)
	if err != nil {
		return nil, nil, err
	}
	reg, err := c.GetRegistration(ctx, cfg.RegisterURI)
	if err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}
