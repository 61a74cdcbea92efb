package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/rueidis"

	"webauthz/pkg/webauthz"
)

const (
	// Key prefixes for Redis storage
	configurationPrefix = "webauthz:configuration:"
	registrationPrefix  = "webauthz:registration:"
	accessRequestPrefix = "webauthz:access_request:"
	accessTokenPrefix   = "webauthz:access_token:"
	tokenIndexPrefix    = "webauthz:access_token_index:"
)

// RedisStore implements webauthz.Store on Redis via rueidis. Records are
// stored as JSON strings. Each user/origin/path has a list of token ids
// with the newest at the head.
type RedisStore struct {
	client rueidis.Client
}

// RedisOptions contains configuration for Redis connection.
type RedisOptions struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NewRedisStore creates a new instance of RedisStore with the provided rueidis client.
func NewRedisStore(client rueidis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromOptions creates a new RedisStore with simplified options.
func NewRedisStoreFromOptions(opts RedisOptions) (*RedisStore, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisStore(client), nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() error {
	r.client.Close()
	return nil
}

// StoreConfiguration implements webauthz.Store.
func (r *RedisStore) StoreConfiguration(ctx context.Context, discoveryURI string, cfg *webauthz.Configuration) error {
	if cfg == nil {
		return ErrNilRecord
	}
	if discoveryURI == "" {
		return ErrEmptyKey
	}
	return r.set(ctx, configurationPrefix+discoveryURI, cfg, setAlways)
}

// FetchConfiguration implements webauthz.Store.
func (r *RedisStore) FetchConfiguration(ctx context.Context, discoveryURI string) (*webauthz.Configuration, error) {
	var cfg webauthz.Configuration
	found, err := r.get(ctx, configurationPrefix+discoveryURI, &cfg)
	if err != nil || !found {
		return nil, err
	}
	return &cfg, nil
}

// StoreRegistration implements webauthz.Store.
func (r *RedisStore) StoreRegistration(ctx context.Context, registerURI string, reg *webauthz.Registration) error {
	if reg == nil {
		return ErrNilRecord
	}
	if registerURI == "" {
		return ErrEmptyKey
	}
	return r.set(ctx, registrationPrefix+registerURI, reg, setAlways)
}

// FetchRegistration implements webauthz.Store.
func (r *RedisStore) FetchRegistration(ctx context.Context, registerURI string) (*webauthz.Registration, error) {
	var reg webauthz.Registration
	found, err := r.get(ctx, registrationPrefix+registerURI, &reg)
	if err != nil || !found {
		return nil, err
	}
	return &reg, nil
}

// CreateAccessRequest implements webauthz.Store.
func (r *RedisStore) CreateAccessRequest(ctx context.Context, clientState string, req *webauthz.AccessRequest) error {
	if req == nil {
		return ErrNilRecord
	}
	if clientState == "" {
		return ErrEmptyKey
	}
	return r.set(ctx, accessRequestPrefix+clientState, req, setIfAbsent)
}

// FetchAccessRequest implements webauthz.Store.
func (r *RedisStore) FetchAccessRequest(ctx context.Context, clientState string) (*webauthz.AccessRequest, error) {
	var req webauthz.AccessRequest
	found, err := r.get(ctx, accessRequestPrefix+clientState, &req)
	if err != nil || !found {
		return nil, err
	}
	return &req, nil
}

// EditAccessRequest implements webauthz.Store.
func (r *RedisStore) EditAccessRequest(ctx context.Context, clientState string, req *webauthz.AccessRequest) error {
	if req == nil {
		return ErrNilRecord
	}
	if clientState == "" {
		return webauthz.ErrNoSuchRecord
	}
	return r.set(ctx, accessRequestPrefix+clientState, req, setIfPresent)
}

// CreateAccessToken implements webauthz.Store.
func (r *RedisStore) CreateAccessToken(ctx context.Context, id string, tok *webauthz.AccessToken) error {
	if tok == nil {
		return ErrNilRecord
	}
	if id == "" {
		return ErrEmptyKey
	}
	if err := r.set(ctx, accessTokenPrefix+id, tok, setIfAbsent); err != nil {
		return err
	}

	cmd := r.client.B().Lpush().Key(tokenIndexKey(tok.UserID, tok.Origin, tok.Path)).Element(id).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to index access token in redis: %w", err)
	}
	return nil
}

// FetchAccessToken implements webauthz.Store.
func (r *RedisStore) FetchAccessToken(ctx context.Context, q webauthz.TokenQuery) (*webauthz.AccessToken, error) {
	if len(q.Paths) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, 0, len(q.Paths))
	for _, path := range q.Paths {
		cmds = append(cmds, r.client.B().Lindex().Key(tokenIndexKey(q.UserID, q.Origin, path)).Index(0).Build())
	}

	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		id, err := resp.ToString()
		if rueidis.IsRedisNil(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up access token index in redis: %w", err)
		}

		var tok webauthz.AccessToken
		found, err := r.get(ctx, accessTokenPrefix+id, &tok)
		if err != nil {
			return nil, err
		}
		if found {
			return &tok, nil
		}
	}
	return nil, nil
}

type setMode int

const (
	setAlways setMode = iota
	setIfAbsent
	setIfPresent
)

func (r *RedisStore) set(ctx context.Context, key string, v any, mode setMode) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	var resp rueidis.RedisResult
	switch mode {
	case setIfAbsent:
		resp = r.client.Do(ctx, r.client.B().Set().Key(key).Value(string(data)).Nx().Build())
	case setIfPresent:
		resp = r.client.Do(ctx, r.client.B().Set().Key(key).Value(string(data)).Xx().Build())
	default:
		resp = r.client.Do(ctx, r.client.B().Set().Key(key).Value(string(data)).Build())
	}

	err = resp.Error()
	if rueidis.IsRedisNil(err) {
		// SET NX / XX reply nil when the condition does not hold.
		if mode == setIfAbsent {
			return webauthz.ErrAlreadyExists
		}
		return webauthz.ErrNoSuchRecord
	}
	if err != nil {
		return fmt.Errorf("failed to write %s to redis: %w", key, err)
	}
	return nil
}

func (r *RedisStore) get(ctx context.Context, key string, v any) (bool, error) {
	result, err := r.client.Do(ctx, r.client.B().Get().Key(key).Build()).ToString()
	if rueidis.IsRedisNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s from redis: %w", key, err)
	}
	if err := json.Unmarshal([]byte(result), v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func tokenIndexKey(userID, origin, path string) string {
	return tokenIndexPrefix + userID + "\x00" + origin + "\x00" + path
}
