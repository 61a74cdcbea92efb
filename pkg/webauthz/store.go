package webauthz

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyExists is returned by CreateAccessRequest and
	// CreateAccessToken when the id is taken.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNoSuchRecord is returned by EditAccessRequest when the id is unknown.
	ErrNoSuchRecord = errors.New("record does not exist")
)

// Store persists everything the Client needs between calls.
//
// Fetch methods return (nil, nil) when nothing is stored under the key.
// Implementations must be safe for concurrent use.
type Store interface {
	StoreConfiguration(ctx context.Context, discoveryURI string, cfg *Configuration) error
	FetchConfiguration(ctx context.Context, discoveryURI string) (*Configuration, error)

	StoreRegistration(ctx context.Context, registerURI string, reg *Registration) error
	FetchRegistration(ctx context.Context, registerURI string) (*Registration, error)

	CreateAccessRequest(ctx context.Context, clientState string, req *AccessRequest) error
	FetchAccessRequest(ctx context.Context, clientState string) (*AccessRequest, error)
	EditAccessRequest(ctx context.Context, clientState string, req *AccessRequest) error

	CreateAccessToken(ctx context.Context, id string, tok *AccessToken) error

	// FetchAccessToken returns the token whose path equals the earliest
	// entry of q.Paths. When several tokens share that path, the most
	// recently created one is returned.
	FetchAccessToken(ctx context.Context, q TokenQuery) (*AccessToken, error)
}
