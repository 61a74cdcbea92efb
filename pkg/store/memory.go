package store

import (
	"context"
	"errors"
	"sync"

	"webauthz/pkg/webauthz"
)

var (
	// ErrNilRecord is returned when asked to store a nil record.
	ErrNilRecord = errors.New("record cannot be nil")
	// ErrEmptyKey is returned when a key or id is empty.
	ErrEmptyKey = errors.New("key cannot be empty")
)

// MemoryStore implements webauthz.Store with in-memory maps. Records are
// copied on the way in and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu             sync.RWMutex
	configurations map[string]webauthz.Configuration
	registrations  map[string]webauthz.Registration
	accessRequests map[string]webauthz.AccessRequest
	accessTokens   map[string]webauthz.AccessToken
	// tokenIndex maps user/origin/path to token ids in creation order.
	tokenIndex map[tokenKey][]string
}

type tokenKey struct {
	userID string
	origin string
	path   string
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configurations: make(map[string]webauthz.Configuration),
		registrations:  make(map[string]webauthz.Registration),
		accessRequests: make(map[string]webauthz.AccessRequest),
		accessTokens:   make(map[string]webauthz.AccessToken),
		tokenIndex:     make(map[tokenKey][]string),
	}
}

// StoreConfiguration implements webauthz.Store.
func (m *MemoryStore) StoreConfiguration(ctx context.Context, discoveryURI string, cfg *webauthz.Configuration) error {
	if cfg == nil {
		return ErrNilRecord
	}
	if discoveryURI == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.configurations[discoveryURI] = *cfg
	return nil
}

// FetchConfiguration implements webauthz.Store.
func (m *MemoryStore) FetchConfiguration(ctx context.Context, discoveryURI string) (*webauthz.Configuration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configurations[discoveryURI]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// StoreRegistration implements webauthz.Store.
func (m *MemoryStore) StoreRegistration(ctx context.Context, registerURI string, reg *webauthz.Registration) error {
	if reg == nil {
		return ErrNilRecord
	}
	if registerURI == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[registerURI] = *reg
	return nil
}

// FetchRegistration implements webauthz.Store.
func (m *MemoryStore) FetchRegistration(ctx context.Context, registerURI string) (*webauthz.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.registrations[registerURI]
	if !ok {
		return nil, nil
	}
	return &reg, nil
}

// CreateAccessRequest implements webauthz.Store.
func (m *MemoryStore) CreateAccessRequest(ctx context.Context, clientState string, req *webauthz.AccessRequest) error {
	if req == nil {
		return ErrNilRecord
	}
	if clientState == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accessRequests[clientState]; exists {
		return webauthz.ErrAlreadyExists
	}
	m.accessRequests[clientState] = *req
	return nil
}

// FetchAccessRequest implements webauthz.Store.
func (m *MemoryStore) FetchAccessRequest(ctx context.Context, clientState string) (*webauthz.AccessRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.accessRequests[clientState]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

// EditAccessRequest implements webauthz.Store.
func (m *MemoryStore) EditAccessRequest(ctx context.Context, clientState string, req *webauthz.AccessRequest) error {
	if req == nil {
		return ErrNilRecord
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accessRequests[clientState]; !exists {
		return webauthz.ErrNoSuchRecord
	}
	m.accessRequests[clientState] = *req
	return nil
}

// CreateAccessToken implements webauthz.Store.
func (m *MemoryStore) CreateAccessToken(ctx context.Context, id string, tok *webauthz.AccessToken) error {
	if tok == nil {
		return ErrNilRecord
	}
	if id == "" {
		return ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accessTokens[id]; exists {
		return webauthz.ErrAlreadyExists
	}
	m.accessTokens[id] = *tok
	key := tokenKey{userID: tok.UserID, origin: tok.Origin, path: tok.Path}
	m.tokenIndex[key] = append(m.tokenIndex[key], id)
	return nil
}

// FetchAccessToken implements webauthz.Store.
func (m *MemoryStore) FetchAccessToken(ctx context.Context, q webauthz.TokenQuery) (*webauthz.AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, path := range q.Paths {
		ids := m.tokenIndex[tokenKey{userID: q.UserID, origin: q.Origin, path: path}]
		if len(ids) == 0 {
			continue
		}
		tok := m.accessTokens[ids[len(ids)-1]]
		return &tok, nil
	}
	return nil, nil
}

// Close is a no-op; it lets MemoryStore satisfy Store.
func (m *MemoryStore) Close() error {
	return nil
}
