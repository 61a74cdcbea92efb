package webauthz

import (
	"math"
	"time"
)

// maxLifetimeSeconds is the longest lifetime a time.Duration can hold.
const maxLifetimeSeconds = math.MaxInt64 / int64(time.Second)

// Status is the lifecycle state of an AccessRequest.
type Status string

const (
	// StatusRedirect means the user has been sent to the authorization server
	// and the negotiation has not completed yet.
	StatusRedirect Status = "redirect"
	// StatusGranted means at least one exchange for this request succeeded.
	StatusGranted Status = "granted"
	// StatusDenied means the authorization server refused the last exchange.
	StatusDenied Status = "denied"
)

// Configuration is the authorization server's discovery document.
// It is keyed by the discovery URI it was fetched from.
type Configuration struct {
	// RegisterURI is where this application registers itself as a client.
	RegisterURI string `json:"webauthz_register_uri"`

	// RequestURI is the endpoint users are redirected to for access requests.
	RequestURI string `json:"webauthz_request_uri"`

	// ExchangeURI is where grant and refresh tokens are exchanged for access tokens.
	ExchangeURI string `json:"webauthz_exchange_uri"`
}

// Registration is the client registration issued to this application.
// ClientToken is a long-lived credential and must never reach an end user.
type Registration struct {
	ClientID    string `json:"client_id"`
	ClientToken string `json:"client_token"`
}

// Challenge is a parsed Bearer challenge carrying a webauthz discovery URI.
type Challenge struct {
	// ResourceURI is the resource whose request produced the challenge.
	ResourceURI string `json:"resource_uri,omitempty"`

	Realm string `json:"realm,omitempty"`
	Scope string `json:"scope,omitempty"`
	Path  string `json:"path,omitempty"`

	// DiscoveryURI is the value of the webauthz_discovery_uri parameter.
	DiscoveryURI string `json:"webauthz_discovery_uri"`

	// UserID is filled in by the caller; the parser never sets it.
	UserID string `json:"user_id,omitempty"`
}

// AccessRequest tracks one access negotiation for one user.
type AccessRequest struct {
	ResourceURI      string `json:"resource_uri"`
	Realm            string `json:"realm,omitempty"`
	Scope            string `json:"scope,omitempty"`
	Path             string `json:"path,omitempty"`
	DiscoveryURI     string `json:"webauthz_discovery_uri"`
	UserID           string `json:"user_id"`
	Context          string `json:"context,omitempty"`
	AccessRequestURI string `json:"access_request_uri"`
	Status           Status `json:"status"`

	// RefreshToken is only ever read by the exchange operation.
	RefreshToken         string     `json:"refresh_token,omitempty"`
	RefreshTokenNotAfter *time.Time `json:"refresh_token_not_after,omitempty"`
}

// AccessRequestView is the caller-visible part of an AccessRequest.
type AccessRequestView struct {
	ClientState          string     `json:"client_state"`
	ResourceURI          string     `json:"resource_uri"`
	Realm                string     `json:"realm,omitempty"`
	Scope                string     `json:"scope,omitempty"`
	Path                 string     `json:"path,omitempty"`
	DiscoveryURI         string     `json:"webauthz_discovery_uri"`
	UserID               string     `json:"user_id"`
	Context              string     `json:"context,omitempty"`
	AccessRequestURI     string     `json:"access_request_uri"`
	Status               Status     `json:"status"`
	RefreshTokenExists   bool       `json:"refresh_token_exists"`
	RefreshTokenNotAfter *time.Time `json:"refresh_token_not_after,omitempty"`
}

// View returns the observable fields of the request.
func (r *AccessRequest) View(clientState string) *AccessRequestView {
	return &AccessRequestView{
		ClientState:          clientState,
		ResourceURI:          r.ResourceURI,
		Realm:                r.Realm,
		Scope:                r.Scope,
		Path:                 r.Path,
		DiscoveryURI:         r.DiscoveryURI,
		UserID:               r.UserID,
		Context:              r.Context,
		AccessRequestURI:     r.AccessRequestURI,
		Status:               r.Status,
		RefreshTokenExists:   r.RefreshToken != "",
		RefreshTokenNotAfter: r.RefreshTokenNotAfter,
	}
}

// AccessToken is a token usable by one user for one origin and path prefix.
// The refresh token itself stays on the owning AccessRequest; ClientState
// points back to it.
type AccessToken struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"user_id"`
	Origin               string     `json:"origin"`
	Path                 string     `json:"path"`
	AccessToken          string     `json:"access_token"`
	AccessTokenNotAfter  *time.Time `json:"access_token_not_after,omitempty"`
	RefreshTokenExists   bool       `json:"refresh_token_exists"`
	RefreshTokenNotAfter *time.Time `json:"refresh_token_not_after,omitempty"`
	ClientID             string     `json:"client_id"`
	ClientState          string     `json:"client_state"`
	CreatedAt            time.Time  `json:"created_at"`
}

// TokenQuery selects an access token for a user and origin. Paths is
// ordered from most to least specific.
type TokenQuery struct {
	UserID string
	Origin string
	Paths  []string
}

// RegistrationRequest is the body sent to the registration endpoint.
type RegistrationRequest struct {
	ClientName       string `json:"client_name"`
	GrantRedirectURI string `json:"grant_redirect_uri"`
}

// TokenRequest is the body sent to the exchange endpoint. Exactly one of
// GrantToken and RefreshToken is set.
type TokenRequest struct {
	GrantToken       string `json:"grant_token,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	AccessRequestURI string `json:"access_request_uri"`
}

// TokenResponse is the exchange endpoint's reply. Optional members are
// pointers so an absent lifetime is distinguishable from zero.
type TokenResponse struct {
	AccessToken            string `json:"access_token"`
	AccessTokenMaxSeconds  *int64 `json:"access_token_max_seconds,omitempty"`
	RefreshToken           string `json:"refresh_token,omitempty"`
	RefreshTokenMaxSeconds *int64 `json:"refresh_token_max_seconds,omitempty"`
}

// expired reports whether notAfter has passed. A nil notAfter never expires,
// and a token is still valid at the exact notAfter instant.
func expired(now time.Time, notAfter *time.Time) bool {
	return notAfter != nil && now.After(*notAfter)
}

// notAfter converts a lifetime in seconds into an absolute expiry. Lifetimes
// too long for a time.Duration mean no expiry; negative ones expire at now.
func notAfter(now time.Time, maxSeconds *int64) *time.Time {
	if maxSeconds == nil || *maxSeconds > maxLifetimeSeconds {
		return nil
	}
	lifetime := max(*maxSeconds, 0)
	t := now.Add(time.Duration(lifetime) * time.Second)
	return &t
}
