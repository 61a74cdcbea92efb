// Package mock provides test doubles for the webauthz engine.
//
// AuthzServer is an in-process webauthz authorization server. It serves the
// discovery document, client registration and the exchange endpoint on a
// loopback port, and records what clients sent so tests can assert on it.
// Tests stand in for the user approving an access request by calling Grant
// with the client_id from the access request URI:
//
//	authz := mock.NewAuthzServer(mock.AuthzServerConfig{IssueRefreshTokens: true})
//	if err := authz.Start(ctx); err != nil {
//		t.Fatal(err)
//	}
//	defer authz.Stop(ctx)
//
//	grantToken := authz.Grant(clientID)
//
// Behaviour can be switched between calls with SetConfig, for example to make
// the next exchange deny or fail.
//
// MockClock is a webauthz.Clock whose time only moves on Advance or Set, used
// to step past token expiry deterministically.
package mock
