package config

import (
	"time"

	"webauthz/pkg/store"
)

const (
	// DefaultClientName is sent to authorization servers when none is configured.
	DefaultClientName = "webauthz-go"

	// DefaultGrantRedirectURI points at the grant endpoint of a local serve.
	DefaultGrantRedirectURI = "http://localhost:8080/v1/grant"

	// DefaultHTTPTimeout bounds calls to authorization servers.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultListenAddr is where serve listens.
	DefaultListenAddr = ":8080"

	// DefaultUserHeader carries the authenticated user id.
	DefaultUserHeader = "X-Webauthz-User"

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"

	// DefaultLogFormat is used when no format is configured.
	DefaultLogFormat = "text"
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() WebauthzConfig {
	return WebauthzConfig{
		Client: ClientConfig{
			Name:             DefaultClientName,
			GrantRedirectURI: DefaultGrantRedirectURI,
			HTTPTimeout:      DefaultHTTPTimeout,
		},
		Server: ServerConfig{
			ListenAddr: DefaultListenAddr,
			UserHeader: DefaultUserHeader,
		},
		Store: store.Config{
			Type: store.TypeMemory,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
