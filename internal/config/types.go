package config

import (
	"time"

	"webauthz/pkg/store"
)

// WebauthzConfig is the top-level configuration structure for webauthz.
type WebauthzConfig struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
	Store  store.Config `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// ClientConfig describes how this application registers with, and talks to,
// authorization servers.
type ClientConfig struct {
	Name             string        `yaml:"name,omitempty"`             // Sent as client_name at registration
	GrantRedirectURI string        `yaml:"grantRedirectURI,omitempty"` // Where authorization servers send the user back
	HTTPTimeout      time.Duration `yaml:"httpTimeout,omitempty"`      // Timeout for discovery, registration and exchange calls
}

// ServerConfig defines the configuration for the HTTP API.
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr,omitempty"` // Address to bind to (default: :8080)
	UserHeader string `yaml:"userHeader,omitempty"` // Trusted header carrying the caller's user id
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // text or json
}
