package store

import (
	"context"
	"fmt"
	"strings"

	"webauthz/pkg/logging"
	"webauthz/pkg/webauthz"
)

// Type represents the type of store backend.
type Type string

const (
	// TypeMemory keeps everything in process memory.
	TypeMemory Type = "memory"
	// TypeRedis stores records in Redis.
	TypeRedis Type = "redis"
	// TypePostgres stores records in PostgreSQL.
	TypePostgres Type = "postgres"
	// TypeSQLite stores records in SQLite.
	TypeSQLite Type = "sqlite"
)

// Store is a webauthz.Store that holds resources until closed.
type Store interface {
	webauthz.Store
	Close() error
}

// Config contains configuration for creating a store.
type Config struct {
	// Type specifies the store backend.
	Type Type `yaml:"type"`
	// DSN is the data source name for the SQL backends.
	DSN string `yaml:"dsn"`
	// Redis contains Redis-specific configuration.
	Redis RedisOptions `yaml:"redis"`
}

// New creates a store for config.
func New(ctx context.Context, config Config) (Store, error) {
	logging.Debug("Store", "Creating %s store", config.Type)

	switch config.Type {
	case TypeMemory, "":
		return NewMemoryStore(), nil
	case TypeRedis:
		if config.Redis.Addr == "" {
			return nil, fmt.Errorf("redis store requires an address")
		}
		s, err := NewRedisStoreFromOptions(config.Redis)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypePostgres:
		s, err := OpenSQLStore(ctx, DialectPostgres, config.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeSQLite:
		dsn := config.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		s, err := OpenSQLStore(ctx, DialectSQLite, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

// ParseType parses a string into a Type. It returns false for unknown names.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	return t, t.IsValid()
}

// IsValid returns true if the Type is valid.
func (t Type) IsValid() bool {
	switch t {
	case TypeMemory, TypeRedis, TypePostgres, TypeSQLite:
		return true
	default:
		return false
	}
}

// String returns the string representation of a Type.
func (t Type) String() string {
	return string(t)
}
