// Package store persists small pieces of client state (the display-name
// cache, the session credential, the theme preference) under namespaced
// keys. Every value is written as a whole; there are no partial updates.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"marketwatch/internal/config"
)

// Namespace prefixes every key this client writes.
const Namespace = "marketwatch:"

// Well-known keys.
var (
	KeyNameCache = Key("name-cache")
	KeyToken     = Key("token")
	KeyTheme     = Key("theme")
)

// Key returns name under the client namespace.
func Key(name string) string { return Namespace + name }

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("store: key not found")

// KV is a namespaced key/value store.
type KV interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying resources.
	Close() error
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.Storage) (KV, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteKV(cfg.SQLitePath)
	case "redis":
		return NewRedisKV(ctx, cfg.Redis)
	case "file":
		return NewFileKV(filepath.Join(cfg.DataDir, "state.json"))
	case "memory":
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
