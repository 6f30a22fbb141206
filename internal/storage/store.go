// Package storage persists opaque byte payloads under string keys. It backs
// the index caches with either SQLite or BadgerDB.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// ErrNotFound is returned by Read when no entry exists for a key.
var ErrNotFound = errors.New("storage: entry not found")

// Backend names a Store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
)

// EntryInfo describes a stored entry without its payload.
type EntryInfo struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// Store is a persistent key/value byte store. Implementations are safe for
// concurrent use.
type Store interface {
	// Read returns the payload stored under key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write replaces the payload stored under key.
	Write(ctx context.Context, key string, data []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Entries lists the entries whose key starts with prefix, sorted by key.
	Entries(ctx context.Context, prefix string) ([]EntryInfo, error)
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Backend Backend
	// Dir holds the store's files. Empty opens an in-memory store.
	Dir    string
	Logger *slog.Logger
}

// Open opens the store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		path := ":memory:"
		if cfg.Dir != "" {
			path = filepath.Join(cfg.Dir, "index.db")
		}
		return OpenSQLite(path)
	case BackendBadger:
		bcfg := DefaultBadgerConfig()
		if cfg.Dir == "" {
			bcfg = InMemoryBadgerConfig()
		} else {
			bcfg.Path = filepath.Join(cfg.Dir, "badger")
		}
		bcfg.Logger = cfg.Logger
		return OpenBadger(bcfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
