// Package cache keeps declaration indexes warm: in memory per branch and
// project, in memory per library, and persistently in a storage.Store.
package cache

import (
	"os"
	"path/filepath"
	"strings"
)

// Location resolves where persistent cache data lives.
// Encapsulates the cache root to avoid environment variable pollution in tests.
type Location struct {
	// root is the root directory for all cache data.
	// If empty, defaults to ~/.declindex/cache
	root string
}

// NewLocation creates a Location. A leading "~/" in root is expanded.
func NewLocation(root string) *Location {
	return &Location{root: expandPath(root)}
}

// Root returns the cache root directory.
func (l *Location) Root() string {
	if l.root != "" {
		return l.root
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".declindex", "cache")
}

// StoreDir returns the directory holding the persistent store.
func (l *Location) StoreDir() string {
	return filepath.Join(l.Root(), "store")
}

// LockPath returns the file used to serialize eviction across processes.
func (l *Location) LockPath() string {
	return filepath.Join(l.Root(), "evict.lock")
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
