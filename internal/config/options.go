package config

import (
	"log/slog"
	"strings"

	"github.com/mvp-joe/declindex/internal/cache"
	"github.com/mvp-joe/declindex/internal/project"
	"github.com/mvp-joe/declindex/internal/storage"
	"github.com/mvp-joe/declindex/internal/symtree"
)

// ProjectOptions converts the paths and index sections to project options.
func (c *Config) ProjectOptions(logger *slog.Logger) project.Options {
	return project.Options{
		CodePatterns:   c.Paths.Code,
		IgnorePatterns: c.Paths.Ignore,
		Concurrency:    c.Index.Concurrency,
		Logger:         logger,
	}
}

// IndexOptions converts the search section to index options.
func (c *Config) IndexOptions() []symtree.Option {
	if c.Search.PredicateReuse {
		return nil
	}
	return []symtree.Option{symtree.WithoutPredicateReuse()}
}

// Location returns the cache directory, honoring storage.cache_location.
func (c *Config) Location() *cache.Location {
	return cache.NewLocation(c.Storage.CacheLocation)
}

// EvictionPolicy converts the storage limits to an eviction policy.
func (c *Config) EvictionPolicy() cache.EvictionPolicy {
	policy := cache.DefaultEvictionPolicy()
	policy.MaxAgeDays = c.Storage.CacheMaxAgeDays
	policy.MaxSizeMB = c.Storage.CacheMaxSizeMB
	return policy
}

// OpenStore opens the configured persistent store under the cache location.
func (c *Config) OpenStore(logger *slog.Logger) (storage.Store, error) {
	return storage.Open(storage.Config{
		Backend: storage.Backend(strings.ToLower(c.Storage.Backend)),
		Dir:     c.Location().StoreDir(),
		Logger:  logger,
	})
}
