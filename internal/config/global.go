// Package config loads declindex configuration.
//
// There are two scopes:
//
//  1. Global configuration (~/.declindex/config.yml): machine-wide
//     defaults such as the shared cache directory and the watch debounce.
//  2. Project configuration (.declindex/config.yml): which files to index,
//     the storage backend, cache limits and search behavior.
//
// Environment variables prefixed with DECLINDEX_ override both, with
// nested keys joined by underscores (DECLINDEX_STORAGE_BACKEND).
package config

// GlobalConfig holds machine-wide settings.
type GlobalConfig struct {
	Cache GlobalCacheConfig `yaml:"cache" mapstructure:"cache"`
	Watch WatchConfig       `yaml:"watch" mapstructure:"watch"`
}

// GlobalCacheConfig holds global cache settings.
type GlobalCacheConfig struct {
	BaseDir string `yaml:"base_dir" mapstructure:"base_dir"` // Base directory for cache (~/.declindex/cache)
}

// WatchConfig holds settings of the watch command.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms" mapstructure:"debounce_ms"` // Quiet period before re-indexing
}

// ApplyGlobal fills project settings left empty from the global config.
func (c *Config) ApplyGlobal(g *GlobalConfig) {
	if c.Storage.CacheLocation == "" && g != nil {
		c.Storage.CacheLocation = g.Cache.BaseDir
	}
}
