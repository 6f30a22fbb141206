package config

import (
	"slices"

	"github.com/mvp-joe/declindex/internal/project"
	"github.com/mvp-joe/declindex/internal/storage"
)

// Config represents the complete declindex project configuration.
// It can be loaded from .declindex/config.yml with environment variable overrides.
type Config struct {
	Paths   PathsConfig   `yaml:"paths" mapstructure:"paths"`
	Index   IndexConfig   `yaml:"index" mapstructure:"index"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
}

// PathsConfig defines which files to index and which to ignore.
type PathsConfig struct {
	Code      []string `yaml:"code" mapstructure:"code"`           // glob patterns for source files
	Ignore    []string `yaml:"ignore" mapstructure:"ignore"`       // glob patterns to ignore
	Libraries []string `yaml:"libraries" mapstructure:"libraries"` // directories indexed as reference libraries
}

// IndexConfig controls loading declarations.
type IndexConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"` // parser workers, 0 = GOMAXPROCS
}

// StorageConfig defines where persisted indexes live and when they expire.
type StorageConfig struct {
	Backend         string  `yaml:"backend" mapstructure:"backend"`                       // "sqlite" or "badger"
	CacheLocation   string  `yaml:"cache_location" mapstructure:"cache_location"`         // Override default ~/.declindex/cache
	CacheMaxAgeDays int     `yaml:"cache_max_age_days" mapstructure:"cache_max_age_days"` // Evict branches older than this
	CacheMaxSizeMB  float64 `yaml:"cache_max_size_mb" mapstructure:"cache_max_size_mb"`   // Max persisted size per project
}

// CacheConfig controls the in-memory index tier.
type CacheConfig struct {
	MaxNodes             int  `yaml:"max_nodes" mapstructure:"max_nodes"`                           // node budget across cached project indexes
	RetainClosedProjects bool `yaml:"retain_closed_projects" mapstructure:"retain_closed_projects"` // keep indexes of closed projects
}

// SearchConfig controls queries.
type SearchConfig struct {
	PredicateReuse bool `yaml:"predicate_reuse" mapstructure:"predicate_reuse"` // evaluate custom predicates once per distinct name
	MaxResults     int  `yaml:"max_results" mapstructure:"max_results"`         // 0 = unlimited
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Code:   slices.Clone(project.DefaultCodePatterns),
			Ignore: slices.Clone(project.DefaultIgnorePatterns),
		},
		Storage: StorageConfig{
			Backend:         string(storage.BackendSQLite),
			CacheLocation:   "", // Empty means use default ~/.declindex/cache
			CacheMaxAgeDays: 30,
			CacheMaxSizeMB:  500,
		},
		Cache: CacheConfig{
			MaxNodes: 2_000_000,
		},
		Search: SearchConfig{
			PredicateReuse: true,
			MaxResults:     0,
		},
	}
}
