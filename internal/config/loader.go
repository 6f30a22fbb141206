package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DirName is the per-project configuration directory.
const DirName = ".declindex"

// EnvPrefix prefixes every environment override, e.g. DECLINDEX_STORAGE_BACKEND.
const EnvPrefix = "DECLINDEX"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a loader reading rootDir/.declindex/config.{yml,yaml}.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// NewFileLoader creates a loader reading an explicit config file, which
// must exist.
func NewFileLoader(configFile string) Loader {
	return &loader{configFile: configFile}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (DECLINDEX_*)
// 2. Config file
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, DirName))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if l.configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// bindEnvVars binds the scalar keys so AutomaticEnv sees them during
// Unmarshal.
func bindEnvVars(v *viper.Viper) {
	for _, key := range []string{
		"index.concurrency",
		"storage.backend",
		"storage.cache_location",
		"storage.cache_max_age_days",
		"storage.cache_max_size_mb",
		"cache.max_nodes",
		"cache.retain_closed_projects",
		"search.predicate_reuse",
		"search.max_results",
	} {
		_ = v.BindEnv(key)
	}
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("paths.code", defaults.Paths.Code)
	v.SetDefault("paths.ignore", defaults.Paths.Ignore)
	v.SetDefault("paths.libraries", defaults.Paths.Libraries)

	v.SetDefault("index.concurrency", defaults.Index.Concurrency)

	v.SetDefault("storage.backend", defaults.Storage.Backend)
	v.SetDefault("storage.cache_location", defaults.Storage.CacheLocation)
	v.SetDefault("storage.cache_max_age_days", defaults.Storage.CacheMaxAgeDays)
	v.SetDefault("storage.cache_max_size_mb", defaults.Storage.CacheMaxSizeMB)

	v.SetDefault("cache.max_nodes", defaults.Cache.MaxNodes)
	v.SetDefault("cache.retain_closed_projects", defaults.Cache.RetainClosedProjects)

	v.SetDefault("search.predicate_reuse", defaults.Search.PredicateReuse)
	v.SetDefault("search.max_results", defaults.Search.MaxResults)
}

// LoadConfig loads the configuration of the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
