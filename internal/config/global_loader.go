package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadGlobalConfig loads ~/.declindex/config.yml. A missing file yields
// the defaults.
func LoadGlobalConfig() (*GlobalConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	return loadGlobalConfigFrom(filepath.Join(home, DirName))
}

func loadGlobalConfigFrom(dir string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("cache.base_dir")
	_ = v.BindEnv("watch.debounce_ms")

	v.SetDefault("cache.base_dir", filepath.Join(dir, "cache"))
	v.SetDefault("watch.debounce_ms", 500)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &GlobalConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Watch.DebounceMS < 0 {
		return nil, fmt.Errorf("%w: watch.debounce_ms cannot be negative, got %d", ErrInvalidCacheSettings, cfg.Watch.DebounceMS)
	}
	return cfg, nil
}
