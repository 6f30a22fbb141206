package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Global Config Loader:
// - LoadGlobalConfig() returns defaults under ~/.declindex when no file exists
// - LoadGlobalConfig() loads ~/.declindex/config.yml when present
// - environment variables override YAML values
// - malformed YAML and negative debounce are errors
// - ApplyGlobal fills only an empty cache location

func TestLoadGlobalConfig_MissingFile(t *testing.T) {
	// Note: Cannot use t.Parallel() with t.Setenv()
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tempHome, ".declindex", "cache"), cfg.Cache.BaseDir)
	assert.Equal(t, 500, cfg.Watch.DebounceMS)
}

func TestLoadGlobalConfig_WithFile(t *testing.T) {
	// Note: Cannot use t.Parallel() with t.Setenv()
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	dir := filepath.Join(tempHome, ".declindex")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`
cache:
  base_dir: /custom/cache
watch:
  debounce_ms: 250
`), 0644))

	cfg, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "/custom/cache", cfg.Cache.BaseDir)
	assert.Equal(t, 250, cfg.Watch.DebounceMS)

	t.Setenv("DECLINDEX_CACHE_BASE_DIR", "/env/cache")
	t.Setenv("DECLINDEX_WATCH_DEBOUNCE_MS", "100")
	cfg, err = LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "/env/cache", cfg.Cache.BaseDir)
	assert.Equal(t, 100, cfg.Watch.DebounceMS)
}

func TestLoadGlobalConfig_Errors(t *testing.T) {
	t.Parallel()

	malformed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(malformed, "config.yml"), []byte("cache:\n  base_dir: [unclosed\n"), 0644))
	_, err := loadGlobalConfigFrom(malformed)
	assert.ErrorContains(t, err, "failed to read config file")

	negative := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(negative, "config.yml"), []byte("watch:\n  debounce_ms: -1\n"), 0644))
	_, err = loadGlobalConfigFrom(negative)
	assert.ErrorIs(t, err, ErrInvalidCacheSettings)
}

func TestApplyGlobal(t *testing.T) {
	t.Parallel()

	global := &GlobalConfig{Cache: GlobalCacheConfig{BaseDir: "/global/cache"}}

	cfg := Default()
	cfg.ApplyGlobal(global)
	assert.Equal(t, "/global/cache", cfg.Storage.CacheLocation)

	cfg = Default()
	cfg.Storage.CacheLocation = "/project/cache"
	cfg.ApplyGlobal(global)
	assert.Equal(t, "/project/cache", cfg.Storage.CacheLocation)

	cfg = Default()
	cfg.ApplyGlobal(nil)
	assert.Empty(t, cfg.Storage.CacheLocation)
}
