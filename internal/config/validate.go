package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/declindex/internal/storage"
)

var (
	// ErrInvalidBackend indicates an unsupported storage backend
	ErrInvalidBackend = errors.New("invalid storage backend")

	// ErrInvalidCacheSettings indicates invalid cache configuration
	ErrInvalidCacheSettings = errors.New("invalid cache settings")

	// ErrEmptyCodePatterns indicates no source file patterns
	ErrEmptyCodePatterns = errors.New("empty code patterns")

	// ErrInvalidConcurrency indicates a negative worker count
	ErrInvalidConcurrency = errors.New("invalid concurrency")

	// ErrInvalidSearchSettings indicates invalid search configuration
	ErrInvalidSearchSettings = errors.New("invalid search settings")
)

// Validate checks that the configuration is valid and complete. Every
// problem is reported; errors.Is matches each sentinel involved.
func Validate(cfg *Config) error {
	var errs []error

	if len(cfg.Paths.Code) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one pattern required", ErrEmptyCodePatterns))
	}
	if cfg.Index.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: concurrency cannot be negative, got %d", ErrInvalidConcurrency, cfg.Index.Concurrency))
	}
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	if cfg.Search.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("%w: max_results cannot be negative, got %d", ErrInvalidSearchSettings, cfg.Search.MaxResults))
	}

	return joinErrors(errs)
}

func validateStorage(cfg *StorageConfig) []error {
	var errs []error

	switch storage.Backend(strings.ToLower(cfg.Backend)) {
	case storage.BackendSQLite, storage.BackendBadger:
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'sqlite' or 'badger', got '%s'", ErrInvalidBackend, cfg.Backend))
	}

	// Zero disables age or size based eviction.
	if cfg.CacheMaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf("%w: cache_max_age_days cannot be negative, got %d", ErrInvalidCacheSettings, cfg.CacheMaxAgeDays))
	}
	if cfg.CacheMaxSizeMB < 0 {
		errs = append(errs, fmt.Errorf("%w: cache_max_size_mb cannot be negative, got %.2f", ErrInvalidCacheSettings, cfg.CacheMaxSizeMB))
	}
	return errs
}

func validateCache(cfg *CacheConfig) []error {
	if cfg.MaxNodes <= 0 {
		return []error{fmt.Errorf("%w: max_nodes must be positive, got %d", ErrInvalidCacheSettings, cfg.MaxNodes)}
	}
	return nil
}

// validationErrors lists every problem found by Validate.
type validationErrors []error

func (e validationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "validation failed:\n  - " + strings.Join(msgs, "\n  - ")
}

func (e validationErrors) Unwrap() []error { return e }

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return validationErrors(errs)
	}
}
