package provider

import (
	"fmt"

	"github.com/labtrack/go-liblab/ecache"
)

const defaultPreloadConcurrency = 4

type config struct {
	cacheOpts          []ecache.Option
	preloadConcurrency int
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		preloadConcurrency: defaultPreloadConcurrency,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithCacheOptions sets options passed to the entity cache.
func WithCacheOptions(opts ...ecache.Option) Option {
	return func(cfg *config) error {
		cfg.cacheOpts = append(cfg.cacheOpts, opts...)
		return nil
	}
}

// WithPreloadConcurrency sets the number of entities Preload fetches at once.
func WithPreloadConcurrency(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("preload concurrency must be at least 1, got %d", n)
		}
		cfg.preloadConcurrency = n
		return nil
	}
}
