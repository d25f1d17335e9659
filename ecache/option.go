package ecache

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultExpiry = 5 * time.Minute

type config struct {
	clock  clockwork.Clock
	expiry time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		clock:  clockwork.NewRealClock(),
		expiry: defaultExpiry,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithClock sets the clock used to timestamp entries and evaluate expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *config) error {
		if clock != nil {
			cfg.clock = clock
		}
		return nil
	}
}

// WithExpiry sets how long fetched data is served from the cache before it is
// fetched again.
//
// Default is 5 minutes.
func WithExpiry(expiry time.Duration) Option {
	return func(cfg *config) error {
		if expiry <= 0 {
			return fmt.Errorf("expiry must be positive, got %s", expiry)
		}
		cfg.expiry = expiry
		return nil
	}
}
