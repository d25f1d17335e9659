package session

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/labtrack/go-liblab/catalog/client"
	"github.com/labtrack/go-liblab/provider"
)

type config struct {
	clock        clockwork.Clock
	clientOpts   []client.Option
	providerOpts []provider.Option
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		clock: clockwork.NewRealClock(),
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithClock sets the clock used to check token expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *config) error {
		if clock != nil {
			cfg.clock = clock
		}
		return nil
	}
}

// WithClientOptions sets options for the catalog client. The session always
// provides the token source.
func WithClientOptions(opts ...client.Option) Option {
	return func(cfg *config) error {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
		return nil
	}
}

// WithProviderOptions sets options for the data provider.
func WithProviderOptions(opts ...provider.Option) Option {
	return func(cfg *config) error {
		cfg.providerOpts = append(cfg.providerOpts, opts...)
		return nil
	}
}
