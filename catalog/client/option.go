package client

import (
	"fmt"
	"net/http"
	"time"
)

const (
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
)

// TokenSource supplies the bearer token sent with each request. An error from
// Token fails the request before anything is sent.
type TokenSource interface {
	Token() (string, error)
}

type config struct {
	httpClient   *http.Client
	timeout      time.Duration
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	tokens       TokenSource
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		httpClient:   http.DefaultClient,
		retryWaitMin: defaultRetryWaitMin,
		retryWaitMax: defaultRetryWaitMax,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithClient allows creation of the http client using an underlying network
// round tripper / client.
func WithClient(c *http.Client) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.httpClient = c
		}
		return nil
	}
}

// WithTimeout sets the time limit of each HTTP request attempt. Zero means no
// limit beyond that of the request context.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *config) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout %s", timeout)
		}
		cfg.timeout = timeout
		return nil
	}
}

// WithRetry retries requests that fail with a connection error or a 5xx or 429
// response, up to retryMax times, with exponential backoff between waitMin and
// waitMax. Zero waits select the defaults of 500ms and 5s.
//
// Retry is disabled by default.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(cfg *config) error {
		if retryMax < 0 {
			return fmt.Errorf("negative retry count %d", retryMax)
		}
		cfg.retryMax = retryMax
		if waitMin != 0 {
			cfg.retryWaitMin = waitMin
		}
		if waitMax != 0 {
			cfg.retryWaitMax = waitMax
		}
		if cfg.retryWaitMax < cfg.retryWaitMin {
			return fmt.Errorf("retry wait max %s less than min %s", cfg.retryWaitMax, cfg.retryWaitMin)
		}
		return nil
	}
}

// WithTokenSource sets the source of the bearer token used to authenticate
// requests. Without it requests are sent unauthenticated.
func WithTokenSource(tokens TokenSource) Option {
	return func(cfg *config) error {
		cfg.tokens = tokens
		return nil
	}
}
