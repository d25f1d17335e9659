// Package session ties the lab catalog cache to the lifetime of a signed-in
// user. A Session holds the bearer token, refuses to use it once it has
// expired, and discards all cached records when it ends.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	logging "github.com/ipfs/go-log/v2"
	"github.com/jonboulle/clockwork"
	"github.com/labtrack/go-liblab/catalog/client"
	"github.com/labtrack/go-liblab/provider"
)

var log = logging.Logger("session")

var (
	ErrExpired      = errors.New("session expired")
	ErrEnded        = errors.New("session ended")
	ErrInvalidToken = errors.New("invalid session token")
)

// Session is a signed-in user's connection to the catalog API.
type Session struct {
	token   string
	subject string
	exp     time.Time
	clock   clockwork.Clock

	client   *client.Client
	provider *provider.Provider

	mu    sync.Mutex
	ended bool
}

// Start begins a session with the given bearer token. The token is parsed as a
// JWT to read its expiry and subject; its signature is not verified, as that
// is the server's job. A token without an expiry never expires.
func Start(token, baseURL string, options ...Option) (*Session, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	var claims jwt.RegisteredClaims
	if _, _, err = jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	s := &Session{
		token:   token,
		subject: claims.Subject,
		clock:   opts.clock,
	}
	if claims.ExpiresAt != nil {
		s.exp = claims.ExpiresAt.Time
	}

	clientOpts := append(opts.clientOpts, client.WithTokenSource(s))
	s.client, err = client.New(baseURL, clientOpts...)
	if err != nil {
		return nil, err
	}
	s.provider, err = provider.New(s.client, opts.providerOpts...)
	if err != nil {
		return nil, err
	}

	if s.Expired() {
		log.Warnw("Session token already expired", "subject", s.subject, "expiresAt", s.exp)
	} else {
		log.Infow("Session started", "subject", s.subject, "expiresAt", s.exp)
	}
	return s, nil
}

// Token returns the bearer token. It returns ErrExpired once the token has
// expired and ErrEnded after End, so that no request is sent with it.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	ended := s.ended
	s.mu.Unlock()
	if ended {
		return "", ErrEnded
	}
	if s.Expired() {
		return "", ErrExpired
	}
	return s.token, nil
}

// Expired reports whether the token has expired.
func (s *Session) Expired() bool {
	return !s.exp.IsZero() && !s.clock.Now().Before(s.exp)
}

// ExpiresAt returns the token expiry, or the zero time if it has none.
func (s *Session) ExpiresAt() time.Time {
	return s.exp
}

// Subject returns the subject claim of the token.
func (s *Session) Subject() string {
	return s.subject
}

// Provider returns the data provider of the session.
func (s *Session) Provider() *provider.Provider {
	return s.provider
}

// Client returns the catalog client of the session.
func (s *Session) Client() *client.Client {
	return s.client
}

// End ends the session and drops all cached records. It is safe to call more
// than once.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()

	s.provider.Close()
	log.Infow("Session ended", "subject", s.subject)
}
