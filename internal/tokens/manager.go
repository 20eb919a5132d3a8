// Package tokens decides, per request, whether the session's token can be
// used as-is, must be refreshed first, or is unavailable.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"drivedesk/internal/platform/metrics"
	"drivedesk/internal/session"
)

// ErrNoToken is returned when the session holds no token at all.
var ErrNoToken = errors.New("tokens: no token in session")

var errMalformedToken = errors.New("tokens: refresh response carried no access token")

// RefreshError reports that an expired token could not be refreshed. The
// session is left untouched and callers treat it like ErrNoToken.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("tokens: refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Refresher exchanges a refresh token for a new token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// RefreshObserver is notified of every refresh attempt.
type RefreshObserver interface {
	ObserveTokenRefresh(outcome string)
}

// Manager keeps session tokens usable.
type Manager struct {
	refresher Refresher
	observer  RefreshObserver
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver reports refresh outcomes to o.
func WithObserver(o RefreshObserver) Option {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager refreshing through r.
func NewManager(r Refresher, opts ...Option) *Manager {
	m := &Manager{refresher: r, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureFresh returns a token usable for an immediate API call.
//
// A token whose expiry is still in the future is returned unchanged. An
// expired token is refreshed exactly once; on success the session's token is
// replaced, on failure a *RefreshError is returned and the session is not
// modified. ErrNoToken is returned without any network call when the session
// has no token.
func (m *Manager) EnsureFresh(ctx context.Context, s *session.Session) (*session.Token, error) {
	if s == nil || s.Token == nil {
		return nil, ErrNoToken
	}

	now := m.now()
	stored := s.Token
	if !stored.Expired(now) {
		return stored, nil
	}

	issued, err := m.refresher.Refresh(ctx, stored.RefreshToken)
	if err == nil && (issued == nil || issued.AccessToken == "") {
		err = errMalformedToken
	}
	if err != nil {
		m.observe(metrics.RefreshFailed)
		return nil, &RefreshError{Err: err}
	}

	fresh := session.NewToken(issued, now)
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = stored.RefreshToken
	}
	if fresh.Scope == "" {
		fresh.Scope = stored.Scope
	}

	s.SetToken(fresh)
	m.observe(metrics.RefreshSucceeded)
	return fresh, nil
}

func (m *Manager) observe(outcome string) {
	if m.observer != nil {
		m.observer.ObserveTokenRefresh(outcome)
	}
}
