package session

import (
	"errors"
	"net/http"
	"time"
)

// ErrInvalid is returned by Load together with a fresh, empty session when the
// request carries a session cookie that cannot be trusted (bad signature,
// expired, unknown format).
var ErrInvalid = errors.New("session: invalid session cookie")

// Store loads and persists sessions for a single request/response round trip.
type Store interface {
	Load(r *http.Request) (*Session, error)
	Save(w http.ResponseWriter, r *http.Request, s *Session) error
	// Renew saves s under a new identifier and discards the one it was loaded
	// with. Called when the session changes hands, such as on login.
	Renew(w http.ResponseWriter, r *http.Request, s *Session) error
	Clear(w http.ResponseWriter, r *http.Request, s *Session) error
}

// CookieOptions controls the cookie that carries a session or its identifier.
type CookieOptions struct {
	Name   string
	Path   string
	Secure bool
	TTL    time.Duration
}

const (
	defaultCookieName = "drivedesk_session"
	defaultTTL        = 14 * 24 * time.Hour
)

func (o CookieOptions) withDefaults() CookieOptions {
	if o.Name == "" {
		o.Name = defaultCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	return o
}

func (o CookieOptions) cookie(value string, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     o.Path,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(o.TTL.Seconds()),
		Expires:  now.Add(o.TTL),
	}
}

func (o CookieOptions) expired() *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     o.Path,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	}
}
