package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	cookieIssuer   = "drivedesk"
	maxCookieBytes = 4096
)

// ErrCookieTooLarge is returned when the encoded session does not fit in a browser cookie.
var ErrCookieTooLarge = errors.New("session: encoded session exceeds cookie size limit")

type cookieClaims struct {
	jwt.RegisteredClaims
	Token *Token   `json:"token,omitempty"`
	User  *Profile `json:"user,omitempty"`
}

// CookieStore keeps the whole session inside an HS256-signed cookie.
type CookieStore struct {
	key     []byte
	options CookieOptions
	now     func() time.Time
}

// NewCookieStore creates a CookieStore signing with secret.
func NewCookieStore(secret string, options CookieOptions) *CookieStore {
	return &CookieStore{
		key:     []byte(secret),
		options: options.withDefaults(),
		now:     time.Now,
	}
}

// Load decodes the session cookie. A missing cookie yields an empty session.
func (s *CookieStore) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(s.options.Name)
	if err != nil || cookie.Value == "" {
		return &Session{}, nil
	}

	var claims cookieClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return &Session{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return &Session{Token: claims.Token, User: claims.User}, nil
}

// Save writes the session into the response cookie, or expires the cookie when the session is empty.
func (s *CookieStore) Save(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess.Empty() {
		return s.Clear(w, r, sess)
	}

	now := s.now()
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cookieIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.options.TTL)),
		},
		Token: sess.Token,
		User:  sess.User,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	cookie := s.options.cookie(signed, now)
	if len(cookie.String()) > maxCookieBytes {
		return ErrCookieTooLarge
	}

	http.SetCookie(w, cookie)
	sess.modified = false
	return nil
}

// Renew is Save. The cookie carries the whole session, so there is no
// identifier to replace.
func (s *CookieStore) Renew(w http.ResponseWriter, r *http.Request, sess *Session) error {
	return s.Save(w, r, sess)
}

// Clear expires the session cookie.
func (s *CookieStore) Clear(w http.ResponseWriter, _ *http.Request, sess *Session) error {
	if sess != nil {
		sess.Clear()
		sess.modified = false
	}
	http.SetCookie(w, s.options.expired())
	return nil
}
