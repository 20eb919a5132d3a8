package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Backend persists encoded sessions keyed by session ID.
type Backend interface {
	// Get returns nil data when the session does not exist or has expired.
	Get(ctx context.Context, id string) ([]byte, error)
	Set(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// ServerStore keeps session contents in a Backend and only the session ID in the cookie.
type ServerStore struct {
	backend Backend
	options CookieOptions
	now     func() time.Time
}

// NewServerStore creates a ServerStore on top of backend.
func NewServerStore(backend Backend, options CookieOptions) *ServerStore {
	return &ServerStore{
		backend: backend,
		options: options.withDefaults(),
		now:     time.Now,
	}
}

// Load resolves the session referenced by the request cookie.
func (s *ServerStore) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(s.options.Name)
	if err != nil || cookie.Value == "" {
		return &Session{}, nil
	}

	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return &Session{}, fmt.Errorf("%w: malformed id", ErrInvalid)
	}

	data, err := s.backend.Get(r.Context(), id.String())
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if data == nil {
		return &Session{}, nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return &Session{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	sess.id = id.String()
	return &sess, nil
}

// Save stores the session and refreshes the cookie, assigning an ID on first save.
func (s *ServerStore) Save(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess.Empty() {
		return s.Clear(w, r, sess)
	}

	if sess.id == "" {
		sess.id = uuid.NewString()
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := s.backend.Set(r.Context(), sess.id, data, s.options.TTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	http.SetCookie(w, s.options.cookie(sess.id, s.now()))
	sess.modified = false
	return nil
}

// Renew moves the session to a freshly generated ID. The record stored under
// the previous ID is deleted before the new one is written.
func (s *ServerStore) Renew(w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess.id != "" {
		if err := s.backend.Delete(r.Context(), sess.id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		sess.id = ""
	}
	return s.Save(w, r, sess)
}

// Clear deletes the stored session and expires the cookie.
func (s *ServerStore) Clear(w http.ResponseWriter, r *http.Request, sess *Session) error {
	http.SetCookie(w, s.options.expired())
	if sess == nil {
		return nil
	}

	id := sess.id
	sess.Clear()
	sess.id = ""
	sess.modified = false

	if id == "" {
		return nil
	}
	if err := s.backend.Delete(r.Context(), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
