package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"drivedesk/internal/session"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type requestObserver interface {
	ObserveRequest(method, route string, status int, seconds float64)
}

func newSlogMiddleware(logger *slog.Logger, observer requestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			route := routePattern(r)
			logger.Info("http request", "method", r.Method, "path", r.URL.Path, "route", route, "status", recorder.status, "duration", duration.String())
			if observer != nil {
				observer.ObserveRequest(r.Method, route, recorder.status, duration.Seconds())
			}
		})
	}
}

// routePattern keeps metric labels bounded by reporting the matched chi
// pattern instead of the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

type sessionContextKey struct{}

// SessionFromContext returns the session loaded for the request. A request
// that did not pass through the session middleware gets an empty session.
func SessionFromContext(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(sessionContextKey{}).(*session.Session); ok && sess != nil {
		return sess
	}
	return &session.Session{}
}

func newSessionMiddleware(store session.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := store.Load(r)
			if err != nil {
				if !errors.Is(err, session.ErrInvalid) {
					logger.Error("load session", "error", err)
					writeError(w, http.StatusInternalServerError, "session unavailable")
					return
				}
				logger.Debug("discarding invalid session cookie", "error", err)
			}
			if sess == nil {
				sess = &session.Session{}
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// persistSession saves the session when the handler changed it.
func persistSession(w http.ResponseWriter, r *http.Request, store session.Store, sess *session.Session) error {
	if !sess.Modified() {
		return nil
	}
	return store.Save(w, r, sess)
}

func newSecurityHeadersMiddleware(environment string) func(http.Handler) http.Handler {
	isDev := strings.EqualFold(environment, "development")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "geolocation=(), camera=(), microphone=()")

			if !isDev {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
