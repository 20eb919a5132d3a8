package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"drivedesk/internal/session"
	"drivedesk/internal/tokens"
	"drivedesk/internal/workspace"
)

type tokenEnsurer interface {
	EnsureFresh(ctx context.Context, s *session.Session) (*session.Token, error)
}

type resourceLister interface {
	ListFiles(ctx context.Context, token *oauth2.Token, pageToken string) (workspace.FilePage, error)
	ListContacts(ctx context.Context, token *oauth2.Token, pageToken string) (workspace.ContactPage, error)
}

// ResourceHandler renders paginated listings fetched on the user's behalf.
type ResourceHandler struct {
	tokens   tokenEnsurer
	lister   resourceLister
	store    session.Store
	renderer pageRenderer
	logger   *slog.Logger
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(ensurer tokenEnsurer, lister resourceLister, store session.Store, renderer pageRenderer, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{tokens: ensurer, lister: lister, store: store, renderer: renderer, logger: logger}
}

// Drive handles GET /drive
func (h *ResourceHandler) Drive(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.usableToken(w, r)
	if !ok {
		return
	}

	pageToken := r.URL.Query().Get("pageToken")
	page, err := h.lister.ListFiles(r.Context(), token.OAuth2(), pageToken)
	if err != nil {
		h.logger.Error("list drive files", "error", err)
		renderError(w, h.renderer, h.logger, sess.User, http.StatusBadGateway, "Your Drive files could not be loaded. Please try again later.")
		return
	}

	render(w, h.renderer, h.logger, http.StatusOK, "drive", driveView{
		User:          sess.User,
		Files:         page.Files,
		PageToken:     pageToken,
		NextPageToken: page.NextPageToken,
	})
}

// Contacts handles GET /contact
func (h *ResourceHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.usableToken(w, r)
	if !ok {
		return
	}

	pageToken := r.URL.Query().Get("pageToken")
	page, err := h.lister.ListContacts(r.Context(), token.OAuth2(), pageToken)
	if err != nil {
		h.logger.Error("list contacts", "error", err)
		renderError(w, h.renderer, h.logger, sess.User, http.StatusBadGateway, "Your contacts could not be loaded. Please try again later.")
		return
	}

	render(w, h.renderer, h.logger, http.StatusOK, "contact", contactView{
		User:          sess.User,
		Connections:   page.Connections,
		PageToken:     pageToken,
		NextPageToken: page.NextPageToken,
	})
}

// usableToken returns a token ready for a downstream call. When none is
// available the browser is sent to /login and ok is false. A refreshed token
// is persisted before returning.
func (h *ResourceHandler) usableToken(w http.ResponseWriter, r *http.Request) (*session.Session, *session.Token, bool) {
	sess := SessionFromContext(r.Context())

	token, err := h.tokens.EnsureFresh(r.Context(), sess)
	if err != nil {
		var refreshErr *tokens.RefreshError
		if errors.As(err, &refreshErr) {
			h.logger.Info("token refresh failed, restarting login", "error", refreshErr.Err)
		}
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return nil, nil, false
	}

	if err := persistSession(w, r, h.store, sess); err != nil {
		h.logger.Error("save refreshed session", "error", err)
		renderError(w, h.renderer, h.logger, sess.User, http.StatusInternalServerError, "Your session could not be updated.")
		return nil, nil, false
	}

	return sess, token, true
}
