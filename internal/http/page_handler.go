package http

import (
	"log/slog"
	"net/http"

	"drivedesk/internal/session"
	"drivedesk/internal/workspace"
)

type pageRenderer interface {
	Render(w http.ResponseWriter, status int, name string, data any) error
}

type pageView struct {
	User *session.Profile
}

type driveView struct {
	User          *session.Profile
	Files         []workspace.File
	PageToken     string
	NextPageToken string
}

type contactView struct {
	User          *session.Profile
	Connections   []workspace.Person
	PageToken     string
	NextPageToken string
}

type errorView struct {
	User       *session.Profile
	Status     int
	StatusText string
	Message    string
}

// PageHandler serves the pages that only need the session.
type PageHandler struct {
	renderer pageRenderer
	logger   *slog.Logger
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(renderer pageRenderer, logger *slog.Logger) *PageHandler {
	return &PageHandler{renderer: renderer, logger: logger}
}

// Home renders the landing page, greeting the user when signed in.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	render(w, h.renderer, h.logger, http.StatusOK, "index", pageView{User: sess.User})
}

// Profile renders the signed-in user's profile, or sends anonymous visitors home.
func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess.User == nil {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	render(w, h.renderer, h.logger, http.StatusOK, "profile", pageView{User: sess.User})
}

func render(w http.ResponseWriter, renderer pageRenderer, logger *slog.Logger, status int, name string, data any) {
	if err := renderer.Render(w, status, name, data); err != nil {
		logger.Error("render page", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func renderError(w http.ResponseWriter, renderer pageRenderer, logger *slog.Logger, user *session.Profile, status int, message string) {
	render(w, renderer, logger, status, "error", errorView{
		User:       user,
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    message,
	})
}
