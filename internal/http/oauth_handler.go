package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"drivedesk/internal/auth"
	"drivedesk/internal/session"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthStateCookiePath = "/auth"
	oauthStateCookieTTL  = 10 * time.Minute

	consentCookieName = "google_consented"
	consentCookieTTL  = 365 * 24 * time.Hour

	forceLoginHint = "Sign in again at /login?force=1."
)

type identityProvider interface {
	AuthURL(state string, opts auth.AuthOptions) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, token *oauth2.Token) (*session.Profile, error)
}

// OAuthHandler drives the authorization code flow against the identity provider.
type OAuthHandler struct {
	provider     identityProvider
	store        session.Store
	logger       *slog.Logger
	secureCookie bool
	silentReauth bool
	now          func() time.Time
}

// NewOAuthHandler creates a new OAuthHandler. With silentReauth enabled,
// returning users are sent through prompt=none and a consent cookie is kept.
func NewOAuthHandler(provider identityProvider, store session.Store, env string, silentReauth bool, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		provider:     provider,
		store:        store,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
		silentReauth: silentReauth,
		now:          time.Now,
	}
}

// Login handles GET /login
// Redirects the browser to the provider's authorization endpoint.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		h.logger.Error("failed to generate state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     oauthStateCookiePath,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateCookieTTL.Seconds()),
	})

	opts := h.authOptions(r, SessionFromContext(r.Context()))
	h.logger.Debug("starting authorization", "prompt", opts.Prompt)

	http.Redirect(w, r, h.provider.AuthURL(state, opts), http.StatusTemporaryRedirect)
}

func (h *OAuthHandler) authOptions(r *http.Request, sess *session.Session) auth.AuthOptions {
	consent := auth.AuthOptions{Prompt: auth.PromptConsent}
	if !h.silentReauth || forceRequested(r.URL.Query()) {
		return consent
	}

	if !hasConsentCookie(r) && sess.Token == nil {
		return consent
	}
	return auth.AuthOptions{Prompt: auth.PromptNone, IncludeGrantedScopes: true}
}

func forceRequested(query url.Values) bool {
	if !query.Has("force") {
		return false
	}
	value := strings.TrimSpace(query.Get("force"))
	return value != "0" && !strings.EqualFold(value, "false")
}

func hasConsentCookie(r *http.Request) bool {
	cookie, err := r.Cookie(consentCookieName)
	return err == nil && cookie.Value != ""
}

// Callback handles GET /auth/callback
// Exchanges the authorization code, loads the profile and stores both in the session.
// Failures are answered with a JSON error body and leave the session untouched.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("oauth callback: missing state cookie")
		writeOAuthError(w, http.StatusBadRequest, "invalid_state", "The sign-in attempt expired. Please try again.")
		return
	}
	if subtle.ConstantTimeCompare([]byte(query.Get("state")), []byte(stateCookie.Value)) != 1 {
		h.logger.Warn("oauth callback: state mismatch")
		writeOAuthError(w, http.StatusBadRequest, "invalid_state", "The sign-in attempt could not be verified. Please try again.")
		return
	}

	h.clearStateCookie(w)

	if errParam := query.Get("error"); errParam != "" {
		description := query.Get("error_description")
		h.logger.Warn("oauth callback: provider error", "error", errParam, "description", description)
		if interactionRequired(errParam) {
			description = strings.TrimSpace(description + " " + forceLoginHint)
		}
		writeOAuthError(w, http.StatusBadRequest, errParam, description)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Missing authorization code.")
		return
	}

	token, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.writeExchangeError(w, err)
		return
	}

	profile, err := h.provider.UserInfo(r.Context(), token)
	if err != nil {
		h.logger.Error("oauth callback: userinfo failed", "error", err)
		writeOAuthError(w, http.StatusBadGateway, "userinfo_failed", "Failed to load your profile.")
		return
	}

	sess := SessionFromContext(r.Context())
	sess.SetToken(session.NewToken(token, h.now()))
	sess.SetUser(profile)
	if err := h.store.Renew(w, r, sess); err != nil {
		h.logger.Error("oauth callback: save session failed", "error", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "Failed to store the session.")
		return
	}

	if h.silentReauth {
		http.SetCookie(w, &http.Cookie{
			Name:     consentCookieName,
			Value:    "true",
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(consentCookieTTL.Seconds()),
		})
	}

	h.logger.Info("oauth login successful", "subject", profile.Subject, "email", profile.Email)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// interactionRequired reports whether a prompt=none attempt failed because
// the provider needs to show the user a page.
func interactionRequired(code string) bool {
	switch code {
	case "login_required", "interaction_required", "consent_required", "account_selection_required":
		return true
	}
	return false
}

func (h *OAuthHandler) writeExchangeError(w http.ResponseWriter, err error) {
	var retrieveErr *oauth2.RetrieveError

	switch {
	case errors.Is(err, auth.ErrInvalidIDToken):
		h.logger.Warn("oauth callback: id token rejected", "error", err)
		writeOAuthError(w, http.StatusBadRequest, "invalid_id_token", "The identity token could not be verified.")
	case errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "":
		h.logger.Warn("oauth callback: exchange rejected", "error", retrieveErr.ErrorCode, "description", retrieveErr.ErrorDescription)
		writeOAuthError(w, http.StatusBadRequest, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
	default:
		h.logger.Error("oauth callback: exchange failed", "error", err)
		writeOAuthError(w, http.StatusBadGateway, "exchange_failed", "Failed to complete authentication.")
	}
}

func (h *OAuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     oauthStateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})
}

// Logout handles GET /logout
// Clears the session unconditionally. The consent cookie is kept so the next
// login can be silent.
func (h *OAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if err := h.store.Clear(w, r, sess); err != nil {
		h.logger.Error("logout: clear session failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}
