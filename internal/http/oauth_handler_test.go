package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"drivedesk/internal/auth"
	"drivedesk/internal/session"
)

const testSessionCookie = "drivedesk_session"

func consentCookie() *http.Cookie {
	return &http.Cookie{Name: consentCookieName, Value: "true"}
}

func stateCookie(value string) *http.Cookie {
	return &http.Cookie{Name: oauthStateCookieName, Value: value}
}

func decodeOAuthError(t *testing.T, rec *httptest.ResponseRecorder) oauthError {
	t.Helper()

	var body oauthError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body, got %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestLoginSetsStateCookieAndRedirects(t *testing.T) {
	srv := newTestServer(t, true)

	rec := srv.get("/login")

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected status 307, got %d", rec.Code)
	}
	cookie := responseCookie(rec, oauthStateCookieName)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("expected state cookie to be set")
	}
	if cookie.Path != "/auth" || !cookie.HttpOnly {
		t.Fatalf("unexpected state cookie attributes %+v", cookie)
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if location.Query().Get("state") != cookie.Value {
		t.Fatalf("expected redirect state to match cookie, got %q", location.Query().Get("state"))
	}
}

func TestLoginPromptSelection(t *testing.T) {
	tests := []struct {
		name          string
		silentReauth  bool
		target        string
		consentCookie bool
		sessionToken  bool
		wantPrompt    string
	}{
		{name: "force overrides consent cookie and token", silentReauth: true, target: "/login?force=1", consentCookie: true, sessionToken: true, wantPrompt: auth.PromptConsent},
		{name: "empty force value still forces", silentReauth: true, target: "/login?force", consentCookie: true, wantPrompt: auth.PromptConsent},
		{name: "consent cookie without token is silent", silentReauth: true, target: "/login", consentCookie: true, wantPrompt: auth.PromptNone},
		{name: "session token without consent cookie is silent", silentReauth: true, target: "/login", sessionToken: true, wantPrompt: auth.PromptNone},
		{name: "first visit asks for consent", silentReauth: true, target: "/login", wantPrompt: auth.PromptConsent},
		{name: "force=0 is ignored", silentReauth: true, target: "/login?force=0", consentCookie: true, wantPrompt: auth.PromptNone},
		{name: "force=false is ignored", silentReauth: true, target: "/login?force=false", consentCookie: true, wantPrompt: auth.PromptNone},
		{name: "silent reauth disabled always asks", silentReauth: false, target: "/login", consentCookie: true, sessionToken: true, wantPrompt: auth.PromptConsent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.silentReauth)

			var cookies []*http.Cookie
			if tt.consentCookie {
				cookies = append(cookies, consentCookie())
			}
			if tt.sessionToken {
				cookies = append(cookies, srv.sessionCookie(t, &session.Session{Token: freshToken()}))
			}

			rec := srv.get(tt.target, cookies...)

			if rec.Code != http.StatusTemporaryRedirect {
				t.Fatalf("expected status 307, got %d", rec.Code)
			}
			if len(srv.provider.authOptions) != 1 {
				t.Fatalf("expected one auth URL, got %d", len(srv.provider.authOptions))
			}
			opts := srv.provider.authOptions[0]
			if opts.Prompt != tt.wantPrompt {
				t.Fatalf("expected prompt %q, got %q", tt.wantPrompt, opts.Prompt)
			}
			if wantGranted := tt.wantPrompt == auth.PromptNone; opts.IncludeGrantedScopes != wantGranted {
				t.Fatalf("expected include_granted_scopes=%v, got %v", wantGranted, opts.IncludeGrantedScopes)
			}
		})
	}
}

func TestCallbackRejectsMissingStateCookie(t *testing.T) {
	srv := newTestServer(t, true)

	rec := srv.get("/auth/callback?state=abc&code=code-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeOAuthError(t, rec); body.Error != "invalid_state" {
		t.Fatalf("expected invalid_state, got %q", body.Error)
	}
	if srv.provider.exchangeCalls != 0 {
		t.Fatal("expected no code exchange")
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	srv := newTestServer(t, true)

	rec := srv.get("/auth/callback?state=other&code=code-1", stateCookie("expected"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeOAuthError(t, rec); body.Error != "invalid_state" {
		t.Fatalf("expected invalid_state, got %q", body.Error)
	}
	if srv.provider.exchangeCalls != 0 {
		t.Fatal("expected no code exchange")
	}
}

func TestCallbackProviderErrorWritesNothingToSession(t *testing.T) {
	srv := newTestServer(t, true)

	rec := srv.get("/auth/callback?state=s1&error=access_denied&error_description=User+denied+access", stateCookie("s1"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	body := decodeOAuthError(t, rec)
	if body.Error != "access_denied" || body.Description != "User denied access" {
		t.Fatalf("unexpected error body %+v", body)
	}
	if srv.provider.exchangeCalls != 0 {
		t.Fatal("expected no code exchange")
	}
	if responseCookie(rec, testSessionCookie) != nil {
		t.Fatal("expected no session cookie to be written")
	}
	if responseCookie(rec, consentCookieName) != nil {
		t.Fatal("expected no consent cookie to be written")
	}
}

func TestCallbackSilentLoginFailurePointsToForcedLogin(t *testing.T) {
	for _, code := range []string{"login_required", "interaction_required", "consent_required"} {
		t.Run(code, func(t *testing.T) {
			srv := newTestServer(t, true)

			rec := srv.get("/auth/callback?state=s1&error="+code, stateCookie("s1"))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			body := decodeOAuthError(t, rec)
			if body.Error != code {
				t.Fatalf("expected %q, got %q", code, body.Error)
			}
			if !strings.Contains(body.Description, "/login?force=1") {
				t.Fatalf("expected forced login hint, got %q", body.Description)
			}
			if responseCookie(rec, testSessionCookie) != nil {
				t.Fatal("expected no session cookie to be written")
			}
		})
	}
}

func TestCallbackRequiresCode(t *testing.T) {
	srv := newTestServer(t, true)

	rec := srv.get("/auth/callback?state=s1", stateCookie("s1"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if body := decodeOAuthError(t, rec); body.Error != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", body.Error)
	}
}

func TestCallbackExchangeFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "oauth error response",
			err:        fmt.Errorf("token exchange: %w", &oauth2.RetrieveError{ErrorCode: "invalid_grant", ErrorDescription: "Bad Request"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_grant",
		},
		{
			name:       "unverifiable id token",
			err:        fmt.Errorf("%w: bad signature", auth.ErrInvalidIDToken),
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_id_token",
		},
		{
			name:       "transport failure",
			err:        errors.New("dial tcp: connection refused"),
			wantStatus: http.StatusBadGateway,
			wantCode:   "exchange_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, true)
			srv.provider.exchangeErr = tt.err

			rec := srv.get("/auth/callback?state=s1&code=code-1", stateCookie("s1"))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if body := decodeOAuthError(t, rec); body.Error != tt.wantCode {
				t.Fatalf("expected %q, got %q", tt.wantCode, body.Error)
			}
			if responseCookie(rec, testSessionCookie) != nil {
				t.Fatal("expected no session cookie to be written")
			}
		})
	}
}

func TestCallbackUserInfoFailure(t *testing.T) {
	srv := newTestServer(t, true)
	srv.provider.exchangeToken = &oauth2.Token{AccessToken: "access-1", ExpiresIn: 3600}
	srv.provider.userInfoErr = errors.New("userinfo: 500 Internal Server Error")

	rec := srv.get("/auth/callback?state=s1&code=code-1", stateCookie("s1"))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
	if body := decodeOAuthError(t, rec); body.Error != "userinfo_failed" {
		t.Fatalf("expected userinfo_failed, got %q", body.Error)
	}
	if responseCookie(rec, testSessionCookie) != nil {
		t.Fatal("expected no session cookie to be written")
	}
}

func TestCallbackSuccessStoresTokenAndUser(t *testing.T) {
	srv := newTestServer(t, true)
	srv.provider.exchangeToken = &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "Bearer", ExpiresIn: 3600}
	srv.provider.profile = &session.Profile{Subject: "1234", Email: "ada@example.com", Name: "Ada Lovelace"}

	rec := srv.get("/auth/callback?state=s1&code=code-1", stateCookie("s1"))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected status 307, got %d", rec.Code)
	}
	if location := rec.Header().Get("Location"); location != "/" {
		t.Fatalf("expected redirect to /, got %q", location)
	}

	sess := srv.loadSession(t, rec, testSessionCookie)
	if sess == nil || sess.Token == nil || sess.User == nil {
		t.Fatalf("expected token and user in session, got %+v", sess)
	}
	if sess.Token.AccessToken != "access-1" || sess.Token.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected stored token %+v", sess.Token)
	}
	if sess.Token.ExpiresAt == 0 {
		t.Fatal("expected expiry to be computed when storing the token")
	}
	if sess.User.Email != "ada@example.com" {
		t.Fatalf("unexpected stored user %+v", sess.User)
	}

	consent := responseCookie(rec, consentCookieName)
	if consent == nil || consent.Value != "true" || !consent.HttpOnly || consent.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected consent cookie, got %+v", consent)
	}
	if consent.MaxAge != int(consentCookieTTL.Seconds()) {
		t.Fatalf("expected one year consent cookie, got max-age %d", consent.MaxAge)
	}

	state := responseCookie(rec, oauthStateCookieName)
	if state == nil || state.MaxAge >= 0 {
		t.Fatalf("expected state cookie to be cleared, got %+v", state)
	}
}

func TestCallbackIssuesNewServerSessionID(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := session.NewServerStore(session.NewRedisBackend(client, ""), session.CookieOptions{TTL: time.Hour})

	srv := newTestServerWithStore(t, true, store)
	srv.provider.exchangeToken = &oauth2.Token{AccessToken: "access-victim", RefreshToken: "refresh-victim", ExpiresIn: 3600}
	srv.provider.profile = &session.Profile{Subject: "victim"}
	planted := srv.sessionCookie(t, &session.Session{User: &session.Profile{Subject: "attacker"}})

	rec := srv.get("/auth/callback?state=s1&code=code-1", stateCookie("s1"), planted)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected status 307, got %d", rec.Code)
	}
	issued := responseCookie(rec, testSessionCookie)
	if issued == nil || issued.Value == "" {
		t.Fatal("expected a session cookie after login")
	}
	if issued.Value == planted.Value {
		t.Fatalf("expected a new session id, got the pre-login one %q", issued.Value)
	}

	sess := srv.loadSession(t, rec, testSessionCookie)
	if sess == nil || sess.User == nil || sess.User.Subject != "victim" || sess.Token.AccessToken != "access-victim" {
		t.Fatalf("unexpected session after login %+v", sess)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(planted)
	old, err := store.Load(req)
	if err != nil {
		t.Fatalf("load pre-login session: %v", err)
	}
	if !old.Empty() {
		t.Fatalf("expected pre-login session to be gone, got %+v", old)
	}
}

func TestCallbackWithoutSilentReauthSkipsConsentCookie(t *testing.T) {
	srv := newTestServer(t, false)
	srv.provider.exchangeToken = &oauth2.Token{AccessToken: "access-1", ExpiresIn: 3600}
	srv.provider.profile = &session.Profile{Subject: "1234"}

	rec := srv.get("/auth/callback?state=s1&code=code-1", stateCookie("s1"))

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected status 307, got %d", rec.Code)
	}
	if responseCookie(rec, consentCookieName) != nil {
		t.Fatal("did not expect consent cookie")
	}
}

func TestLogoutThenProfileRedirectsHome(t *testing.T) {
	srv := newTestServer(t, true)
	cookie := srv.sessionCookie(t, &session.Session{Token: freshToken(), User: &session.Profile{Subject: "1234", Name: "Ada"}})

	rec := srv.get("/profile", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected profile page, got %d", rec.Code)
	}

	rec = srv.get("/logout", cookie, consentCookie())
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	cleared := responseCookie(rec, testSessionCookie)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected session cookie to be expired, got %+v", cleared)
	}
	if responseCookie(rec, consentCookieName) != nil {
		t.Fatal("expected consent cookie to be left alone")
	}

	rec = srv.get("/profile")
	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	srv := newTestServer(t, true)

	rec := srv.get("/logout")

	if rec.Code != http.StatusTemporaryRedirect || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}
