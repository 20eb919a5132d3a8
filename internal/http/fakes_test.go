package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"drivedesk/internal/auth"
	"drivedesk/internal/config"
	"drivedesk/internal/platform/metrics"
	"drivedesk/internal/session"
	"drivedesk/internal/tokens"
	"drivedesk/internal/web"
	"drivedesk/internal/workspace"
)

const testSessionSecret = "test-session-secret-0123456789abcdef"

type fakeProvider struct {
	authOptions   []auth.AuthOptions
	exchangeCalls int
	exchangeToken *oauth2.Token
	exchangeErr   error
	profile       *session.Profile
	userInfoErr   error
}

func (f *fakeProvider) AuthURL(state string, opts auth.AuthOptions) string {
	f.authOptions = append(f.authOptions, opts)
	return "https://accounts.example.test/o/oauth2/auth?prompt=" + opts.Prompt + "&state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeToken, nil
}

func (f *fakeProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*session.Profile, error) {
	if f.userInfoErr != nil {
		return nil, f.userInfoErr
	}
	return f.profile, nil
}

type fakeRefresher struct {
	calls int
	token *oauth2.Token
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type listCall struct {
	accessToken string
	pageToken   string
}

type fakeResources struct {
	fileCalls    []listCall
	contactCalls []listCall
	files        workspace.FilePage
	contacts     workspace.ContactPage
	err          error
}

func (f *fakeResources) ListFiles(ctx context.Context, token *oauth2.Token, pageToken string) (workspace.FilePage, error) {
	f.fileCalls = append(f.fileCalls, listCall{accessToken: token.AccessToken, pageToken: pageToken})
	if f.err != nil {
		return workspace.FilePage{}, f.err
	}
	return f.files, nil
}

func (f *fakeResources) ListContacts(ctx context.Context, token *oauth2.Token, pageToken string) (workspace.ContactPage, error) {
	f.contactCalls = append(f.contactCalls, listCall{accessToken: token.AccessToken, pageToken: pageToken})
	if f.err != nil {
		return workspace.ContactPage{}, f.err
	}
	return f.contacts, nil
}

type renderCall struct {
	status int
	name   string
	data   any
}

type fakeRenderer struct {
	calls []renderCall
}

func (f *fakeRenderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	f.calls = append(f.calls, renderCall{status: status, name: name, data: data})
	w.WriteHeader(status)
	_, err := io.WriteString(w, name)
	return err
}

func (f *fakeRenderer) last(t *testing.T) renderCall {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("expected a page to be rendered")
	}
	return f.calls[len(f.calls)-1]
}

type testServer struct {
	handler   http.Handler
	store     session.Store
	provider  *fakeProvider
	refresher *fakeRefresher
	resources *fakeResources
	renderer  *fakeRenderer
	metrics   *metrics.Metrics
}

func newTestServer(t *testing.T, silentReauth bool) *testServer {
	t.Helper()
	return newTestServerWithStore(t, silentReauth, session.NewCookieStore(testSessionSecret, session.CookieOptions{TTL: time.Hour}))
}

func newTestServerWithStore(t *testing.T, silentReauth bool, store session.Store) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &testServer{
		store:     store,
		provider:  &fakeProvider{},
		refresher: &fakeRefresher{},
		resources: &fakeResources{},
		renderer:  &fakeRenderer{},
		metrics:   metrics.New(),
	}

	srv.handler = NewRouter(Dependencies{
		Config: config.Config{
			Environment:    "development",
			AllowedOrigins: []string{"http://localhost:8080"},
			SilentReauth:   silentReauth,
		},
		Logger:    logger,
		Store:     srv.store,
		Provider:  srv.provider,
		Tokens:    tokens.NewManager(srv.refresher, tokens.WithObserver(srv.metrics)),
		Resources: srv.resources,
		Renderer:  srv.renderer,
		Static:    web.StaticHandler(""),
		Metrics:   srv.metrics,
	})
	return srv
}

func (s *testServer) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// sessionCookie encodes sess the same way a previous response would have.
func (s *testServer) sessionCookie(t *testing.T, sess *session.Session) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := s.store.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), sess); err != nil {
		t.Fatalf("save session: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one session cookie, got %d", len(cookies))
	}
	return cookies[0]
}

// loadSession decodes the session cookie set on rec, if any.
func (s *testServer) loadSession(t *testing.T, rec *httptest.ResponseRecorder, name string) *session.Session {
	t.Helper()

	cookie := responseCookie(rec, name)
	if cookie == nil {
		return nil
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := s.store.Load(req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return sess
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func freshToken() *session.Token {
	return &session.Token{AccessToken: "access-1", RefreshToken: "refresh-1", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour).Unix()}
}
