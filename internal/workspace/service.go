// Package workspace lists the signed-in user's Google Drive files and contacts.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultDriveURL  = "https://www.googleapis.com"
	defaultPeopleURL = "https://people.googleapis.com"

	// FilesPageSize is the number of files requested per page.
	FilesPageSize = 10
	// ContactsPageSize is the number of connections requested per page.
	ContactsPageSize = 15

	filesFields    = "nextPageToken, files(id, name, mimeType, webViewLink)"
	personFields   = "names,emailAddresses,phoneNumbers"
	maxErrorDetail = 512
)

// APIError is returned when a downstream API answers with a non-2xx status.
type APIError struct {
	API        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api returned status %d: %s", e.API, e.StatusCode, e.Body)
}

// UpstreamObserver is notified of every downstream call.
type UpstreamObserver interface {
	ObserveUpstream(api string, status int)
}

// Service calls the Drive and People APIs with a caller-supplied bearer token.
type Service struct {
	client    *http.Client
	driveURL  string
	peopleURL string
	observer  UpstreamObserver
}

// Option configures the Service during construction.
type Option func(*Service)

// WithDriveURL overrides the base URL for Drive requests.
func WithDriveURL(baseURL string) Option {
	return func(s *Service) {
		s.driveURL = strings.TrimRight(baseURL, "/")
	}
}

// WithPeopleURL overrides the base URL for People requests.
func WithPeopleURL(baseURL string) Option {
	return func(s *Service) {
		s.peopleURL = strings.TrimRight(baseURL, "/")
	}
}

// WithObserver reports downstream call outcomes to o.
func WithObserver(o UpstreamObserver) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// NewService constructs a Service.
func NewService(client *http.Client, opts ...Option) *Service {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	svc := &Service{
		client:    client,
		driveURL:  defaultDriveURL,
		peopleURL: defaultPeopleURL,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// ListFiles returns one page of the user's Drive files. pageToken is passed through unmodified.
func (s *Service) ListFiles(ctx context.Context, token *oauth2.Token, pageToken string) (FilePage, error) {
	values := url.Values{}
	values.Set("pageSize", strconv.Itoa(FilesPageSize))
	values.Set("fields", filesFields)
	if pageToken != "" {
		values.Set("pageToken", pageToken)
	}

	var page FilePage
	if err := s.get(ctx, "drive", s.driveURL+"/drive/v3/files", values, token, &page); err != nil {
		return FilePage{}, err
	}
	if page.Files == nil {
		page.Files = []File{}
	}
	return page, nil
}

// ListContacts returns one page of the user's connections. pageToken is passed through unmodified.
func (s *Service) ListContacts(ctx context.Context, token *oauth2.Token, pageToken string) (ContactPage, error) {
	values := url.Values{}
	values.Set("personFields", personFields)
	values.Set("pageSize", strconv.Itoa(ContactsPageSize))
	if pageToken != "" {
		values.Set("pageToken", pageToken)
	}

	var page ContactPage
	if err := s.get(ctx, "people", s.peopleURL+"/v1/people/me/connections", values, token, &page); err != nil {
		return ContactPage{}, err
	}
	if page.Connections == nil {
		page.Connections = []Person{}
	}
	return page, nil
}

func (s *Service) get(ctx context.Context, api, rawURL string, values url.Values, token *oauth2.Token, dst any) error {
	if token == nil || token.AccessToken == "" {
		return errors.New("workspace: missing access token")
	}

	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("build %s url: %w", api, err)
	}
	endpoint.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", api, err)
	}
	req.Header.Set("Accept", "application/json")

	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, s.client), oauth2.StaticTokenSource(token))

	resp, err := client.Do(req)
	if err != nil {
		s.observe(api, 0)
		return fmt.Errorf("call %s api: %w", api, err)
	}
	defer resp.Body.Close()
	s.observe(api, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		return &APIError{API: api, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", api, err)
	}
	return nil
}

func (s *Service) observe(api string, status int) {
	if s.observer != nil {
		s.observer.ObserveUpstream(api, status)
	}
}
