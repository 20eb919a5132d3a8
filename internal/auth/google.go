package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"drivedesk/internal/session"
)

// Scopes requested from Google: identity plus read-only Drive and Contacts.
var Scopes = []string{
	oidc.ScopeOpenID,
	"profile",
	"email",
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/contacts.readonly",
}

// Values for AuthOptions.Prompt.
const (
	PromptConsent = "consent"
	PromptNone    = "none"
)

var (
	// ErrNoRefreshToken is returned by Refresh when the session never received a refresh token.
	ErrNoRefreshToken = errors.New("auth: no refresh token available")
	// ErrInvalidIDToken is returned by Exchange when the ID token in the response fails verification.
	ErrInvalidIDToken = errors.New("auth: invalid id_token")
)

// AuthOptions tunes the authorization redirect.
type AuthOptions struct {
	Prompt               string
	IncludeGrantedScopes bool
}

// GoogleProvider handles the Google OAuth 2.0 / OIDC flow and token refresh.
type GoogleProvider struct {
	config     *oauth2.Config
	provider   *oidc.Provider
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
}

// NewGoogleProvider discovers the issuer's endpoints and builds a provider.
// httpClient is used for discovery, token and userinfo requests; nil selects http.DefaultClient.
func NewGoogleProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL string, httpClient *http.Client) (*GoogleProvider, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}

	return newGoogleProvider(provider, clientID, clientSecret, redirectURL, httpClient), nil
}

func newGoogleProvider(provider *oidc.Provider, clientID, clientSecret, redirectURL string, httpClient *http.Client) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       Scopes,
		},
		provider:   provider,
		verifier:   provider.Verifier(&oidc.Config{ClientID: clientID}),
		httpClient: httpClient,
	}
}

// AuthURL generates the consent URL with the given state. Offline access is
// always requested so the exchange yields a refresh token.
func (g *GoogleProvider) AuthURL(state string, opts AuthOptions) string {
	params := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if opts.Prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", opts.Prompt))
	}
	if opts.IncludeGrantedScopes {
		params = append(params, oauth2.SetAuthURLParam("include_granted_scopes", "true"))
	}
	return g.config.AuthCodeURL(state, params...)
}

// Exchange trades the authorization code for a token. When the response
// carries an ID token it must verify against the issuer's keys.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = g.clientContext(ctx)

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		if _, err := g.verifier.Verify(ctx, rawIDToken); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
		}
	}

	return token, nil
}

// Refresh obtains a new token from the token endpoint using refreshToken.
func (g *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	src := g.config.TokenSource(g.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}
	return token, nil
}

// profileClaimKeys are the userinfo claims already held in typed Profile
// fields. They are left out of Profile.Claims to keep the session small.
var profileClaimKeys = []string{"sub", "email", "email_verified", "name", "given_name", "family_name", "picture", "locale"}

// UserInfo fetches the userinfo document for token.
func (g *GoogleProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*session.Profile, error) {
	info, err := g.provider.UserInfo(g.clientContext(ctx), oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("userinfo: %w", err)
	}

	var profile session.Profile
	if err := info.Claims(&profile); err != nil {
		return nil, fmt.Errorf("parse userinfo: %w", err)
	}

	var claims map[string]any
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("parse userinfo claims: %w", err)
	}
	for _, key := range profileClaimKeys {
		delete(claims, key)
	}
	if len(claims) > 0 {
		profile.Claims = claims
	}

	if profile.Subject == "" {
		profile.Subject = info.Subject
	}
	return &profile, nil
}

func (g *GoogleProvider) clientContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	return oidc.ClientContext(ctx, g.httpClient)
}

// GenerateState generates a cryptographically secure random state string.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
