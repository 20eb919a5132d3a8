package session

import (
	"time"

	"golang.org/x/oauth2"
)

// Token is the access/refresh token pair kept for the lifetime of a browser session.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	// ExpiresAt is unix seconds. Zero means unknown and is treated as expired.
	ExpiresAt int64  `json:"expires_at"`
	Scope     string `json:"scope,omitempty"`
}

// NewToken converts a token issued by the provider, computing ExpiresAt
// relative to now. ExpiresIn wins over the client library's expiry so the
// stored value is always derived from the moment the token was received.
func NewToken(t *oauth2.Token, now time.Time) *Token {
	if t == nil {
		return nil
	}

	tok := &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}

	switch {
	case t.ExpiresIn > 0:
		tok.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).Unix()
	case !t.Expiry.IsZero():
		tok.ExpiresAt = t.Expiry.Unix()
	}

	if scope, ok := t.Extra("scope").(string); ok {
		tok.Scope = scope
	}
	return tok
}

// Expired reports whether the token can no longer be used at now.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt <= now.Unix()
}

// OAuth2 returns the token in the form expected by oauth2 HTTP clients.
func (t *Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if t.ExpiresAt > 0 {
		tok.Expiry = time.Unix(t.ExpiresAt, 0)
	}
	return tok
}

// Profile is the userinfo document returned by the identity provider.
type Profile struct {
	Subject       string         `json:"sub"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"email_verified,omitempty"`
	Name          string         `json:"name,omitempty"`
	GivenName     string         `json:"given_name,omitempty"`
	FamilyName    string         `json:"family_name,omitempty"`
	Picture       string         `json:"picture,omitempty"`
	Locale        string         `json:"locale,omitempty"`
	Claims        map[string]any `json:"claims,omitempty"`
}

// Session holds everything a browser session knows about its user.
type Session struct {
	Token *Token   `json:"token,omitempty"`
	User  *Profile `json:"user,omitempty"`

	id       string
	modified bool
}

// ID is the server-side identifier, empty for sessions that live entirely in a cookie.
func (s *Session) ID() string {
	return s.id
}

// SetToken replaces the stored token.
func (s *Session) SetToken(t *Token) {
	s.Token = t
	s.modified = true
}

// SetUser replaces the stored profile.
func (s *Session) SetUser(p *Profile) {
	s.User = p
	s.modified = true
}

// Clear drops all session state.
func (s *Session) Clear() {
	s.Token = nil
	s.User = nil
	s.modified = true
}

// Modified reports whether the session changed since it was loaded.
func (s *Session) Modified() bool {
	return s.modified
}

// Empty reports whether the session carries no state.
func (s *Session) Empty() bool {
	return s.Token == nil && s.User == nil
}
