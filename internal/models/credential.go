package models

import (
	"time"

	"golang.org/x/oauth2"
)

// OAuthCredential is an issued token pair. RefreshToken may be empty.
type OAuthCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExpiresAtEpochMs is ExpiresAt in Unix milliseconds.
func (c OAuthCredential) ExpiresAtEpochMs() int64 {
	return c.ExpiresAt.UnixMilli()
}

// Expired reports whether the credential is past its expiry at now.
func (c OAuthCredential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Token converts the credential for use with [oauth2] clients.
func (c OAuthCredential) Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    tokenType,
		Expiry:       c.ExpiresAt,
	}
}
