package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"powerscore/internal/config"
	"powerscore/internal/store"
)

const (
	// Strava OAuth endpoints
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scopes required for our app (Strava uses comma-separated scopes)
var Scopes = []string{
	"read,activity:read_all",
}

// ErrNotAuthenticated is returned when no tokens have been stored yet
var ErrNotAuthenticated = errors.New("not authenticated, run 'score auth' first")

// NewOAuthConfig creates an oauth2.Config for the given credentials
func NewOAuthConfig(creds config.Credentials, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  AuthURL,
			TokenURL: TokenURL,
		},
		RedirectURL: redirectURL,
		Scopes:      Scopes,
	}
}

// ExtractAthleteID extracts the athlete ID from the token extras
// Strava includes athlete info in the token response
func ExtractAthleteID(token *oauth2.Token) int64 {
	if athlete, ok := token.Extra("athlete").(map[string]any); ok {
		if id, ok := athlete["id"].(float64); ok {
			return int64(id)
		}
	}
	return 0
}

// SaveToken persists a freshly exchanged token
func SaveToken(ctx context.Context, st *store.Store, token *oauth2.Token) error {
	return st.SaveAuth(ctx, &store.Auth{
		AthleteID:    ExtractAthleteID(token),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	})
}

// StoredTokenSource builds a refreshing token source from the stored tokens.
// Refreshed tokens are written back to the store.
func StoredTokenSource(ctx context.Context, st *store.Store, cfg *oauth2.Config) (*TokenSource, error) {
	a, err := st.GetAuth(ctx)
	if errors.Is(err, store.ErrNoAuth) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("loading tokens: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		Expiry:       a.ExpiresAt,
		TokenType:    "Bearer",
	}
	return NewTokenSource(cfg, token, func(t *oauth2.Token) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return st.UpdateTokens(ctx, t.AccessToken, t.RefreshToken, t.Expiry)
	}), nil
}
