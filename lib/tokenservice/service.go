// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tokenservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/bureau-foundation/timeoff/lib/clock"
	"github.com/bureau-foundation/timeoff/lib/session"
)

// ErrCancelled reports an interactive sign-in that the user abandoned or
// that ended without an authorization code.
var ErrCancelled = errors.New("sign-in cancelled")

// DefaultScopes are requested when Config.Scopes is empty.
// offline_access is what makes the provider issue a refresh token.
var DefaultScopes = []string{"openid", "profile", "email", "offline_access"}

// Config configures a Service.
type Config struct {
	ClientID string
	TenantID string
	Scopes   []string

	// Endpoint overrides the Microsoft identity platform endpoint
	// derived from TenantID. Tests point it at an httptest server.
	Endpoint *oauth2.Endpoint

	// Authorizer performs the interactive part of SignIn. Required
	// for SignIn; Refresh works without it.
	Authorizer Authorizer

	// HTTPClient is used for token endpoint calls. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client

	// Clock supplies the issue time for expiry computation. If nil,
	// clock.Real() is used.
	Clock clock.Clock

	// Logger receives sign-in and refresh diagnostics. If nil, a
	// no-op logger is used.
	Logger *slog.Logger
}

// Service issues sessions from the identity provider.
type Service struct {
	clientID   string
	scopes     []string
	endpoint   oauth2.Endpoint
	authorizer Authorizer
	httpClient *http.Client
	clock      clock.Clock
	logger     *slog.Logger
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("tokenservice: ClientID is required")
	}
	var endpoint oauth2.Endpoint
	switch {
	case cfg.Endpoint != nil:
		endpoint = *cfg.Endpoint
	case cfg.TenantID != "":
		endpoint = microsoft.AzureADEndpoint(cfg.TenantID)
	default:
		return nil, fmt.Errorf("tokenservice: TenantID or Endpoint is required")
	}
	// Public client: the client id travels in the form body and there
	// is no secret to send.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Service{
		clientID:   cfg.ClientID,
		scopes:     scopes,
		endpoint:   endpoint,
		authorizer: cfg.Authorizer,
		httpClient: httpClient,
		clock:      clk,
		logger:     logger.With("component", "tokenservice"),
	}, nil
}

func (s *Service) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    s.clientID,
		Endpoint:    s.endpoint,
		RedirectURL: redirectURL,
		Scopes:      s.scopes,
	}
}

func (s *Service) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// SignIn runs the interactive PKCE flow. Returns ErrCancelled (possibly
// wrapped) when the user backs out.
func (s *Service) SignIn(ctx context.Context) (*session.Session, error) {
	if s.authorizer == nil {
		return nil, fmt.Errorf("tokenservice: no Authorizer configured")
	}

	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	grant, err := s.authorizer.Authorize(ctx, AuthorizationRequest{
		State: state,
		URL: func(redirectURL string) string {
			return s.oauthConfig(redirectURL).AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
		},
	})
	if err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			s.logger.Info("sign-in cancelled")
			return nil, fmt.Errorf("tokenservice: %w", ErrCancelled)
		}
		return nil, fmt.Errorf("tokenservice: authorization: %w", err)
	}
	if grant.Code == "" {
		return nil, fmt.Errorf("tokenservice: %w", ErrCancelled)
	}

	token, err := s.oauthConfig(grant.RedirectURL).Exchange(s.withClient(ctx), grant.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("tokenservice: exchanging authorization code: %w", err)
	}
	value, err := s.sessionFrom(token, "")
	if err != nil {
		return nil, err
	}
	s.logger.Info("signed in", "expires_known", value.ExpiresAt != 0)
	return value, nil
}

// Refresh exchanges refreshToken for a new session. When the provider
// does not rotate the refresh token, the previous one is carried
// forward.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("tokenservice: no refresh token")
	}
	source := s.oauthConfig("").TokenSource(s.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("tokenservice: refreshing session: %w", err)
	}
	return s.sessionFrom(token, refreshToken)
}

// sessionFrom maps a token response to a Session, computing ExpiresAt
// from the issue instant.
func (s *Service) sessionFrom(token *oauth2.Token, previousRefresh string) (*session.Session, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("tokenservice: token response has no access token")
	}
	now := s.clock.Now()
	value := &session.Session{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if value.RefreshToken == "" {
		value.RefreshToken = previousRefresh
	}
	if lifetime, ok := s.lifetime(token, now); ok {
		value.ExpiresAt = session.ExpiresAtFrom(now, lifetime)
	} else {
		s.logger.Warn("token response carries no usable lifetime; session will not be refreshed")
	}
	return value, nil
}

// lifetime returns the server-reported token lifetime: expires_in from
// the response, else the access token's exp claim relative to now.
func (s *Service) lifetime(token *oauth2.Token, now time.Time) (time.Duration, bool) {
	if token.ExpiresIn > 0 {
		return time.Duration(token.ExpiresIn) * time.Second, true
	}
	if seconds, ok := expiresInExtra(token.Extra("expires_in")); ok {
		return time.Duration(seconds) * time.Second, true
	}
	if exp, ok := jwtExpiry(token.AccessToken); ok {
		return exp.Sub(now), true
	}
	return 0, false
}

// expiresInExtra accepts the numeric and string encodings seen in the
// wild for expires_in.
func expiresInExtra(raw any) (int64, bool) {
	switch value := raw.(type) {
	case float64:
		return int64(value), value > 0
	case int64:
		return value, value > 0
	case string:
		seconds, err := strconv.ParseInt(value, 10, 64)
		return seconds, err == nil && seconds > 0
	}
	return 0, false
}

// jwtExpiry reads the exp claim of an access token without verifying
// its signature. The token is only ever presented to the API, which
// does verify it; the claim is used for scheduling alone.
func jwtExpiry(accessToken string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
