// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"strings"
	"time"
)

const (
	// IssueMargin is subtracted from the server-reported lifetime when
	// computing ExpiresAt.
	IssueMargin = 60 * time.Second

	// MinLifetime is the floor applied to the shortened lifetime.
	MinLifetime = 30 * time.Second

	// CheckMargin is the look-ahead used by IsExpired and RefreshDelay.
	CheckMargin = 30 * time.Second
)

// ErrNoAccessToken reports a Session without an access token.
var ErrNoAccessToken = errors.New("session has no access token")

// Session is the credential bundle of an authenticated user. The JSON
// form is the persisted layout:
//
//	{"accessToken": "...", "refreshToken": "...", "expiresAt": 1767225600000}
//
// ExpiresAt is epoch milliseconds; zero means unknown, and a session
// with unknown expiry never counts as expired.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt,omitempty"`
}

// Validate reports whether the session may be persisted or exposed as
// authenticated.
func (s Session) Validate() error {
	if strings.TrimSpace(s.AccessToken) == "" {
		return ErrNoAccessToken
	}
	return nil
}

// HasRefreshToken reports whether a silent refresh can be attempted.
func (s Session) HasRefreshToken() bool { return s.RefreshToken != "" }

// Expiry returns ExpiresAt as a time. ok is false when the expiry is
// unknown.
func (s Session) Expiry() (expiry time.Time, ok bool) {
	if s.ExpiresAt == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(s.ExpiresAt), true
}

// IsExpired reports whether now is within CheckMargin of the expiry
// (or past it). Always false when the expiry is unknown.
func (s Session) IsExpired(now time.Time) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return now.UnixMilli() >= s.ExpiresAt-CheckMargin.Milliseconds()
}

// RefreshDelay returns how long to wait before refreshing: the time
// until ExpiresAt minus CheckMargin, clamped at zero. ok is false when
// the expiry is unknown and no refresh should be scheduled.
func (s Session) RefreshDelay(now time.Time) (delay time.Duration, ok bool) {
	if s.ExpiresAt == 0 {
		return 0, false
	}
	remaining := time.Duration(s.ExpiresAt-now.UnixMilli())*time.Millisecond - CheckMargin
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Redacted returns a copy safe to log: tokens are replaced by their
// length.
func (s Session) Redacted() map[string]any {
	fields := map[string]any{
		"access_token_len":  len(s.AccessToken),
		"has_refresh_token": s.HasRefreshToken(),
	}
	if expiry, ok := s.Expiry(); ok {
		fields["expires_at"] = expiry.UTC().Format(time.RFC3339)
	}
	return fields
}

// ExpiresAtFrom computes the epoch-millisecond expiry for a token issued
// at now with the given server-reported lifetime:
// now + max(lifetime - IssueMargin, MinLifetime).
func ExpiresAtFrom(now time.Time, lifetime time.Duration) int64 {
	effective := lifetime - IssueMargin
	if effective < MinLifetime {
		effective = MinLifetime
	}
	return now.Add(effective).UnixMilli()
}
