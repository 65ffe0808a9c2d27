// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session defines the authenticated session value and the
// profile of the signed-in user, together with the expiry arithmetic
// shared by the token service, the store, and the session controller.
//
// A Session is replaced wholesale on every sign-in or refresh; nothing
// patches one in place. A Session with an empty access token is invalid
// and never persisted.
//
// Expiry uses two margins. When a token is issued, the server-reported
// lifetime is shortened by [IssueMargin] (with a floor of [MinLifetime])
// so the recorded expiry is conservative. When a session is checked,
// [CheckMargin] is subtracted again, so a session counts as expired
// slightly before its recorded expiry and the refresh timer fires while
// the access token is still accepted.
package session
