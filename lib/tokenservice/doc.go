// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tokenservice turns identity-provider grants into sessions.
//
// [Service.SignIn] runs the interactive authorization-code flow with
// PKCE: it generates a verifier and a state value, asks an [Authorizer]
// to obtain the user's consent, and exchanges the returned code.
// [Service.Refresh] exchanges a refresh token for a new session.
//
// Protocol details (URL construction, token endpoint encoding, error
// responses) are delegated to golang.org/x/oauth2; this package owns
// only the expiry arithmetic and the mapping to [session.Session].
//
// Neither operation retries. A user-cancelled sign-in returns
// [ErrCancelled]; every other failure is returned wrapped, and callers
// treat any error as "no session".
package tokenservice
