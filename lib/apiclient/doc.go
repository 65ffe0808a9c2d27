// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package apiclient is the HTTP transport to the time-off backend.
//
// Every request carries the access token currently held by the session
// store as a bearer credential, read fresh on each call. A 401 response
// means the backend no longer accepts that token: the client clears the
// store, fires the [UnauthorizedNotifier] so the session controller can
// tear down its in-memory state, and only then returns the error.
//
// The notifier is an explicit dependency handed to [New] and to the
// session controller, not a package-level hook.
package apiclient
