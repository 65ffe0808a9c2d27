// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package authstate owns the in-memory authentication state: the
// current session, the signed-in user, and the single pending silent
// refresh.
//
// A Controller moves between explicit states:
//
//	Initializing ──Start──▶ Unauthenticated
//	     │                        │ SignIn
//	     ▼                        ▼
//	Refreshing ─────────▶ AuthenticatedProfileLoading ──▶ AuthenticatedReady
//
// Every transition that installs or removes a session ("adoption" and
// "teardown") bumps a generation counter. Asynchronous work (the
// scheduled refresh, a profile fetch) records the generation it started
// under and drops its result when the generation has moved on, so a
// refresh completing after a sign-out or a 401 never resurrects the
// session.
//
// Persisted state and memory change together: every transition holds
// one transition lock across the store write and the memory update.
// Network calls never run under it.
//
// The controller registers itself with an
// [apiclient.UnauthorizedNotifier] at construction. When the transport
// sees a 401 it clears the store and notifies; the controller tears
// down memory and emits a notice.
package authstate
