// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package routeguard keeps the visible screen consistent with the
// authentication state: signed-out users are sent to the login screen,
// signed-in users are moved off it. No decision is made until the
// state has settled, so a session being restored or a profile being
// fetched never causes a flash of the wrong screen.
package routeguard
