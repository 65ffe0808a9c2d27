// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for timeoff packages.
//
// [RequireReceive], [RequireNoReceive], and [RequireClosed] encapsulate
// the timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Session
// timers themselves are driven by clock.Fake; these helpers only bound
// how long a test waits for a goroutine to report back.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation (access tokens, request ids).
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
