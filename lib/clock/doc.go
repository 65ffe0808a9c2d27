// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the session
// machinery: reading the current instant for expiry math and arming the
// one-shot refresh timer.
//
// Production code uses Real(). Tests use Fake(), which stands still
// until Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	controller := authstate.New(authstate.Config{Clock: c, ...})
//	c.WaitForTimers(1)          // refresh timer armed
//	c.Advance(10 * time.Minute) // fire it deterministically
package clock
