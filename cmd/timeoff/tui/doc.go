// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui is the interactive terminal front end of timeoff.
//
// [Model] is a bubbletea model with two kinds of screen: the sign-in
// screen and the request lists (sent and received). The model
// implements [routeguard.Navigator], and a route guard attached to the
// session controller makes every auth-driven screen switch; the model
// itself only moves between the two lists.
//
// State from the controller and the list reconcilers reaches the model
// as messages ([SnapshotMsg], [ListMsg], [NoticeMsg]) delivered with
// tea.Program.Send from the goroutine that caused the change. Session
// and list operations run in tea.Cmd goroutines, never in Update, so a
// listener that calls Send can never deadlock the event loop.
package tui
