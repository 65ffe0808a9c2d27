// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package routeguard

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/timeoff/lib/authstate"
)

// Screen identifies a top-level screen.
type Screen string

const (
	ScreenLogin    Screen = "login"
	ScreenHome     Screen = "home"
	ScreenSent     Screen = "sent"
	ScreenReceived Screen = "received"
)

// Public reports whether the screen is reachable without a session.
func (s Screen) Public() bool { return s == ScreenLogin }

// Decide returns the screen to switch to for the given state, or
// redirect=false when the current screen is acceptable.
func Decide(state authstate.State, tokenPresent bool, current Screen) (target Screen, redirect bool) {
	switch state {
	case authstate.StateInitializing, authstate.StateRefreshing, authstate.StateAuthenticatedProfileLoading:
		return current, false
	}
	switch {
	case !tokenPresent && !current.Public():
		return ScreenLogin, true
	case tokenPresent && current == ScreenLogin:
		return ScreenHome, true
	}
	return current, false
}

// Navigator is the screen stack the guard drives.
type Navigator interface {
	Current() Screen
	Replace(Screen)
}

// Source is the subset of *authstate.Controller the guard observes.
type Source interface {
	Snapshot() authstate.Snapshot
	Subscribe(func(authstate.Snapshot)) (cancel func())
}

// Guard applies Decide to every state change of a Source.
type Guard struct {
	navigator Navigator
	logger    *slog.Logger

	mu     sync.Mutex
	cancel func()
}

// New attaches a guard to source and evaluates the current state once.
// A nil logger discards.
func New(source Source, navigator Navigator, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Guard{navigator: navigator, logger: logger.With("component", "routeguard")}
	cancel := source.Subscribe(g.Evaluate)
	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()
	g.Evaluate(source.Snapshot())
	return g
}

// Evaluate applies one snapshot. Redirecting to the current screen is a
// no-op.
func (g *Guard) Evaluate(snapshot authstate.Snapshot) {
	current := g.navigator.Current()
	target, redirect := Decide(snapshot.State, snapshot.Authenticated(), current)
	if !redirect || target == current {
		return
	}
	g.logger.Debug("redirecting", "from", string(current), "to", string(target), "state", snapshot.State.String())
	g.navigator.Replace(target)
}

// Stop detaches the guard.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}
