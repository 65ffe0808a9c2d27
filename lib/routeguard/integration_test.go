// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package routeguard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/timeoff/lib/apiclient"
	"github.com/bureau-foundation/timeoff/lib/authstate"
	"github.com/bureau-foundation/timeoff/lib/clock"
	"github.com/bureau-foundation/timeoff/lib/securestore"
	"github.com/bureau-foundation/timeoff/lib/session"
	"github.com/bureau-foundation/timeoff/lib/testutil"
)

type stubTokens struct{}

func (stubTokens) SignIn(context.Context) (*session.Session, error) {
	return nil, errors.New("not interactive")
}

func (stubTokens) Refresh(context.Context, string) (*session.Session, error) {
	return nil, errors.New("invalid_grant")
}

type stubProfiles struct{}

func (stubProfiles) FetchProfile(context.Context) (*session.User, error) {
	return &session.User{ID: 1, Name: "Ada", Role: session.RoleAdmin}, nil
}

// channelNavigator is safe for use from the controller's goroutines and
// reports every replacement.
type channelNavigator struct {
	mu       sync.Mutex
	current  Screen
	replaced chan Screen
}

func (n *channelNavigator) Current() Screen {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *channelNavigator) Replace(screen Screen) {
	n.mu.Lock()
	n.current = screen
	n.mu.Unlock()
	n.replaced <- screen
}

func TestUnauthorizedRedirectsToLogin(t *testing.T) {
	t.Parallel()
	store := securestore.NewMemory()
	fake := clock.Fake(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	if err := store.Set(context.Background(), session.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    fake.Now().Add(time.Hour).UnixMilli(),
	}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	notifier := apiclient.NewUnauthorizedNotifier()
	controller, err := authstate.New(authstate.Config{
		Store:    store,
		Tokens:   stubTokens{},
		Profiles: stubProfiles{},
		Notifier: notifier,
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("authstate.New: %v", err)
	}
	defer controller.Close()

	navigator := &channelNavigator{current: ScreenLogin, replaced: make(chan Screen, 8)}
	guard := New(controller, navigator, nil)
	defer guard.Stop()

	controller.Start(context.Background())
	if got := testutil.RequireReceive(t, navigator.replaced, 5*time.Second, "redirect to home"); got != ScreenHome {
		t.Fatalf("first redirect = %s, want home", got)
	}

	notifier.Notify()
	if got := testutil.RequireReceive(t, navigator.replaced, 5*time.Second, "redirect to login"); got != ScreenLogin {
		t.Fatalf("redirect after 401 = %s, want login", got)
	}
	if stored, _ := store.Get(context.Background()); stored != nil {
		t.Error("store should be empty after a 401")
	}
}
