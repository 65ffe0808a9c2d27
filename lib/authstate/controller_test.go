// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/timeoff/lib/apiclient"
	"github.com/bureau-foundation/timeoff/lib/clock"
	"github.com/bureau-foundation/timeoff/lib/securestore"
	"github.com/bureau-foundation/timeoff/lib/session"
	"github.com/bureau-foundation/timeoff/lib/testutil"
	"github.com/bureau-foundation/timeoff/lib/tokenservice"
)

const waitTimeout = 5 * time.Second

var epoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fakeTokens struct {
	mu           sync.Mutex
	signIn       func(ctx context.Context) (*session.Session, error)
	refresh      func(ctx context.Context, refreshToken string) (*session.Session, error)
	refreshCalls []string
}

func (f *fakeTokens) SignIn(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	signIn := f.signIn
	f.mu.Unlock()
	if signIn == nil {
		return nil, fmt.Errorf("no sign-in configured: %w", tokenservice.ErrCancelled)
	}
	return signIn(ctx)
}

func (f *fakeTokens) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	f.mu.Lock()
	f.refreshCalls = append(f.refreshCalls, refreshToken)
	refresh := f.refresh
	f.mu.Unlock()
	if refresh == nil {
		return nil, errors.New("invalid_grant")
	}
	return refresh(ctx, refreshToken)
}

func (f *fakeTokens) setRefresh(refresh func(ctx context.Context, refreshToken string) (*session.Session, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh = refresh
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refreshCalls)
}

// fakeProfiles returns a fixed user. When gate is set, each call
// signals entered and then waits for gate to close.
type fakeProfiles struct {
	mu      sync.Mutex
	user    session.User
	err     error
	gate    chan struct{}
	entered chan struct{}
	calls   int
}

func (f *fakeProfiles) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProfiles) FetchProfile(ctx context.Context) (*session.User, error) {
	f.mu.Lock()
	f.calls++
	user, err, gate, entered := f.user, f.err, f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// failingStore fails every Get.
type failingStore struct {
	*securestore.Memory
}

func (failingStore) Get(ctx context.Context) (*session.Session, error) {
	return nil, errors.New("permission denied")
}

type harness struct {
	controller *Controller
	store      securestore.Store
	memory     *securestore.Memory
	clock      *clock.FakeClock
	tokens     *fakeTokens
	profiles   *fakeProfiles
	notifier   *apiclient.UnauthorizedNotifier
	snapshots  chan Snapshot
	notices    chan Notice
}

func newHarness(t *testing.T, store securestore.Store) *harness {
	t.Helper()
	memory := securestore.NewMemory()
	if store == nil {
		store = memory
	}
	h := &harness{
		store:     store,
		memory:    memory,
		clock:     clock.Fake(epoch),
		tokens:    &fakeTokens{},
		profiles:  &fakeProfiles{user: session.User{ID: 12, Name: "Giulia", Surname: "Rossi", Role: session.RoleStandard}},
		notifier:  apiclient.NewUnauthorizedNotifier(),
		snapshots: make(chan Snapshot, 64),
		notices:   make(chan Notice, 8),
	}
	controller, err := New(Config{
		Store:    h.store,
		Tokens:   h.tokens,
		Profiles: h.profiles,
		Notifier: h.notifier,
		Clock:    h.clock,
		Notice:   func(n Notice) { h.notices <- n },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	controller.Subscribe(func(s Snapshot) { h.snapshots <- s })
	t.Cleanup(controller.Close)
	h.controller = controller
	return h
}

func (h *harness) sessionExpiringIn(token string, d time.Duration) session.Session {
	return session.Session{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		ExpiresAt:    h.clock.Now().Add(d).UnixMilli(),
	}
}

func (h *harness) seed(t *testing.T, s session.Session) {
	t.Helper()
	if err := h.memory.Set(context.Background(), s); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
}

// waitForState reads snapshots until one has the wanted state.
func (h *harness) waitForState(t *testing.T, want State) Snapshot {
	t.Helper()
	for {
		snapshot := testutil.RequireReceive(t, h.snapshots, waitTimeout, "waiting for state %s", want)
		if snapshot.State == want {
			return snapshot
		}
	}
}

func (h *harness) storedSession(t *testing.T) *session.Session {
	t.Helper()
	stored, err := h.memory.Get(context.Background())
	if err != nil {
		t.Fatalf("store Get: %v", err)
	}
	return stored
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Error("New with empty config should fail")
	}
}

func TestInitialState(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	if got := h.controller.Snapshot().State; got != StateInitializing {
		t.Fatalf("state = %s, want initializing", got)
	}
	if h.controller.AccessToken() != "" {
		t.Error("AccessToken should be empty before Start")
	}
}

func TestStartWithoutSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.controller.Start(context.Background())

	snapshot := testutil.RequireReceive(t, h.snapshots, waitTimeout, "start")
	if snapshot.State != StateUnauthenticated || snapshot.Authenticated() {
		t.Fatalf("snapshot = %+v, want unauthenticated", snapshot)
	}
}

func TestStartAdoptsValidSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", time.Hour))

	h.controller.Start(context.Background())
	loading := testutil.RequireReceive(t, h.snapshots, waitTimeout, "adoption")
	if loading.State != StateAuthenticatedProfileLoading {
		t.Fatalf("first state = %s, want profile-loading", loading.State)
	}
	if loading.User != nil {
		t.Error("user should be nil while the profile loads")
	}

	ready := h.waitForState(t, StateAuthenticatedReady)
	if ready.User == nil || ready.User.ID != 12 {
		t.Fatalf("user = %+v, want id 12", ready.User)
	}
	if h.controller.AccessToken() != "access-1" {
		t.Errorf("AccessToken = %q", h.controller.AccessToken())
	}
	if h.tokens.refreshCount() != 0 {
		t.Error("valid session should not be refreshed on start")
	}
	if h.clock.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want one refresh timer", h.clock.PendingCount())
	}
}

func TestStartRefreshesExpiredSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("stale", -10*time.Minute))
	h.tokens.setRefresh(func(ctx context.Context, refreshToken string) (*session.Session, error) {
		if refreshToken != "refresh-stale" {
			return nil, fmt.Errorf("unexpected refresh token %q", refreshToken)
		}
		refreshed := h.sessionExpiringIn("fresh", time.Hour)
		return &refreshed, nil
	})

	h.controller.Start(context.Background())

	first := testutil.RequireReceive(t, h.snapshots, waitTimeout, "start")
	if first.State == StateRefreshing {
		t.Fatal("listeners should not see the intermediate refreshing state")
	}
	ready := h.waitForState(t, StateAuthenticatedReady)
	if ready.Session.AccessToken != "fresh" {
		t.Fatalf("access token = %q, want fresh", ready.Session.AccessToken)
	}
	if !time.UnixMilli(ready.Session.ExpiresAt).After(h.clock.Now()) {
		t.Error("refreshed session should expire in the future")
	}
	stored := h.storedSession(t)
	if stored == nil || *stored != *ready.Session {
		t.Fatalf("stored = %+v, want %+v", stored, ready.Session)
	}
}

func TestStartExpiredWithoutRefreshToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	expired := h.sessionExpiringIn("stale", -10*time.Minute)
	expired.RefreshToken = ""
	h.seed(t, expired)

	h.controller.Start(context.Background())

	snapshot := testutil.RequireReceive(t, h.snapshots, waitTimeout, "start")
	if snapshot.State != StateUnauthenticated {
		t.Fatalf("state = %s, want unauthenticated", snapshot.State)
	}
	if h.storedSession(t) != nil {
		t.Error("store should be cleared")
	}
	if h.tokens.refreshCount() != 0 {
		t.Error("refresh attempted without a refresh token")
	}
}

func TestStartRefreshFailureClearsStore(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("stale", -time.Minute))

	h.controller.Start(context.Background())

	snapshot := testutil.RequireReceive(t, h.snapshots, waitTimeout, "start")
	if snapshot.State != StateUnauthenticated {
		t.Fatalf("state = %s, want unauthenticated", snapshot.State)
	}
	if h.storedSession(t) != nil {
		t.Error("store should be cleared after a failed refresh")
	}
	if h.tokens.refreshCount() != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", h.tokens.refreshCount())
	}
}

func TestStartStoreFailureMeansSignedOut(t *testing.T) {
	t.Parallel()
	h := newHarness(t, failingStore{securestore.NewMemory()})
	h.controller.Start(context.Background())

	snapshot := testutil.RequireReceive(t, h.snapshots, waitTimeout, "start")
	if snapshot.State != StateUnauthenticated {
		t.Fatalf("state = %s, want unauthenticated", snapshot.State)
	}
}

func TestStartDegradedSessionArmsNoTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, session.Session{AccessToken: "forever"})

	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)
	if h.clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0 for unknown expiry", h.clock.PendingCount())
	}
}

func TestSignInPersistsThenAdopts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.controller.Start(context.Background())
	h.waitForState(t, StateUnauthenticated)

	signedIn := h.sessionExpiringIn("interactive", time.Hour)
	h.tokens.signIn = func(ctx context.Context) (*session.Session, error) { return &signedIn, nil }

	var storedAtAdoption *session.Session
	cancel := h.controller.Subscribe(func(s Snapshot) {
		if s.State == StateAuthenticatedProfileLoading && storedAtAdoption == nil {
			storedAtAdoption, _ = h.memory.Get(context.Background())
		}
	})
	defer cancel()

	if err := h.controller.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if storedAtAdoption == nil || storedAtAdoption.AccessToken != "interactive" {
		t.Fatalf("store at adoption = %+v, want the new session persisted first", storedAtAdoption)
	}
	ready := h.waitForState(t, StateAuthenticatedReady)
	if ready.User == nil {
		t.Error("user should be loaded after sign-in")
	}
}

func TestSignInCancelledLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.controller.Start(context.Background())
	before := h.waitForState(t, StateUnauthenticated)

	err := h.controller.SignIn(context.Background())
	if !errors.Is(err, tokenservice.ErrCancelled) {
		t.Fatalf("SignIn error = %v, want ErrCancelled", err)
	}
	if after := h.controller.Snapshot(); after != before {
		t.Errorf("snapshot changed: %+v -> %+v", before, after)
	}
	testutil.RequireNoReceive(t, h.snapshots, 50*time.Millisecond, "cancelled sign-in should not publish")
}

func TestSignOutClearsEverything(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", time.Hour))
	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)

	if err := h.controller.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	snapshot := h.controller.Snapshot()
	if snapshot.State != StateUnauthenticated || snapshot.Session != nil || snapshot.User != nil {
		t.Fatalf("snapshot after sign-out = %+v", snapshot)
	}
	if h.storedSession(t) != nil {
		t.Error("store should be empty after sign-out")
	}
	if h.clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want the refresh timer stopped", h.clock.PendingCount())
	}
}

func TestScheduledRefreshReplacesSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", 10*time.Minute))
	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)

	replacement := testutil.UniqueID("access")
	h.tokens.setRefresh(func(ctx context.Context, refreshToken string) (*session.Session, error) {
		refreshed := h.sessionExpiringIn(replacement, time.Hour)
		return &refreshed, nil
	})

	h.clock.Advance(9*time.Minute + 29*time.Second)
	if h.tokens.refreshCount() != 0 {
		t.Fatal("refresh fired before expiry minus the margin")
	}
	h.clock.Advance(time.Second)

	for {
		snapshot := h.waitForState(t, StateAuthenticatedReady)
		if snapshot.Session.AccessToken == replacement {
			break
		}
	}
	if stored := h.storedSession(t); stored == nil || stored.AccessToken != replacement {
		t.Fatalf("stored = %+v, want %s", stored, replacement)
	}
	if h.clock.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want the timer re-armed once", h.clock.PendingCount())
	}
}

func TestShortLivedTokensRefreshAtBoundedRate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.controller.Start(context.Background())
	h.waitForState(t, StateUnauthenticated)

	// Every token the endpoint issues sits at the expiry floor, already
	// inside the look-ahead window.
	issued := h.sessionExpiringIn("access-0", session.MinLifetime)
	h.tokens.signIn = func(ctx context.Context) (*session.Session, error) { return &issued, nil }
	h.tokens.setRefresh(func(ctx context.Context, refreshToken string) (*session.Session, error) {
		refreshed := h.sessionExpiringIn(testutil.UniqueID("short"), session.MinLifetime)
		return &refreshed, nil
	})

	if err := h.controller.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	h.waitForState(t, StateAuthenticatedReady)
	testutil.RequireNoReceive(t, h.snapshots, 100*time.Millisecond, "no refresh with the clock frozen")
	if count := h.tokens.refreshCount(); count != 0 {
		t.Fatalf("refresh calls with the clock frozen = %d, want 0", count)
	}
	if h.clock.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", h.clock.PendingCount())
	}

	h.clock.Advance(session.MinLifetime / 2)
	h.waitForState(t, StateAuthenticatedProfileLoading)
	h.waitForState(t, StateAuthenticatedReady)
	testutil.RequireNoReceive(t, h.snapshots, 100*time.Millisecond, "one refresh per timer")
	if count := h.tokens.refreshCount(); count != 1 {
		t.Fatalf("refresh calls after one interval = %d, want 1", count)
	}

	h.clock.Advance(session.MinLifetime/2 - time.Second)
	testutil.RequireNoReceive(t, h.snapshots, 50*time.Millisecond, "next refresh not due yet")
	if count := h.tokens.refreshCount(); count != 1 {
		t.Errorf("refresh calls before the next interval = %d, want 1", count)
	}
}

func TestRefreshDelayInsideLookAheadWindow(t *testing.T) {
	t.Parallel()
	now := epoch
	tests := []struct {
		name      string
		expiresIn time.Duration
		want      time.Duration
	}{
		{"outside window", 10 * time.Minute, 10*time.Minute - session.CheckMargin},
		{"at the floor", session.MinLifetime, session.MinLifetime / 2},
		{"nearly expired", 4 * time.Second, minRefreshInterval},
		{"already expired", -time.Minute, minRefreshInterval},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := session.Session{AccessToken: "a", ExpiresAt: now.Add(test.expiresIn).UnixMilli()}
			delay, ok := refreshDelay(s, now)
			if !ok || delay != test.want {
				t.Errorf("refreshDelay = %v, %v; want %v, true", delay, ok, test.want)
			}
		})
	}
	if _, ok := refreshDelay(session.Session{AccessToken: "a"}, now); ok {
		t.Error("unknown expiry should not arm a timer")
	}
}

func TestScheduledRefreshFailureSignsOut(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", 10*time.Minute))
	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)

	h.clock.Advance(10 * time.Minute)

	snapshot := h.waitForState(t, StateUnauthenticated)
	if snapshot.Session != nil || snapshot.User != nil {
		t.Fatalf("snapshot = %+v, want no session", snapshot)
	}
	notice := testutil.RequireReceive(t, h.notices, waitTimeout, "session expired notice")
	if notice.Kind != NoticeSessionExpired {
		t.Errorf("notice kind = %v, want session expired", notice.Kind)
	}
	if h.storedSession(t) != nil {
		t.Error("store should be cleared after a failed scheduled refresh")
	}
}

func TestReplacementStopsPreviousTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", 10*time.Minute))
	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)

	replacement := h.sessionExpiringIn("access-2", 2*time.Hour)
	h.tokens.signIn = func(ctx context.Context) (*session.Session, error) { return &replacement, nil }
	if err := h.controller.SignIn(context.Background()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if h.clock.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want exactly one timer", h.clock.PendingCount())
	}
	h.clock.Advance(30 * time.Minute)
	if h.tokens.refreshCount() != 0 {
		t.Error("the replaced session's timer fired")
	}
}

func TestRefreshAfterSignOutIsDiscarded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", 10*time.Minute))
	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)

	entered := make(chan struct{})
	var enteredOnce sync.Once
	release := make(chan struct{})
	h.tokens.setRefresh(func(ctx context.Context, refreshToken string) (*session.Session, error) {
		enteredOnce.Do(func() { close(entered) })
		<-release
		refreshed := h.sessionExpiringIn("late", time.Hour)
		return &refreshed, nil
	})

	h.clock.Advance(10 * time.Minute)
	testutil.RequireClosed(t, entered, waitTimeout, "refresh to start")
	if err := h.controller.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	close(release)
	h.controller.Close()

	if snapshot := h.controller.Snapshot(); snapshot.Session != nil {
		t.Fatalf("late refresh resurrected the session: %+v", snapshot.Session)
	}
	if h.storedSession(t) != nil {
		t.Error("late refresh persisted a session after sign-out")
	}
}

func TestProfileFailureLeavesSessionValid(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.profiles.err = errors.New("500 internal error")
	h.seed(t, h.sessionExpiringIn("access-1", time.Hour))

	h.controller.Start(context.Background())
	ready := h.waitForState(t, StateAuthenticatedReady)
	if ready.Session == nil {
		t.Fatal("session should survive a failed profile fetch")
	}
	if ready.User != nil {
		t.Errorf("user = %+v, want nil", ready.User)
	}
}

func TestAwaitProfileWaitsForAdoptionFetch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	h.profiles.gate, h.profiles.entered = gate, entered
	h.seed(t, h.sessionExpiringIn("access-1", time.Hour))

	h.controller.Start(context.Background())
	testutil.RequireReceive(t, entered, waitTimeout, "adoption fetch to start")

	type result struct {
		snapshot Snapshot
		err      error
	}
	done := make(chan result, 1)
	go func() {
		snapshot, err := h.controller.AwaitProfile(context.Background())
		done <- result{snapshot, err}
	}()
	testutil.RequireNoReceive(t, done, 50*time.Millisecond, "AwaitProfile returned while the fetch was gated")

	close(gate)
	got := testutil.RequireReceive(t, done, waitTimeout, "AwaitProfile")
	if got.err != nil || got.snapshot.User == nil || got.snapshot.User.ID != 12 {
		t.Fatalf("AwaitProfile = %+v, %v", got.snapshot, got.err)
	}
	if calls := h.profiles.callCount(); calls != 1 {
		t.Errorf("profile fetches = %d, want 1", calls)
	}
}

func TestAwaitProfileReportsFetchError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	fetchErr := errors.New("500 internal error")
	h.profiles.err = fetchErr
	h.seed(t, h.sessionExpiringIn("access-1", time.Hour))

	h.controller.Start(context.Background())
	snapshot, err := h.controller.AwaitProfile(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("AwaitProfile error = %v, want the fetch error", err)
	}
	if snapshot.Session == nil || snapshot.State != StateAuthenticatedReady {
		t.Errorf("snapshot = %+v, want a ready session", snapshot)
	}
	if calls := h.profiles.callCount(); calls != 1 {
		t.Errorf("profile fetches = %d, want 1", calls)
	}
}

func TestAwaitProfileSignedOut(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.controller.Start(context.Background())
	if _, err := h.controller.AwaitProfile(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("AwaitProfile error = %v, want ErrNotAuthenticated", err)
	}
}

func TestStaleProfileDroppedAfterSignOut(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", time.Hour))
	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)

	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	h.profiles.mu.Lock()
	h.profiles.gate, h.profiles.entered = gate, entered
	h.profiles.mu.Unlock()

	result := make(chan error, 1)
	go func() { result <- h.controller.RefreshUser(context.Background()) }()
	testutil.RequireReceive(t, entered, waitTimeout, "profile fetch to start")

	if err := h.controller.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	close(gate)
	if err := testutil.RequireReceive(t, result, waitTimeout, "RefreshUser"); err != nil {
		t.Fatalf("RefreshUser: %v", err)
	}

	snapshot := h.controller.Snapshot()
	if snapshot.State != StateUnauthenticated || snapshot.User != nil {
		t.Fatalf("stale profile applied: %+v", snapshot)
	}
}

func TestRefreshUserWithoutSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.controller.Start(context.Background())
	if err := h.controller.RefreshUser(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("RefreshUser error = %v, want ErrNotAuthenticated", err)
	}
}

func TestUnauthorizedTearsDown(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", time.Hour))
	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)

	h.notifier.Notify()

	snapshot := h.waitForState(t, StateUnauthenticated)
	if snapshot.Session != nil || snapshot.User != nil {
		t.Fatalf("snapshot = %+v, want no session", snapshot)
	}
	notice := testutil.RequireReceive(t, h.notices, waitTimeout, "unauthorized notice")
	if notice.Kind != NoticeUnauthorized {
		t.Errorf("notice kind = %v, want unauthorized", notice.Kind)
	}
	if h.storedSession(t) != nil {
		t.Error("store should be empty after a 401")
	}
	if h.clock.PendingCount() != 0 {
		t.Error("refresh timer should be stopped after a 401")
	}
}

func TestUnauthorizedWhileSignedOutIsQuiet(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.controller.Start(context.Background())
	h.waitForState(t, StateUnauthenticated)

	h.notifier.Notify()
	testutil.RequireNoReceive(t, h.notices, 50*time.Millisecond, "no notice without a session")
}

func TestCloseStopsTimer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.seed(t, h.sessionExpiringIn("access-1", time.Hour))
	h.controller.Start(context.Background())
	h.waitForState(t, StateAuthenticatedReady)

	h.controller.Close()
	if h.clock.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after Close, want 0", h.clock.PendingCount())
	}
}
