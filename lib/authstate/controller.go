// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/timeoff/lib/apiclient"
	"github.com/bureau-foundation/timeoff/lib/clock"
	"github.com/bureau-foundation/timeoff/lib/securestore"
	"github.com/bureau-foundation/timeoff/lib/session"
)

// ErrNotAuthenticated is returned by operations that need a session
// when none is held.
var ErrNotAuthenticated = errors.New("not signed in")

// teardownTimeout bounds store deletion on paths that have no caller
// context (timer, 401 handler).
const teardownTimeout = 5 * time.Second

// minRefreshInterval is the shortest delay the refresh timer is armed
// with once a session is already inside the look-ahead window.
const minRefreshInterval = 5 * time.Second

// TokenService obtains sessions. *tokenservice.Service implements it.
type TokenService interface {
	SignIn(ctx context.Context) (*session.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*session.Session, error)
}

// ProfileFetcher loads the user for the current access token.
// *apiclient.Client implements it.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context) (*session.User, error)
}

// Config configures a Controller.
type Config struct {
	Store    securestore.Store
	Tokens   TokenService
	Profiles ProfileFetcher

	// Notifier, when set, gets the controller's 401 handler.
	Notifier *apiclient.UnauthorizedNotifier

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Notice receives forced sign-out notices. Optional.
	Notice NoticeFunc

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

// Controller is the session state machine. All methods are safe for
// concurrent use.
type Controller struct {
	store    securestore.Store
	tokens   TokenService
	profiles ProfileFetcher
	notifier *apiclient.UnauthorizedNotifier
	clock    clock.Clock
	notice   NoticeFunc
	logger   *slog.Logger

	// background is the context for work the controller starts on its
	// own (scheduled refresh, profile fetch). Close cancels it.
	background context.Context
	cancel     context.CancelFunc

	// transition serializes store writes with the memory updates that
	// accompany them, and listener delivery. Lock order: transition,
	// then mu, then spawnMu.
	transition sync.Mutex

	mu         sync.Mutex
	state      State
	current    *session.Session
	user       *session.User
	generation uint64
	timer      *clock.Timer
	profileErr error
	listeners  map[int]func(Snapshot)
	nextID     int

	spawnMu sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New returns a controller in StateInitializing. Call Start to resolve
// the persisted session.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("authstate: Store is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("authstate: Tokens is required")
	}
	if cfg.Profiles == nil {
		return nil, fmt.Errorf("authstate: Profiles is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	background, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:      cfg.Store,
		tokens:     cfg.Tokens,
		profiles:   cfg.Profiles,
		notifier:   cfg.Notifier,
		clock:      cfg.Clock,
		notice:     cfg.Notice,
		logger:     cfg.Logger.With("component", "authstate"),
		background: background,
		cancel:     cancel,
		state:      StateInitializing,
		listeners:  make(map[int]func(Snapshot)),
	}
	if c.notifier != nil {
		c.notifier.SetHandler(c.handleUnauthorized)
	}
	return c, nil
}

// Start resolves the persisted session: a valid one is adopted, an
// expired one is refreshed once, anything else leaves the controller
// unauthenticated with the store cleared. Storage read failures count
// as "no session". Listeners see only the final state.
func (c *Controller) Start(ctx context.Context) {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	if c.state != StateInitializing {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	stored, err := c.store.Get(ctx)
	if err != nil {
		c.logger.Warn("reading persisted session failed, starting signed out", "error", err)
		stored = nil
	}
	if stored == nil {
		c.settleUnauthenticated()
		return
	}

	if !stored.IsExpired(c.clock.Now()) {
		c.logger.Info("restored persisted session")
		c.adoptAndPublish(stored)
		return
	}

	if !stored.HasRefreshToken() {
		c.logger.Info("persisted session expired without a refresh token")
		c.clearStore(ctx)
		c.settleUnauthenticated()
		return
	}

	c.mu.Lock()
	c.state = StateRefreshing
	c.mu.Unlock()

	refreshed, err := c.tokens.Refresh(ctx, stored.RefreshToken)
	if err != nil && ctx.Err() != nil {
		// Interrupted, not rejected: keep the stored session for the
		// next start.
		c.logger.Info("start interrupted during refresh", "error", err)
		c.settleUnauthenticated()
		return
	}
	if err != nil {
		c.logger.Error("refreshing persisted session failed", "error", err)
		c.clearStore(ctx)
		c.settleUnauthenticated()
		return
	}
	if err := c.store.Set(ctx, *refreshed); err != nil {
		c.logger.Error("persisting refreshed session failed", "error", err)
	}
	c.logger.Info("refreshed persisted session")
	c.adoptAndPublish(refreshed)
}

// SignIn runs the interactive flow. On success the session is
// persisted, then adopted. On failure or cancellation the state is
// unchanged and the error is returned; cancellation wraps
// tokenservice.ErrCancelled.
func (c *Controller) SignIn(ctx context.Context) error {
	signedIn, err := c.tokens.SignIn(ctx)
	if err != nil {
		c.logger.Info("sign-in did not complete", "error", err)
		return err
	}

	c.transition.Lock()
	defer c.transition.Unlock()
	if err := c.store.Set(ctx, *signedIn); err != nil {
		// The session is still good for this process.
		c.logger.Error("persisting session failed", "error", err)
	}
	c.logger.Info("signed in")
	c.adoptAndPublish(signedIn)
	return nil
}

// SignOut clears the session from memory, then waits for the store
// deletion. The store error, if any, is returned; memory is cleared
// regardless.
func (c *Controller) SignOut(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	c.teardownLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snapshot)

	c.logger.Info("signed out")
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing persisted session: %w", err)
	}
	return nil
}

// RefreshUser re-fetches the profile for the current session and
// returns the error of the fetch. A result that arrives after the
// session changed is dropped.
func (c *Controller) RefreshUser(ctx context.Context) error {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	generation := c.generation
	c.mu.Unlock()

	user, err := c.profiles.FetchProfile(ctx)
	c.applyProfile(generation, user, err)
	return err
}

// AwaitProfile waits for the profile fetch started by the latest
// adoption and returns the resulting snapshot with the fetch error, if
// any. It does not fetch again. A session torn down while waiting
// yields ErrNotAuthenticated.
func (c *Controller) AwaitProfile(ctx context.Context) (Snapshot, error) {
	changed := make(chan struct{}, 1)
	cancel := c.Subscribe(func(Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		c.mu.Lock()
		snapshot, profileErr := c.snapshotLocked(), c.profileErr
		c.mu.Unlock()

		switch snapshot.State {
		case StateAuthenticatedProfileLoading, StateRefreshing:
		default:
			if snapshot.Session == nil {
				return snapshot, ErrNotAuthenticated
			}
			return snapshot, profileErr
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return snapshot, ctx.Err()
		}
	}
}

// AccessToken returns the current access token, or "" when signed out.
func (c *Controller) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ""
	}
	return c.current.AccessToken
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers listener for every transition, delivered in
// transition order. A listener must not call back into the controller
// synchronously. The returned function unregisters.
func (c *Controller) Subscribe(listener func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Close stops the refresh timer, cancels background work, and waits for
// it to finish. The controller keeps its state but starts no further
// work.
func (c *Controller) Close() {
	c.spawnMu.Lock()
	c.closing = true
	c.spawnMu.Unlock()

	c.mu.Lock()
	c.timer.Stop()
	c.timer = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	if c.notifier != nil {
		c.notifier.SetHandler(nil)
	}
}

// adoptAndPublish installs s and notifies listeners. Caller holds
// transition.
func (c *Controller) adoptAndPublish(s *session.Session) {
	c.mu.Lock()
	c.adoptLocked(s)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snapshot)
}

// adoptLocked replaces the session, re-arms the refresh timer, and
// starts a profile fetch when the access token changed.
func (c *Controller) adoptLocked(s *session.Session) {
	adopted := *s
	previousToken := ""
	if c.current != nil {
		previousToken = c.current.AccessToken
	}

	c.generation++
	generation := c.generation
	c.timer.Stop()
	c.timer = nil
	c.current = &adopted

	// A fetch started under the previous generation is now stale, so
	// a profile still loading needs a fresh one even for the same token.
	if adopted.AccessToken != previousToken || c.state != StateAuthenticatedReady {
		c.user = nil
		c.profileErr = nil
		c.state = StateAuthenticatedProfileLoading
		c.spawn(func() {
			user, err := c.profiles.FetchProfile(c.background)
			if c.background.Err() != nil {
				return
			}
			c.applyProfile(generation, user, err)
		})
	}

	if delay, ok := refreshDelay(adopted, c.clock.Now()); ok {
		c.timer = c.clock.AfterFunc(delay, func() {
			c.spawn(func() { c.scheduledRefresh(generation) })
		})
	}
}

// refreshDelay is Session.RefreshDelay, except that a session adopted
// inside the look-ahead window is refreshed halfway to its expiry (and
// no sooner than minRefreshInterval) instead of immediately. A token
// endpoint that keeps issuing short-lived tokens is then asked at most
// once per interval.
func refreshDelay(s session.Session, now time.Time) (time.Duration, bool) {
	delay, ok := s.RefreshDelay(now)
	if !ok || delay > 0 {
		return delay, ok
	}
	expiry, _ := s.Expiry()
	delay = expiry.Sub(now) / 2
	if delay < minRefreshInterval {
		delay = minRefreshInterval
	}
	return delay, true
}

// teardownLocked drops the session and the timer.
func (c *Controller) teardownLocked() {
	c.generation++
	c.timer.Stop()
	c.timer = nil
	c.current = nil
	c.user = nil
	c.profileErr = nil
	c.state = StateUnauthenticated
}

func (c *Controller) settleUnauthenticated() {
	c.mu.Lock()
	c.teardownLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snapshot)
}

// applyProfile records a profile fetch result unless the session
// changed since the fetch began.
func (c *Controller) applyProfile(generation uint64, user *session.User, err error) {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	if generation != c.generation || c.current == nil {
		c.mu.Unlock()
		return
	}
	c.profileErr = err
	if err != nil {
		c.logger.Error("fetching user profile failed", "error", err)
		c.user = nil
	} else {
		copied := *user
		c.user = &copied
	}
	c.state = StateAuthenticatedReady
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snapshot)
}

// scheduledRefresh runs when the refresh timer armed under generation
// fires.
func (c *Controller) scheduledRefresh(generation uint64) {
	c.mu.Lock()
	if generation != c.generation || c.current == nil {
		c.mu.Unlock()
		return
	}
	refreshToken := c.current.RefreshToken
	c.mu.Unlock()

	var refreshed *session.Session
	err := errors.New("session has no refresh token")
	if refreshToken != "" {
		refreshed, err = c.tokens.Refresh(c.background, refreshToken)
	}
	if c.background.Err() != nil {
		return
	}

	c.transition.Lock()
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		c.transition.Unlock()
		return
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("scheduled session refresh failed", "error", err)
		c.mu.Lock()
		c.teardownLocked()
		snapshot := c.snapshotLocked()
		c.mu.Unlock()
		c.clearStore(c.background)
		c.publish(snapshot)
		c.transition.Unlock()
		c.emit(Notice{Kind: NoticeSessionExpired, Message: messageSessionExpired})
		return
	}

	if err := c.store.Set(c.background, *refreshed); err != nil {
		c.logger.Error("persisting refreshed session failed", "error", err)
	}
	c.logger.Debug("session refreshed")
	c.adoptAndPublish(refreshed)
	c.transition.Unlock()
}

// handleUnauthorized is the UnauthorizedNotifier handler. The transport
// has already cleared the store; clearing again covers sessions
// persisted between the 401 and now.
func (c *Controller) handleUnauthorized() {
	c.transition.Lock()
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		c.transition.Unlock()
		return
	}
	c.teardownLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Warn("backend rejected the session, signing out")
	c.clearStore(c.background)
	c.publish(snapshot)
	c.transition.Unlock()
	c.emit(Notice{Kind: NoticeUnauthorized, Message: messageUnauthorized})
}

// clearStore deletes the persisted session, logging failures. The
// deletion outlives cancellation of ctx.
func (c *Controller) clearStore(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("clearing persisted session failed", "error", err)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snapshot := Snapshot{State: c.state, Generation: c.generation}
	if c.current != nil {
		copied := *c.current
		snapshot.Session = &copied
	}
	if c.user != nil {
		copied := *c.user
		snapshot.User = &copied
	}
	return snapshot
}

// publish delivers snapshot to every listener. Caller holds transition
// but not mu.
func (c *Controller) publish(snapshot Snapshot) {
	c.mu.Lock()
	listeners := make([]func(Snapshot), 0, len(c.listeners))
	for _, listener := range c.listeners {
		listeners = append(listeners, listener)
	}
	c.mu.Unlock()
	for _, listener := range listeners {
		listener(snapshot)
	}
}

func (c *Controller) emit(notice Notice) {
	if c.notice != nil {
		c.notice(notice)
	}
}

// spawn runs f on a tracked goroutine unless the controller is closing.
func (c *Controller) spawn(f func()) {
	c.spawnMu.Lock()
	defer c.spawnMu.Unlock()
	if c.closing {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		f()
	}()
}
