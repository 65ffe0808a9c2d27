// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/timeoff/lib/authstate"
	"github.com/bureau-foundation/timeoff/lib/reconciler"
	"github.com/bureau-foundation/timeoff/lib/requests"
	"github.com/bureau-foundation/timeoff/lib/routeguard"
	"github.com/bureau-foundation/timeoff/lib/session"
	"github.com/bureau-foundation/timeoff/lib/tokenservice"
)

type fakeSession struct {
	mu        sync.Mutex
	snapshot  authstate.Snapshot
	started   int
	signIns   int
	signInErr error
	signOuts  int
	listeners []func(authstate.Snapshot)
}

func (f *fakeSession) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeSession) Snapshot() authstate.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeSession) Subscribe(listener func(authstate.Snapshot)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, listener)
	return func() {}
}

func (f *fakeSession) SignIn(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signIns++
	return f.signInErr
}

func (f *fakeSession) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	return nil
}

func (f *fakeSession) set(snapshot authstate.Snapshot) {
	f.mu.Lock()
	f.snapshot = snapshot
	listeners := append([]func(authstate.Snapshot){}, f.listeners...)
	f.mu.Unlock()
	for _, listener := range listeners {
		listener(snapshot)
	}
}

type fakeRemote struct {
	mu      sync.Mutex
	lists   map[requests.ListKey][]requests.Record
	loads   []requests.ListKey
	updated []requests.Record
	deleted []int64
}

func (f *fakeRemote) ListRequests(ctx context.Context, list requests.ListKey, day time.Time) ([]requests.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, list)
	return append([]requests.Record{}, f.lists[list]...), nil
}

func (f *fakeRemote) CreateRequest(ctx context.Context, draft requests.Record) (requests.Record, error) {
	draft.ID = 1000
	return draft, nil
}

func (f *fakeRemote) UpdateRequest(ctx context.Context, record requests.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, record)
	return nil
}

func (f *fakeRemote) DeleteRequest(ctx context.Context, kind requests.Kind, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

// recordingSender captures messages sent from outside the event loop.
type recordingSender struct {
	mu       sync.Mutex
	messages []tea.Msg
}

func (s *recordingSender) Send(message tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
}

func (s *recordingSender) all() []tea.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tea.Msg{}, s.messages...)
}

var (
	dayStart = time.Date(2026, 3, 9, 9, 0, 0, 0, time.Local)
	dayEnd   = time.Date(2026, 3, 9, 18, 0, 0, 0, time.Local)
)

type harness struct {
	model    Model
	session  *fakeSession
	remote   *fakeRemote
	sender   *recordingSender
	sent     *reconciler.List
	received *reconciler.List
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	remote := &fakeRemote{lists: map[requests.ListKey][]requests.Record{
		requests.ListSent: {
			{ID: 11, UserID: 7, Kind: requests.KindHoliday, Start: dayStart, End: dayEnd, Status: requests.StatusApproved},
		},
		requests.ListReceived: {
			{ID: 42, UserID: 9, Kind: requests.KindHoliday, Start: dayStart, End: dayEnd, Status: requests.StatusPending},
			{ID: 43, UserID: 9, Kind: requests.KindPermit, PermitType: "rol", Start: dayStart, End: dayEnd, Status: requests.StatusPending},
		},
	}}
	sent, err := reconciler.New(reconciler.Config{Remote: remote, Key: requests.ListSent})
	if err != nil {
		t.Fatal(err)
	}
	received, err := reconciler.New(reconciler.Config{Remote: remote, Key: requests.ListReceived})
	if err != nil {
		t.Fatal(err)
	}
	session := &fakeSession{snapshot: authstate.Snapshot{State: authstate.StateInitializing}}
	model := NewModel(context.Background(), Config{Session: session, Sent: sent, Received: received})
	sender := &recordingSender{}
	model.SetSender(sender)
	return &harness{model: model, session: session, remote: remote, sender: sender, sent: sent, received: received}
}

// update feeds one message and returns the resulting model and command.
func (h *harness) update(t *testing.T, message tea.Msg) tea.Cmd {
	t.Helper()
	next, cmd := h.model.Update(message)
	h.model = next.(Model)
	return cmd
}

// run executes cmd and feeds its message back, as the program would.
func (h *harness) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if message := cmd(); message != nil {
		h.update(t, message)
	}
}

// sync delivers the current state of a list as its listener would.
func (h *harness) sync(t *testing.T, list *reconciler.List) {
	t.Helper()
	h.update(t, ListMsg{Key: list.Key(), State: list.Snapshot()})
}

func keyRunes(text string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)}
}

var readyUser = &session.User{ID: 7, Name: "Mario", Surname: "Rossi", Role: session.RoleAdmin}

func TestInitialScreenIsLogin(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	if h.model.Current() != routeguard.ScreenLogin {
		t.Fatalf("Current = %q, want login", h.model.Current())
	}
	if view := h.model.View(); !strings.Contains(view, "Restoring session...") {
		t.Errorf("view while initializing:\n%s", view)
	}

	h.update(t, SnapshotMsg{State: authstate.StateUnauthenticated})
	if view := h.model.View(); !strings.Contains(view, "Sign in with your Microsoft account") {
		t.Errorf("view when signed out:\n%s", view)
	}
}

func TestInitStartsSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	batch, ok := h.model.Init()().(tea.BatchMsg)
	if !ok {
		t.Fatal("Init should batch the spinner and the session start")
	}
	for _, cmd := range batch {
		if message, ok := cmd().(startedMsg); ok {
			h.update(t, message)
		}
	}
	h.session.mu.Lock()
	started := h.session.started
	h.session.mu.Unlock()
	if started != 1 {
		t.Errorf("Start called %d times, want 1", started)
	}
}

func TestReplaceNotifiesProgram(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.model.Replace(routeguard.ScreenHome)
	if h.model.Current() != routeguard.ScreenHome {
		t.Fatalf("Current = %q after Replace", h.model.Current())
	}
	h.model.Replace(routeguard.ScreenHome)

	messages := h.sender.all()
	if len(messages) != 1 || messages[0] != screenMsg(routeguard.ScreenHome) {
		t.Fatalf("sent %v, want exactly one screen message", messages)
	}
}

func TestGuardDrivesModel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	guard := routeguard.New(h.session, h.model, slog.New(slog.DiscardHandler))
	defer guard.Stop()

	h.session.set(authstate.Snapshot{State: authstate.StateAuthenticatedReady, Session: &session.Session{AccessToken: "a"}, User: readyUser})
	if h.model.Current() != routeguard.ScreenHome {
		t.Fatalf("Current = %q after sign-in, want home", h.model.Current())
	}

	h.session.set(authstate.Snapshot{State: authstate.StateUnauthenticated})
	if h.model.Current() != routeguard.ScreenLogin {
		t.Fatalf("Current = %q after sign-out, want login", h.model.Current())
	}
}

func TestEnteringListScreenLoadsAndRenders(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.update(t, SnapshotMsg{State: authstate.StateAuthenticatedReady, Session: &session.Session{AccessToken: "a"}, User: readyUser})

	h.model.Replace(routeguard.ScreenHome)
	h.run(t, h.update(t, screenMsg(routeguard.ScreenHome)))
	h.sync(t, h.sent)

	view := h.model.View()
	for _, want := range []string{"Sent", "Received", "Mario Rossi", "11", "Ferie", "Approvato"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if len(h.remote.loads) != 1 || h.remote.loads[0] != requests.ListSent {
		t.Errorf("loads = %v, want [sent]", h.remote.loads)
	}
}

func TestSwitchListStaysInsideEventLoop(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.model.Replace(routeguard.ScreenSent)
	before := len(h.sender.all())

	cmd := h.update(t, tea.KeyMsg{Type: tea.KeyTab})
	if h.model.Current() != routeguard.ScreenReceived {
		t.Fatalf("Current = %q after tab, want received", h.model.Current())
	}
	if len(h.sender.all()) != before {
		t.Error("tab sent a message to the program from inside Update")
	}
	h.run(t, cmd)
	h.sync(t, h.received)
	if view := h.model.View(); !strings.Contains(view, "Permesso (rol)") {
		t.Errorf("received view:\n%s", view)
	}
}

func TestApproveSelectedReceivedRequest(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.model.Replace(routeguard.ScreenReceived)
	h.received.Load(context.Background())
	h.sync(t, h.received)

	h.update(t, keyRunes("j"))
	h.run(t, h.update(t, keyRunes("a")))

	if len(h.remote.updated) != 1 {
		t.Fatalf("updates = %+v, want one", h.remote.updated)
	}
	update := h.remote.updated[0]
	if update.ID != 43 || update.Status != requests.StatusApproved || update.PermitType != "rol" {
		t.Errorf("update = %+v, want 43 approved keeping its permit type", update)
	}
}

func TestApproveIgnoredOnSentList(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.model.Replace(routeguard.ScreenSent)
	h.sent.Load(context.Background())
	h.sync(t, h.sent)

	if cmd := h.update(t, keyRunes("a")); cmd != nil {
		t.Error("approve produced a command on the sent list")
	}
}

func TestDeleteSelected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.model.Replace(routeguard.ScreenSent)
	h.sent.Load(context.Background())
	h.sync(t, h.sent)

	h.run(t, h.update(t, keyRunes("d")))
	if len(h.remote.deleted) != 1 || h.remote.deleted[0] != 11 {
		t.Errorf("deleted = %v, want [11]", h.remote.deleted)
	}
	h.sync(t, h.sent)
	if view := h.model.View(); !strings.Contains(view, "No requests.") {
		t.Errorf("view after delete:\n%s", view)
	}
}

func TestSignInFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	if cmd := h.update(t, tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatal("sign-in started before the session settled")
	}

	h.update(t, SnapshotMsg{State: authstate.StateUnauthenticated})
	h.session.signInErr = tokenservice.ErrCancelled
	cmd := h.update(t, tea.KeyMsg{Type: tea.KeyEnter})
	if !h.model.signingIn {
		t.Fatal("signingIn not set after enter")
	}
	h.update(t, AuthURLMsg("https://login.example/authorize?state=x"))
	if view := h.model.View(); !strings.Contains(view, "https://login.example/authorize?state=x") {
		t.Errorf("view during sign-in:\n%s", view)
	}

	h.run(t, cmd)
	if h.model.signingIn {
		t.Error("signingIn still set after completion")
	}
	if view := h.model.View(); !strings.Contains(view, "Sign-in cancelled.") {
		t.Errorf("view after cancelled sign-in:\n%s", view)
	}
	if h.session.signIns != 1 {
		t.Errorf("SignIn called %d times, want 1", h.session.signIns)
	}
}

func TestNoticeShownOnLogin(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.update(t, SnapshotMsg{State: authstate.StateUnauthenticated})
	h.update(t, NoticeMsg{Kind: authstate.NoticeSessionExpired, Message: "session expired, please sign in again"})
	if view := h.model.View(); !strings.Contains(view, "session expired, please sign in again") {
		t.Errorf("view:\n%s", view)
	}
}

func TestSignOutKey(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.model.Replace(routeguard.ScreenHome)
	h.run(t, h.update(t, keyRunes("o")))
	if h.session.signOuts != 1 {
		t.Errorf("SignOut called %d times, want 1", h.session.signOuts)
	}
}

func TestLogHandlerSendsSummary(t *testing.T) {
	t.Parallel()
	handler := NewLogHandler(slog.LevelWarn)
	logger := slog.New(handler).With("component", "reconciler")

	logger.Warn("dropped before SetSender")
	sender := &recordingSender{}
	handler.SetSender(sender)
	logger.Info("below level")
	logger.Warn("failed to load requests", "status", 502)

	messages := sender.all()
	if len(messages) != 1 {
		t.Fatalf("sent %d messages, want 1: %v", len(messages), messages)
	}
	record := messages[0].(logRecordMsg)
	if record.Summary != "failed to load requests (component=reconciler, status=502)" {
		t.Errorf("summary = %q", record.Summary)
	}
}
