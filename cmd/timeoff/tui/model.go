// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/timeoff/lib/authstate"
	"github.com/bureau-foundation/timeoff/lib/reconciler"
	"github.com/bureau-foundation/timeoff/lib/requests"
	"github.com/bureau-foundation/timeoff/lib/routeguard"
	"github.com/bureau-foundation/timeoff/lib/tokenservice"
)

// Session is the part of *authstate.Controller the UI drives.
type Session interface {
	Start(ctx context.Context)
	Snapshot() authstate.Snapshot
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
}

// Sender delivers a message into a running program. *tea.Program
// implements it.
type Sender interface {
	Send(tea.Msg)
}

// SnapshotMsg carries a session controller state change.
type SnapshotMsg authstate.Snapshot

// ListMsg carries a reconciler state change.
type ListMsg struct {
	Key   requests.ListKey
	State reconciler.State
}

// NoticeMsg carries a forced sign-out notice.
type NoticeMsg authstate.Notice

// AuthURLMsg carries the authorization URL of a sign-in in progress.
type AuthURLMsg string

type screenMsg routeguard.Screen

type startedMsg struct{}

type signInDoneMsg struct{ err error }

type signOutDoneMsg struct{ err error }

type operationDoneMsg struct{}

// Config configures a Model.
type Config struct {
	Session  Session
	Sent     *reconciler.List
	Received *reconciler.List

	// Theme and Keys default to DefaultTheme and DefaultKeyMap.
	Theme *Theme
	Keys  *KeyMap
}

// navigation is the current screen, shared between the model copies
// bubbletea makes and the route guard, which calls Replace from
// controller goroutines.
type navigation struct {
	mu     sync.Mutex
	screen routeguard.Screen
	sender Sender
}

// set switches the screen without notifying the program. Returns
// whether the screen changed.
func (n *navigation) set(screen routeguard.Screen) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.screen == screen {
		return false
	}
	n.screen = screen
	return true
}

// Model is the bubbletea model of the terminal UI.
type Model struct {
	ctx      context.Context
	session  Session
	lists    map[requests.ListKey]*reconciler.List
	theme    Theme
	keys     KeyMap
	nav      *navigation
	spinner  spinner.Model
	snapshot authstate.Snapshot
	states   map[requests.ListKey]reconciler.State
	cursor   int

	signingIn    bool
	cancelSignIn context.CancelFunc
	authURL      string
	notice       string
	status       string

	width int
}

// NewModel returns a model on the sign-in screen. Session operations
// run under ctx.
func NewModel(ctx context.Context, cfg Config) Model {
	theme := DefaultTheme
	if cfg.Theme != nil {
		theme = *cfg.Theme
	}
	keys := DefaultKeyMap
	if cfg.Keys != nil {
		keys = *cfg.Keys
	}
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(theme.ActiveTab)

	return Model{
		ctx:     ctx,
		session: cfg.Session,
		lists: map[requests.ListKey]*reconciler.List{
			requests.ListSent:     cfg.Sent,
			requests.ListReceived: cfg.Received,
		},
		theme:    theme,
		keys:     keys,
		nav:      &navigation{screen: routeguard.ScreenLogin},
		spinner:  spin,
		snapshot: cfg.Session.Snapshot(),
		states:   make(map[requests.ListKey]reconciler.State),
	}
}

// SetSender connects the model to its program. Replace calls made
// before this only switch the screen.
func (model Model) SetSender(sender Sender) {
	model.nav.mu.Lock()
	defer model.nav.mu.Unlock()
	model.nav.sender = sender
}

// Current implements routeguard.Navigator.
func (model Model) Current() routeguard.Screen {
	model.nav.mu.Lock()
	defer model.nav.mu.Unlock()
	return model.nav.screen
}

// Replace implements routeguard.Navigator. Safe to call from any
// goroutine except the program's own event loop.
func (model Model) Replace(screen routeguard.Screen) {
	model.nav.mu.Lock()
	if model.nav.screen == screen {
		model.nav.mu.Unlock()
		return
	}
	model.nav.screen = screen
	sender := model.nav.sender
	model.nav.mu.Unlock()
	if sender != nil {
		sender.Send(screenMsg(screen))
	}
}

// Init implements tea.Model. Resolves the persisted session.
func (model Model) Init() tea.Cmd {
	session := model.session
	ctx := model.ctx
	return tea.Batch(model.spinner.Tick, func() tea.Msg {
		session.Start(ctx)
		return startedMsg{}
	})
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		return model, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		model.spinner, cmd = model.spinner.Update(message)
		return model, cmd

	case SnapshotMsg:
		model.snapshot = authstate.Snapshot(message)
		return model, nil

	case startedMsg:
		model.snapshot = model.session.Snapshot()
		return model, nil

	case ListMsg:
		model.states[message.Key] = message.State
		model.clampCursor()
		return model, nil

	case NoticeMsg:
		model.notice = message.Message
		return model, nil

	case AuthURLMsg:
		model.authURL = string(message)
		return model, nil

	case logRecordMsg:
		model.status = message.Summary
		return model, tea.Tick(logRecordFadeDelay, func(_ time.Time) tea.Msg { return logRecordFadeMsg{} })

	case logRecordFadeMsg:
		model.status = ""
		return model, nil

	case screenMsg:
		return model.enter(routeguard.Screen(message))

	case signInDoneMsg:
		model.signingIn = false
		model.authURL = ""
		model.cancelSignIn = nil
		switch {
		case message.err == nil:
			model.notice = ""
		case errors.Is(message.err, tokenservice.ErrCancelled):
			model.status = "Sign-in cancelled."
		default:
			model.status = fmt.Sprintf("Sign-in failed: %v", message.err)
		}
		return model, nil

	case signOutDoneMsg:
		if message.err != nil {
			model.status = fmt.Sprintf("Sign-out: %v", message.err)
		}
		return model, nil

	case operationDoneMsg:
		return model, nil

	case tea.KeyMsg:
		if key.Matches(message, model.keys.Quit) {
			if model.cancelSignIn != nil {
				model.cancelSignIn()
			}
			return model, tea.Quit
		}
		if model.Current() == routeguard.ScreenLogin {
			return model.handleLoginKeys(message)
		}
		return model.handleListKeys(message)
	}
	return model, nil
}

// enter makes screen current and loads its list. Used for switches the
// model makes itself and for those the guard announced.
func (model Model) enter(screen routeguard.Screen) (tea.Model, tea.Cmd) {
	model.nav.set(screen)
	model.cursor = 0
	model.status = ""
	if screen.Public() {
		return model, nil
	}
	return model, model.loadCmd(model.activeKey())
}

func (model Model) handleLoginKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Cancel):
		if model.cancelSignIn != nil {
			model.cancelSignIn()
		}
	case key.Matches(message, model.keys.SignIn):
		if model.signingIn || !model.snapshot.State.Settled() {
			return model, nil
		}
		ctx, cancel := context.WithCancel(model.ctx)
		model.signingIn = true
		model.cancelSignIn = cancel
		model.status = ""
		session := model.session
		return model, func() tea.Msg {
			defer cancel()
			return signInDoneMsg{err: session.SignIn(ctx)}
		}
	}
	return model, nil
}

func (model Model) handleListKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	activeKey := model.activeKey()
	switch {
	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}
	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.states[activeKey].Items)-1 {
			model.cursor++
		}
	case key.Matches(message, model.keys.SwitchList):
		next := routeguard.ScreenReceived
		if activeKey == requests.ListReceived {
			next = routeguard.ScreenSent
		}
		return model.enter(next)
	case key.Matches(message, model.keys.Reload):
		return model, model.loadCmd(activeKey)
	case key.Matches(message, model.keys.Approve):
		if activeKey == requests.ListReceived {
			return model, model.setStatusCmd(requests.StatusApproved)
		}
	case key.Matches(message, model.keys.Reject):
		if activeKey == requests.ListReceived {
			return model, model.setStatusCmd(requests.StatusRejected)
		}
	case key.Matches(message, model.keys.Delete):
		record, ok := model.selected()
		if !ok {
			return model, nil
		}
		list, ctx := model.lists[activeKey], model.ctx
		return model, func() tea.Msg {
			list.Remove(ctx, record.ID)
			return operationDoneMsg{}
		}
	case key.Matches(message, model.keys.SignOut):
		session, ctx := model.session, model.ctx
		return model, func() tea.Msg {
			return signOutDoneMsg{err: session.SignOut(ctx)}
		}
	}
	return model, nil
}

// activeKey is the list the current screen shows.
func (model Model) activeKey() requests.ListKey {
	if model.Current() == routeguard.ScreenReceived {
		return requests.ListReceived
	}
	return requests.ListSent
}

func (model Model) loadCmd(listKey requests.ListKey) tea.Cmd {
	list, ctx := model.lists[listKey], model.ctx
	if list == nil {
		return nil
	}
	return func() tea.Msg {
		list.Load(ctx)
		return operationDoneMsg{}
	}
}

func (model Model) setStatusCmd(status requests.Status) tea.Cmd {
	record, ok := model.selected()
	if !ok {
		return nil
	}
	list, ctx := model.lists[requests.ListReceived], model.ctx
	patch := requests.Patch{ID: record.ID, Start: record.Start, End: record.End, Status: status}
	return func() tea.Msg {
		// Failures are recorded on the list and arrive as a ListMsg.
		_ = list.Update(ctx, patch)
		return operationDoneMsg{}
	}
}

func (model Model) selected() (requests.Record, bool) {
	items := model.states[model.activeKey()].Items
	if model.cursor < 0 || model.cursor >= len(items) {
		return requests.Record{}, false
	}
	return items[model.cursor], true
}

func (model *Model) clampCursor() {
	count := len(model.states[model.activeKey()].Items)
	if model.cursor >= count {
		model.cursor = count - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
}
