// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/timeoff/cmd/timeoff/cli"
	"github.com/bureau-foundation/timeoff/cmd/timeoff/tui"
	"github.com/bureau-foundation/timeoff/lib/authstate"
	"github.com/bureau-foundation/timeoff/lib/reconciler"
	"github.com/bureau-foundation/timeoff/lib/requests"
	"github.com/bureau-foundation/timeoff/lib/routeguard"
)

func uiCommand() *cli.Command {
	var options appOptions
	return &cli.Command{
		Name:    "ui",
		Summary: "Open the interactive terminal UI",
		Description: `Open the interactive terminal UI.

Shows the sign-in screen until a session exists, then your sent
requests and the requests awaiting your review. Warnings appear in the
footer instead of on stderr while the UI is open.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ui", pflag.ContinueOnError)
			options.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			handler := tui.NewLogHandler(slog.LevelWarn)
			a, err := openApp(ctx, options, slog.New(handler))
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			program, detach, err := newProgram(ctx, a)
			if err != nil {
				return err
			}
			defer detach()
			handler.SetSender(program)
			if _, err := program.Run(); err != nil {
				return cli.Internal("terminal UI: %w", err)
			}
			return nil
		},
	}
}

// newProgram builds the UI over a and connects every state source to
// it: controller snapshots, list states, notices, sign-in URLs, and the
// route guard. detach undoes the connections.
func newProgram(ctx context.Context, a *app, options ...tea.ProgramOption) (*tea.Program, func(), error) {
	sent, err := a.newList(requests.ListSent)
	if err != nil {
		return nil, nil, err
	}
	received, err := a.newList(requests.ListReceived)
	if err != nil {
		return nil, nil, err
	}

	model := tui.NewModel(ctx, tui.Config{
		Session:  a.controller,
		Sent:     sent,
		Received: received,
	})
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, options...)...)
	model.SetSender(program)

	var cancels []func()
	cancels = append(cancels, a.controller.Subscribe(func(snapshot authstate.Snapshot) {
		program.Send(tui.SnapshotMsg(snapshot))
	}))
	for _, list := range []*reconciler.List{sent, received} {
		listKey := list.Key()
		cancels = append(cancels, list.Subscribe(func(state reconciler.State) {
			program.Send(tui.ListMsg{Key: listKey, State: state})
		}))
	}
	a.setNoticeSink(func(notice authstate.Notice) {
		program.Send(tui.NoticeMsg(notice))
	})
	if a.presenter != nil {
		a.presenter.setSink(func(authURL string) {
			program.Send(tui.AuthURLMsg(authURL))
		})
	}
	guard := routeguard.New(a.controller, model, a.logger)

	detach := func() {
		guard.Stop()
		for _, cancel := range cancels {
			cancel()
		}
		a.setNoticeSink(nil)
		if a.presenter != nil {
			a.presenter.setSink(nil)
		}
	}
	return program, detach, nil
}
