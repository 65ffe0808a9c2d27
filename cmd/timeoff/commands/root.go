// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/bureau-foundation/timeoff/cmd/timeoff/cli"
	"github.com/bureau-foundation/timeoff/lib/version"
)

// Root builds and returns the complete timeoff command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "timeoff",
		Description: `timeoff: holiday, permit, sick leave, and overtime requests.

Sign in with your Microsoft account, submit requests, and review the
requests of your team from the terminal.`,
		Subcommands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			requestsCommand(),
			uiCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					version.Print(os.Stdout, "timeoff")
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Sign in (the session is stored encrypted)",
				Command:     "timeoff login --config ~/.config/timeoff.yaml",
			},
			{
				Description: "List your requests",
				Command:     "timeoff requests list",
			},
			{
				Description: "Approve a request awaiting your review",
				Command:     "timeoff requests update 42 --received --status approved",
			},
			{
				Description: "Open the interactive UI",
				Command:     "timeoff ui",
			},
		},
	}
}
