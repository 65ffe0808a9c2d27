// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/timeoff/cmd/timeoff/cli"
	"github.com/bureau-foundation/timeoff/lib/tokenservice"
)

// loginTimeout bounds how long login waits for the browser redirect.
const loginTimeout = 5 * time.Minute

func loginCommand() *cli.Command {
	var options appOptions
	return &cli.Command{
		Name:    "login",
		Summary: "Sign in with your Microsoft account",
		Description: `Sign in with your Microsoft account.

Prints an authorization URL, waits for the identity provider to redirect
back to a local port, and stores the resulting session encrypted on
disk. An existing session is replaced.`,
		Examples: []cli.Example{
			{Description: "Sign in", Command: "timeoff login"},
			{Description: "Sign in for this process only", Command: "timeoff login --ephemeral"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
			options.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			a, err := openApp(ctx, options, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, cancel := context.WithTimeout(ctx, loginTimeout)
			defer cancel()
			return runLogin(ctx, a)
		},
	}
}

func runLogin(ctx context.Context, a *app) error {
	a.controller.Start(ctx)
	if err := a.controller.SignIn(ctx); err != nil {
		if errors.Is(err, tokenservice.ErrCancelled) {
			fmt.Fprintln(a.errOut, "Sign-in cancelled.")
			return &cli.ExitError{Code: 1}
		}
		return classify("signing in", err)
	}
	snapshot, err := a.controller.AwaitProfile(ctx)
	if err != nil {
		// The session is stored; the profile can be fetched later.
		a.logger.Warn("loading profile after sign-in failed", "error", err)
		fmt.Fprintln(a.out, "Signed in.")
		return nil
	}
	if snapshot.User == nil {
		fmt.Fprintln(a.out, "Signed in.")
		return nil
	}
	fmt.Fprintf(a.out, "Signed in as %s.\n", snapshot.User.DisplayName())
	return nil
}

func logoutCommand() *cli.Command {
	var options appOptions
	return &cli.Command{
		Name:    "logout",
		Summary: "Sign out and delete the stored session",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("logout", pflag.ContinueOnError)
			options.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}
			a, err := openApp(ctx, options, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return runLogout(ctx, a)
		},
	}
}

func runLogout(ctx context.Context, a *app) error {
	a.controller.Start(ctx)
	if err := a.controller.SignOut(ctx); err != nil {
		return cli.Internal("%w", err)
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}
