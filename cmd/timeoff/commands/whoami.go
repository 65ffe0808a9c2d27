// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/timeoff/cmd/timeoff/cli"
)

type whoamiParams struct {
	cli.JSONOutput
}

// whoamiResult is the --json shape.
type whoamiResult struct {
	SignedIn  bool       `json:"signed_in"`
	UserID    int64      `json:"user_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func whoamiCommand() *cli.Command {
	var options appOptions
	var params whoamiParams
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the signed-in user",
		Description: `Show the signed-in user and when the session expires.

Exits with status 4 when no session is stored.`,
		Examples: []cli.Example{
			{Description: "Check the current session from a script", Command: "timeoff whoami --json"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("whoami", pflag.ContinueOnError)
			options.addFlags(flagSet)
			params.AddFlag(flagSet)
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
			return runWhoami(ctx, a, params)
		},
	}
}

func runWhoami(ctx context.Context, a *app, params whoamiParams) error {
	snapshot, err := a.requireSession(ctx)
	if errors.Is(err, errNoSession) {
		if done, emitErr := params.EmitJSON(a.out, whoamiResult{}); done {
			if emitErr != nil {
				return emitErr
			}
		} else {
			fmt.Fprintln(a.out, "Not signed in.")
		}
		return &cli.ExitError{Code: 4}
	}
	if err != nil {
		return err
	}

	user := snapshot.User
	result := whoamiResult{
		SignedIn: true,
		UserID:   user.ID,
		Name:     user.DisplayName(),
		Email:    user.Email,
		Role:     string(user.Role),
	}
	if expiry, ok := snapshot.Session.Expiry(); ok {
		result.ExpiresAt = &expiry
	}
	if done, err := params.EmitJSON(a.out, result); done {
		return err
	}

	writer := tabwriter.NewWriter(a.out, 2, 0, 2, ' ', 0)
	fmt.Fprintf(writer, "User:\t%s\n", result.Name)
	fmt.Fprintf(writer, "Email:\t%s\n", result.Email)
	fmt.Fprintf(writer, "Role:\t%s\n", result.Role)
	fmt.Fprintf(writer, "ID:\t%d\n", result.UserID)
	if result.ExpiresAt != nil {
		fmt.Fprintf(writer, "Expires:\t%s\n", result.ExpiresAt.Local().Format("2006-01-02 15:04"))
	} else {
		fmt.Fprintf(writer, "Expires:\tunknown\n")
	}
	return writer.Flush()
}
