// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/timeoff/cmd/timeoff/cli"
	"github.com/bureau-foundation/timeoff/lib/requests"
)

func requestsCommand() *cli.Command {
	return &cli.Command{
		Name:    "requests",
		Summary: "List, submit, and review time-off requests",
		Description: `List, submit, and review time-off requests.

Requests you submitted form the "sent" list. Requests awaiting your
approval form the "received" list; select it with --received.`,
		Subcommands: []*cli.Command{
			requestsListCommand(),
			requestsSubmitCommand(),
			requestsUpdateCommand(),
			requestsDeleteCommand(),
		},
	}
}

// listSelector picks the sent or received list.
type listSelector struct {
	Received bool
}

func (s *listSelector) addFlag(flagSet *pflag.FlagSet) {
	flagSet.BoolVar(&s.Received, "received", false, "use the requests awaiting your approval")
}

func (s listSelector) key() requests.ListKey {
	if s.Received {
		return requests.ListReceived
	}
	return requests.ListSent
}

// --- list ---

type listParams struct {
	cli.JSONOutput
	listSelector
	Date string
}

// listEntry is the --json shape of a record.
type listEntry struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	Kind               string    `json:"kind"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Status             string    `json:"status"`
	PermitType         string    `json:"permit_type,omitempty"`
	MedicalCertificate string    `json:"medical_certificate,omitempty"`
}

func entryOf(record requests.Record) listEntry {
	return listEntry{
		ID:                 record.ID,
		UserID:             record.UserID,
		Kind:               string(record.Kind),
		Start:              record.Start,
		End:                record.End,
		Status:             string(record.Status),
		PermitType:         record.PermitType,
		MedicalCertificate: record.MedicalCertificateRef,
	}
}

func requestsListCommand() *cli.Command {
	var options appOptions
	var params listParams
	return &cli.Command{
		Name:    "list",
		Summary: "List sent or received requests",
		Usage:   "timeoff requests list [--received] [--date DAY] [flags]",
		Examples: []cli.Example{
			{Description: "Your own requests", Command: "timeoff requests list"},
			{Description: "Requests to review that touch a given day", Command: "timeoff requests list --received --date 2026-03-02"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			options.addFlags(flagSet)
			params.addFlag(flagSet)
			params.AddFlag(flagSet)
			flagSet.StringVar(&params.Date, "date", "", "only requests overlapping this day (YYYY-MM-DD or DD/MM/YYYY)")
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
			return runRequestsList(ctx, a, params)
		},
	}
}

func runRequestsList(ctx context.Context, a *app, params listParams) error {
	var day time.Time
	if params.Date != "" {
		parsed, err := requests.ParseDay(params.Date)
		if err != nil {
			return classify("--date", err)
		}
		day = parsed
	}
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	list, err := a.newList(params.key())
	if err != nil {
		return err
	}
	list.SetDay(day)
	list.Load(ctx)
	if message := list.Err(); message != "" {
		return a.listFailure("loading requests", message)
	}

	records := list.Items()
	entries := make([]listEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, entryOf(record))
	}
	if done, err := params.EmitJSON(a.out, entries); done {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(a.out, "No requests.")
		return nil
	}
	writer := tabwriter.NewWriter(a.out, 2, 0, 3, ' ', 0)
	fmt.Fprintln(writer, "ID\tTYPE\tPERIOD\tSTATUS")
	for _, record := range records {
		label := record.Kind.Label()
		if record.PermitType != "" {
			label += " (" + record.PermitType + ")"
		}
		fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", record.ID, label, requests.FormatRange(record), record.Status.Label())
	}
	return writer.Flush()
}

// --- submit ---

type submitParams struct {
	cli.JSONOutput
	Category string
	SubType  string
	From     string
	To       string
	Start    string
	End      string
	AllDay   bool
}

func requestsSubmitCommand() *cli.Command {
	var options appOptions
	var params submitParams
	return &cli.Command{
		Name:    "submit",
		Summary: "Submit a new request",
		Description: `Submit a new absence or overtime request.

The --type values for absences are ferie, malattia, rol, and congedo;
for overtime they are diurno, notturno, and festivo. Sick leave and
--all-day requests span the working day; otherwise --start and --end
give the times on the first and last day, rounded to the half hour.`,
		Usage: "timeoff requests submit --type TYPE --from DAY [--to DAY] [--start HH:MM --end HH:MM | --all-day]",
		Examples: []cli.Example{
			{Description: "Two days of holiday", Command: "timeoff requests submit --type ferie --from 2026-08-10 --to 2026-08-11 --all-day"},
			{Description: "A two-hour permit", Command: "timeoff requests submit --type rol --from 2026-03-02 --start 09:00 --end 11:00"},
			{Description: "Evening overtime", Command: "timeoff requests submit --category overtime --type notturno --from 2026-03-02 --start 22:00 --end 23:30"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("submit", pflag.ContinueOnError)
			options.addFlags(flagSet)
			params.AddFlag(flagSet)
			flagSet.StringVar(&params.Category, "category", string(requests.CategoryAbsence), "absence or overtime")
			flagSet.StringVar(&params.SubType, "type", "", "request type (see description)")
			flagSet.StringVar(&params.From, "from", "", "first day")
			flagSet.StringVar(&params.To, "to", "", "last day (default: same as --from)")
			flagSet.StringVar(&params.Start, "start", "", "start time on the first day (HH:MM)")
			flagSet.StringVar(&params.End, "end", "", "end time on the last day (HH:MM)")
			flagSet.BoolVar(&params.AllDay, "all-day", false, "span whole working days")
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
			return runRequestsSubmit(ctx, a, params)
		},
	}
}

func runRequestsSubmit(ctx context.Context, a *app, params submitParams) error {
	category, err := requests.ParseCategory(params.Category)
	if err != nil {
		return cli.Validation("--category: %v", err)
	}
	if params.From == "" {
		return cli.Validation("--from is required")
	}
	from, err := requests.ParseDay(params.From)
	if err != nil {
		return classify("--from", err)
	}
	to := from
	if params.To != "" {
		if to, err = requests.ParseDay(params.To); err != nil {
			return classify("--to", err)
		}
	}

	startTime, _ := requests.SnapClock(params.Start)
	endTime, _ := requests.SnapClock(params.End)

	snapshot, err := a.requireSession(ctx)
	if err != nil {
		return err
	}
	draft, err := requests.BuildDraft(requests.DraftInput{
		Category:  category,
		SubType:   params.SubType,
		StartDate: from,
		EndDate:   to,
		StartTime: startTime,
		EndTime:   endTime,
		AllDay:    params.AllDay,
		UserID:    snapshot.User.ID,
	})
	if err != nil {
		return classify("invalid request", err)
	}

	list, err := a.newList(requests.ListSent)
	if err != nil {
		return err
	}
	created, err := list.Create(ctx, draft)
	if err != nil {
		if !a.controller.Snapshot().Authenticated() {
			return errNotSignedIn()
		}
		return classify("submitting request", err)
	}
	if done, err := params.EmitJSON(a.out, entryOf(created)); done {
		return err
	}
	fmt.Fprintf(a.out, "Submitted request %d: %s, %s (%s).\n",
		created.ID, created.Kind.Label(), requests.FormatRange(created), created.Status.Label())
	return nil
}

// --- update ---

type updateParams struct {
	listSelector
	Status string
	From   string
	To     string
	Start  string
	End    string
}

func requestsUpdateCommand() *cli.Command {
	var options appOptions
	var params updateParams
	return &cli.Command{
		Name:    "update",
		Summary: "Change the status or period of a request",
		Usage:   "timeoff requests update <id> [--received] [--status STATUS] [--from DAY] [--to DAY] [--start HH:MM] [--end HH:MM]",
		Examples: []cli.Example{
			{Description: "Approve a request awaiting review", Command: "timeoff requests update 42 --received --status approved"},
			{Description: "Move your own request by a day", Command: "timeoff requests update 7 --from 2026-03-03 --to 2026-03-03"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("update", pflag.ContinueOnError)
			options.addFlags(flagSet)
			params.addFlag(flagSet)
			flagSet.StringVar(&params.Status, "status", "", "new status: pending, approved, rejected, cancelled")
			flagSet.StringVar(&params.From, "from", "", "new first day")
			flagSet.StringVar(&params.To, "to", "", "new last day")
			flagSet.StringVar(&params.Start, "start", "", "new start time (HH:MM)")
			flagSet.StringVar(&params.End, "end", "", "new end time (HH:MM)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			id, err := requestID(args)
			if err != nil {
				return err
			}
			a, err := openApp(ctx, options, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return runRequestsUpdate(ctx, a, id, params)
		},
	}
}

func runRequestsUpdate(ctx context.Context, a *app, id int64, params updateParams) error {
	if params.Status == "" && params.From == "" && params.To == "" && params.Start == "" && params.End == "" {
		return cli.Validation("nothing to change: give --status, --from, --to, --start, or --end")
	}
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	list, err := a.newList(params.key())
	if err != nil {
		return err
	}
	list.Load(ctx)
	if message := list.Err(); message != "" {
		return a.listFailure("loading requests", message)
	}
	record, ok := list.Find(id)
	if !ok {
		return cli.NotFound("request %d is not in the %s list", id, params.key())
	}

	patch := requests.Patch{ID: id, Start: record.Start, End: record.End, Status: record.Status}
	if params.Status != "" {
		if patch.Status, err = requests.ParseStatus(params.Status); err != nil {
			return cli.Validation("--status: %v", err)
		}
	}
	if patch.Start, err = reschedule(record.Start, params.From, params.Start, "--from", "--start"); err != nil {
		return err
	}
	if patch.End, err = reschedule(record.End, params.To, params.End, "--to", "--end"); err != nil {
		return err
	}

	if err := list.Update(ctx, patch); err != nil {
		if !a.controller.Snapshot().Authenticated() {
			return errNotSignedIn()
		}
		return classify("updating request", err)
	}
	updated, _ := list.Find(id)
	fmt.Fprintf(a.out, "Updated request %d: %s (%s).\n", id, requests.FormatRange(updated), updated.Status.Label())
	return nil
}

// reschedule moves instant to another day and/or time of day, keeping
// whichever part was not given. Times snap to the half hour.
func reschedule(instant time.Time, day, clock, dayFlag, clockFlag string) (time.Time, error) {
	result := instant
	if day != "" {
		parsed, err := requests.ParseDay(day)
		if err != nil {
			return time.Time{}, classify(dayFlag, err)
		}
		result = time.Date(parsed.Year(), parsed.Month(), parsed.Day(),
			result.Hour(), result.Minute(), 0, 0, result.Location())
	}
	if clock != "" {
		snapped, ok := requests.SnapClock(clock)
		if !ok {
			return time.Time{}, cli.Validation("%s: expected HH:MM, got %q", clockFlag, clock)
		}
		hour, minute, _ := requests.ParseClock(snapped)
		result = time.Date(result.Year(), result.Month(), result.Day(), hour, minute, 0, 0, result.Location())
	}
	return result, nil
}

// --- delete ---

func requestsDeleteCommand() *cli.Command {
	var options appOptions
	var selector listSelector
	return &cli.Command{
		Name:    "delete",
		Summary: "Delete a request",
		Usage:   "timeoff requests delete <id> [--received]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("delete", pflag.ContinueOnError)
			options.addFlags(flagSet)
			selector.addFlag(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			id, err := requestID(args)
			if err != nil {
				return err
			}
			a, err := openApp(ctx, options, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return runRequestsDelete(ctx, a, id, selector)
		},
	}
}

func runRequestsDelete(ctx context.Context, a *app, id int64, selector listSelector) error {
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}
	list, err := a.newList(selector.key())
	if err != nil {
		return err
	}
	list.Load(ctx)
	if message := list.Err(); message != "" {
		return a.listFailure("loading requests", message)
	}
	list.Remove(ctx, id)
	if message := list.Err(); message != "" {
		return a.listFailure(fmt.Sprintf("deleting request %d", id), message)
	}
	fmt.Fprintf(a.out, "Deleted request %d.\n", id)
	return nil
}

func requestID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, cli.Validation("expected exactly one request id")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, cli.Validation("invalid request id %q", args[0])
	}
	return id, nil
}
