package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"marketwatch/internal/poll"
)

type alertsCmd struct{}

func (*alertsCmd) Name() string             { return "alerts" }
func (*alertsCmd) Synopsis() string         { return "list price alerts" }
func (*alertsCmd) Usage() string            { return "marketwatch alerts\n" }
func (*alertsCmd) SetFlags(_ *flag.FlagSet) {}

func (*alertsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return session(ctx, func(e *env) error {
		if err := e.app.Load(ctx, poll.TargetAlerts); err != nil {
			return err
		}
		renderAlerts(os.Stdout, e.app.Snapshot().Alerts)
		return nil
	})
}

type addAlertCmd struct{}

func (*addAlertCmd) Name() string     { return "add-alert" }
func (*addAlertCmd) Synopsis() string { return "create a price alert" }
func (*addAlertCmd) Usage() string {
	return `marketwatch add-alert <symbol> <target>

  Creates an alert that fires when <symbol> reaches <target>.
`
}
func (*addAlertCmd) SetFlags(_ *flag.FlagSet) {}

func (*addAlertCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "add-alert needs <symbol> <target>")
		return subcommands.ExitUsageError
	}
	target, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid target %q: %v\n", f.Arg(1), err)
		return subcommands.ExitUsageError
	}
	return session(ctx, func(e *env) error {
		if err := e.app.SubmitAlert(ctx, f.Arg(0), target); err != nil {
			return err
		}
		renderAlerts(os.Stdout, e.app.Snapshot().Alerts)
		return nil
	})
}

type deleteAlertCmd struct{}

func (*deleteAlertCmd) Name() string             { return "delete-alert" }
func (*deleteAlertCmd) Synopsis() string         { return "delete a price alert by id" }
func (*deleteAlertCmd) Usage() string            { return "marketwatch delete-alert <id>\n" }
func (*deleteAlertCmd) SetFlags(_ *flag.FlagSet) {}

func (*deleteAlertCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	return session(ctx, func(e *env) error {
		if err := e.app.Load(ctx, poll.TargetAlerts); err != nil {
			return err
		}
		if err := e.app.DeleteAlert(ctx, f.Arg(0)); err != nil {
			return err
		}
		renderAlerts(os.Stdout, e.app.Snapshot().Alerts)
		return nil
	})
}

type clearAlertsCmd struct {
	yes bool
}

func (*clearAlertsCmd) Name() string     { return "clear-alerts" }
func (*clearAlertsCmd) Synopsis() string { return "delete every price alert" }
func (*clearAlertsCmd) Usage() string    { return "marketwatch clear-alerts -yes\n" }
func (c *clearAlertsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Confirm deleting all alerts.")
}

func (c *clearAlertsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "refusing to clear alerts without -yes")
		return subcommands.ExitUsageError
	}
	return session(ctx, func(e *env) error {
		if err := e.app.ClearAlerts(ctx); err != nil {
			return err
		}
		renderAlerts(os.Stdout, e.app.Snapshot().Alerts)
		return nil
	})
}
