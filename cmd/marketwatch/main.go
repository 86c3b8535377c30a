// Command marketwatch is a terminal client for the market-watch service:
// price alerts, portfolio holdings and index levels.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", os.Getenv("MARKETWATCH_CONFIG"), "Path to the YAML config file (defaults only when empty)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&loginCmd{}, "session")
	commander.Register(&logoutCmd{}, "session")
	commander.Register(&themeCmd{}, "session")

	commander.Register(&alertsCmd{}, "alerts")
	commander.Register(&addAlertCmd{}, "alerts")
	commander.Register(&deleteAlertCmd{}, "alerts")
	commander.Register(&clearAlertsCmd{}, "alerts")

	commander.Register(&portfolioCmd{}, "portfolio")
	commander.Register(&tradeCmd{}, "portfolio")
	commander.Register(&refreshNamesCmd{}, "portfolio")

	commander.Register(&searchCmd{}, "market")
	commander.Register(&indicesCmd{}, "market")
	commander.Register(&historyCmd{}, "market")
	commander.Register(&newsCmd{}, "market")
	commander.Register(&analyzeCmd{}, "market")

	commander.Register(&watchCmd{}, "dashboard")
	commander.Register(&snapshotCmd{}, "dashboard")
	commander.Register(&archivedCmd{}, "dashboard")
	commander.Register(&exportCmd{}, "dashboard")
	commander.Register(&serveCmd{}, "dashboard")

	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := commander.Execute(ctx)
	cancel()
	os.Exit(int(code))
}
