package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"marketwatch/internal/news"
	"marketwatch/internal/poll"
)

type searchCmd struct {
	portfolio bool
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "look up symbols" }
func (*searchCmd) Usage() string {
	return `marketwatch search [-portfolio] <text>

  Runs the symbol lookup behind the alert form, or with -portfolio the one
  behind the trade form.
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.portfolio, "portfolio", false, "Use the authenticated trade-form lookup.")
}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	return session(ctx, func(e *env) error {
		ch := e.app.AlertSearch()
		if c.portfolio {
			ch = e.app.PortfolioSearch()
			e.app.SearchPortfolio(f.Arg(0))
		} else {
			e.app.SearchAlerts(f.Arg(0))
		}
		ch.Flush()
		renderSuggestions(os.Stdout, ch.State())
		return nil
	})
}

type indicesCmd struct{}

func (*indicesCmd) Name() string             { return "indices" }
func (*indicesCmd) Synopsis() string         { return "show headline index levels" }
func (*indicesCmd) Usage() string            { return "marketwatch indices\n" }
func (*indicesCmd) SetFlags(_ *flag.FlagSet) {}

func (*indicesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return session(ctx, func(e *env) error {
		if err := e.app.Load(ctx, poll.TargetIndices); err != nil {
			return err
		}
		renderIndices(os.Stdout, e.app.Snapshot().Indices)
		return nil
	})
}

type historyCmd struct{}

func (*historyCmd) Name() string             { return "history" }
func (*historyCmd) Synopsis() string         { return "show recent prices for a symbol" }
func (*historyCmd) Usage() string            { return "marketwatch history <symbol>\n" }
func (*historyCmd) SetFlags(_ *flag.FlagSet) {}

func (*historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	return session(ctx, func(e *env) error {
		points, err := e.app.StockHistory(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		for _, p := range points {
			fmt.Printf("  %-12s %s\n", dimStyle.Render(p.Date), p.Price.StringFixed(2))
		}
		return nil
	})
}

type newsCmd struct {
	holdings bool
	source   string
	since    time.Duration
}

func (*newsCmd) Name() string     { return "news" }
func (*newsCmd) Synopsis() string { return "show market or holdings headlines" }
func (*newsCmd) Usage() string {
	return `marketwatch news [-holdings [-source google|alpaca] [-since 72h]]

  Without -holdings, shows the service's market headlines. With -holdings,
  gathers recent headlines for every portfolio symbol.
`
}

func (c *newsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.holdings, "holdings", false, "Headlines for portfolio symbols.")
	f.StringVar(&c.source, "source", "google", "Holdings headline source: google or alpaca.")
	f.DurationVar(&c.since, "since", 72*time.Hour, "How far back to look for holdings headlines.")
}

func (c *newsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return session(ctx, func(e *env) error {
		if !c.holdings {
			items, err := e.app.MarketNews(ctx)
			if err != nil {
				return err
			}
			for _, n := range items {
				fmt.Printf("%s\n  %s %s\n", n.Title, dimStyle.Render(n.Publisher+" "+n.Time), n.Link)
			}
			return nil
		}

		var src news.Source
		switch c.source {
		case "google":
			src = news.NewGoogleSource("https://news.google.com", e.cfg.API.Timeout)
		case "alpaca":
			src = news.NewAlpacaSource(e.cfg.Alpaca.APIKey, e.cfg.Alpaca.APISecret)
		default:
			return fmt.Errorf("unknown news source %q", c.source)
		}

		if err := e.app.Load(ctx, poll.TargetPortfolio); err != nil {
			return err
		}
		holdings := e.app.Snapshot().Holdings
		symbols := make([]string, 0, len(holdings))
		for _, h := range holdings {
			symbols = append(symbols, h.Symbol)
		}

		items, err := news.Gather(ctx, src, symbols, time.Now().Add(-c.since), 4)
		if err != nil {
			return err
		}
		for _, h := range items {
			fmt.Printf("%s %s\n  %s %s\n",
				symbolStyle.Render(fmt.Sprintf("%-12s", h.Symbol)), h.Title,
				dimStyle.Render(h.Time.Local().Format("Jan 02 15:04")+" "+h.Source), h.Link)
		}
		return nil
	})
}

type analyzeCmd struct{}

func (*analyzeCmd) Name() string             { return "analyze" }
func (*analyzeCmd) Synopsis() string         { return "ask the service for a symbol analysis" }
func (*analyzeCmd) Usage() string            { return "marketwatch analyze <symbol>\n" }
func (*analyzeCmd) SetFlags(_ *flag.FlagSet) {}

func (*analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	return session(ctx, func(e *env) error {
		text, err := e.app.AnalyzeStock(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	})
}
