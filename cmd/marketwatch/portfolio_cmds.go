package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"marketwatch/internal/domain"
	"marketwatch/internal/poll"
)

// waitNames blocks until the resolver has finished or timeout passes.
func waitNames(ctx context.Context, e *env, timeout time.Duration) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := e.app.Resolver().Wait(wctx); err != nil {
		e.log.Debug("name resolution still running", "error", err)
	}
}

type portfolioCmd struct {
	wait     time.Duration
	currency string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "list holdings" }
func (*portfolioCmd) Usage() string {
	return `marketwatch portfolio [-wait <duration>] [-currency <code>]

  Lists holdings. Names the service does not know are looked up in the
  background for up to -wait before printing.
`
}

func (c *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.wait, "wait", 10*time.Second, "How long to wait for missing names.")
	f.StringVar(&c.currency, "currency", displayCurrency, "ISO currency code for amounts.")
}

func (c *portfolioCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	displayCurrency = c.currency
	return session(ctx, func(e *env) error {
		if err := e.app.Load(ctx, poll.TargetPortfolio); err != nil {
			return err
		}
		waitNames(ctx, e, c.wait)
		renderHoldings(os.Stdout, e.app.Snapshot().Holdings)
		return nil
	})
}

type tradeCmd struct {
	side string
}

func (*tradeCmd) Name() string     { return "trade" }
func (*tradeCmd) Synopsis() string { return "record a buy or sell" }
func (*tradeCmd) Usage() string {
	return `marketwatch trade [-side BUY|SELL] <symbol> <quantity> <price>
`
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.side, "side", string(domain.Buy), "BUY or SELL.")
}

func (c *tradeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "trade needs <symbol> <quantity> <price>")
		return subcommands.ExitUsageError
	}
	qty, err := strconv.ParseInt(f.Arg(1), 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid quantity %q\n", f.Arg(1))
		return subcommands.ExitUsageError
	}
	price, err := decimal.NewFromString(f.Arg(2))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid price %q\n", f.Arg(2))
		return subcommands.ExitUsageError
	}
	txn := domain.Transaction{Symbol: f.Arg(0), Quantity: qty, Price: price, Side: domain.Side(c.side)}

	return session(ctx, func(e *env) error {
		e.app.OpenTradeForm()
		if err := e.app.RecordTransaction(ctx, txn); err != nil {
			return err
		}
		waitNames(ctx, e, 5*time.Second)
		renderHoldings(os.Stdout, e.app.Snapshot().Holdings)
		return nil
	})
}

type refreshNamesCmd struct{}

func (*refreshNamesCmd) Name() string             { return "refresh-names" }
func (*refreshNamesCmd) Synopsis() string         { return "forget cached names and look them up again" }
func (*refreshNamesCmd) Usage() string            { return "marketwatch refresh-names\n" }
func (*refreshNamesCmd) SetFlags(_ *flag.FlagSet) {}

func (*refreshNamesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return session(ctx, func(e *env) error {
		if err := e.app.RefreshNames(ctx); err != nil {
			return err
		}
		waitNames(ctx, e, time.Minute)
		fmt.Printf("%d names cached\n", e.app.Names().Len())
		renderHoldings(os.Stdout, e.app.Snapshot().Holdings)
		return nil
	})
}
