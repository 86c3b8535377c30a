package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"marketwatch/internal/archive"
	"marketwatch/internal/report"
	"marketwatch/internal/util"
)

// archiveSnapshot writes the current holdings and indices to the archive.
func archiveSnapshot(ctx context.Context, e *env, a *archive.Archive, at time.Time) error {
	s := e.app.Snapshot()
	if err := a.WriteHoldings(ctx, at, s.Holdings); err != nil {
		return err
	}
	if s.Indices != nil {
		if err := a.WriteIndices(ctx, at, *s.Indices); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// watch
// ---------------------------------------------------------------------------

type watchCmd struct {
	archiveEvery time.Duration
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "live dashboard with background refresh" }
func (*watchCmd) Usage() string {
	return `marketwatch watch [-archive <interval>]

  Polls alerts, indices and the portfolio and redraws on every change until
  interrupted. With -archive, snapshots are written at that interval.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.archiveEvery, "archive", 0, "Snapshot interval; 0 disables archiving.")
}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := setup(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.close()

	changed := make(chan struct{}, 1)
	e.app.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	if err := e.resume(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.app.Poller().Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Redraws are coalesced to at most one per tick.
		tick := time.NewTicker(250 * time.Millisecond)
		defer tick.Stop()
		dirty := true
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-changed:
				dirty = true
			case <-tick.C:
				if !dirty {
					continue
				}
				dirty = false
				if !e.app.LoggedIn() {
					fmt.Fprintln(os.Stderr, errStyle.Render("session ended, run: marketwatch login"))
					return errNotLoggedIn
				}
				fmt.Print("\033[H\033[2J")
				renderDashboard(os.Stdout, e.app.Snapshot())
			}
		}
	})

	if c.archiveEvery > 0 {
		a := archive.New(e.cfg.Archive.Dir)
		g.Go(func() error {
			tick := time.NewTicker(c.archiveEvery)
			defer tick.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case now := <-tick.C:
					if err := archiveSnapshot(gctx, e, a, now); err != nil {
						e.log.Warn("archiving snapshot", "error", err)
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// snapshot / archived
// ---------------------------------------------------------------------------

type snapshotCmd struct{}

func (*snapshotCmd) Name() string             { return "snapshot" }
func (*snapshotCmd) Synopsis() string         { return "archive holdings and indices once" }
func (*snapshotCmd) Usage() string            { return "marketwatch snapshot\n" }
func (*snapshotCmd) SetFlags(_ *flag.FlagSet) {}

func (*snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return session(ctx, func(e *env) error {
		if err := e.app.LoadAll(ctx); err != nil {
			return err
		}
		waitNames(ctx, e, 30*time.Second)
		now := time.Now()
		if err := archiveSnapshot(ctx, e, archive.New(e.cfg.Archive.Dir), now); err != nil {
			return err
		}
		fmt.Printf("archived %d holdings at %s\n", len(e.app.Snapshot().Holdings), now.Format(time.RFC3339))
		return nil
	})
}

type archivedCmd struct {
	day string
}

func (*archivedCmd) Name() string     { return "archived" }
func (*archivedCmd) Synopsis() string { return "show archived holdings for a day" }
func (*archivedCmd) Usage() string {
	return `marketwatch archived [-d YYYY-MM-DD]

  Without -d, lists the days that have snapshots.
`
}

func (c *archivedCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.day, "d", "", "Day to show.")
}

func (c *archivedCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := setup(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.close()
	a := archive.New(e.cfg.Archive.Dir)

	if c.day == "" {
		days, err := a.ListDays()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		for _, d := range days {
			fmt.Println(d.Format(time.DateOnly))
		}
		return subcommands.ExitSuccess
	}

	day, err := time.Parse(time.DateOnly, c.day)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid day %q\n", c.day)
		return subcommands.ExitUsageError
	}
	snaps, err := a.ReadHoldings(ctx, day)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	for at, holdings := range snaps {
		fmt.Println(dimStyle.Render(at.Format(time.RFC3339)))
		renderHoldings(os.Stdout, holdings)
	}
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// export
// ---------------------------------------------------------------------------

type exportCmd struct {
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write holdings and alerts to an xlsx workbook" }
func (*exportCmd) Usage() string {
	return `marketwatch export [-o <file.xlsx>]
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "marketwatch.xlsx", "Output file.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return session(ctx, func(e *env) error {
		if err := e.app.LoadAll(ctx); err != nil {
			return err
		}
		waitNames(ctx, e, 30*time.Second)
		s := e.app.Snapshot()

		raw, err := report.New(e.log).Generate(util.WithRequestID(ctx), report.Data{
			Holdings: s.Holdings,
			Alerts:   s.Alerts,
			Indices:  s.Indices,
		})
		if err != nil {
			return err
		}
		if dir := filepath.Dir(c.out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(c.out, raw, 0o644); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("wrote " + c.out))
		return nil
	})
}
