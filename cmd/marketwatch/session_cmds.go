package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"marketwatch/internal/dashboard"
	"marketwatch/internal/store"
	"marketwatch/internal/util"
	"marketwatch/pkg/marketwatch"
)

// ---------------------------------------------------------------------------
// login
// ---------------------------------------------------------------------------

type loginCmd struct {
	user     string
	password string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "log in and remember the session" }
func (*loginCmd) Usage() string {
	return `marketwatch login -u <email> [-p <password>]

  Exchanges credentials for a session token and stores it so later commands
  run as this user. The password may come from MARKETWATCH_PASSWORD.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", "", "Account email.")
	f.StringVar(&c.password, "p", os.Getenv("MARKETWATCH_PASSWORD"), "Account password.")
}

func (c *loginCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.password == "" {
		fmt.Fprintln(os.Stderr, "login needs -u and -p")
		return subcommands.ExitUsageError
	}
	e, err := setup(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.close()

	err = util.Retry(ctx, 3, time.Second, func() error {
		err := e.app.Login(ctx, c.user, c.password)
		if errors.Is(err, marketwatch.ErrUnauthorized) {
			return util.Permanent(err)
		}
		return err
	})
	if errors.Is(err, marketwatch.ErrUnauthorized) {
		fmt.Fprintln(os.Stderr, "login failed: wrong email or password")
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(okStyle.Render("logged in as " + c.user))
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// logout
// ---------------------------------------------------------------------------

type logoutCmd struct{}

func (*logoutCmd) Name() string             { return "logout" }
func (*logoutCmd) Synopsis() string         { return "forget the stored session" }
func (*logoutCmd) Usage() string            { return "marketwatch logout\n" }
func (*logoutCmd) SetFlags(_ *flag.FlagSet) {}

func (*logoutCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := setup(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.close()

	if err := e.resume(ctx); err == nil {
		e.app.Logout(ctx)
	} else if err := e.kv.Delete(ctx, store.KeyToken); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("logged out")
	return subcommands.ExitSuccess
}

// ---------------------------------------------------------------------------
// theme
// ---------------------------------------------------------------------------

type themeCmd struct{}

func (*themeCmd) Name() string     { return "theme" }
func (*themeCmd) Synopsis() string { return "show or set the display theme" }
func (*themeCmd) Usage() string {
	return `marketwatch theme [dark|light]
`
}
func (*themeCmd) SetFlags(_ *flag.FlagSet) {}

func (*themeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := setup(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.close()

	switch f.NArg() {
	case 0:
		fmt.Println(e.app.Snapshot().Theme)
	case 1:
		theme := f.Arg(0)
		if theme != dashboard.ThemeDark && theme != dashboard.ThemeLight {
			fmt.Fprintf(os.Stderr, "unknown theme %q\n", theme)
			return subcommands.ExitUsageError
		}
		if err := e.app.SetTheme(ctx, theme); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Println(theme)
	default:
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}
