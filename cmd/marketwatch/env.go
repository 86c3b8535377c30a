package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"marketwatch/internal/config"
	"marketwatch/internal/dashboard"
	"marketwatch/internal/names"
	"marketwatch/internal/store"
	"marketwatch/internal/util"
	"marketwatch/pkg/marketwatch"
)

var errNotLoggedIn = errors.New("not logged in, run: marketwatch login")

// env is everything a command needs, built from the config.
type env struct {
	cfg *config.Config
	log *slog.Logger
	kv  store.KV
	app *dashboard.App
}

// setup loads the config, opens storage and boots the dashboard. With
// manual set, login does not start background polling.
func setup(ctx context.Context, manual bool) (*env, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(log)

	kv, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Backend, err)
	}

	client := marketwatch.NewClient(cfg.API.BaseURL, marketwatch.Options{
		Timeout: cfg.API.Timeout,
		Debug:   cfg.API.Debug,
	})

	var source names.Source
	if cfg.Enrichment.Source == "alpaca" {
		source = names.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, cfg.Enrichment.RateLimitPerMin)
	}

	app := dashboard.New(ctx, dashboard.Options{
		API:           client,
		KV:            kv,
		Config:        cfg,
		Log:           log,
		NameSource:    source,
		ManualPolling: manual,
	})
	app.OnNotice(func(n dashboard.Notice) {
		log.Log(ctx, n.Level, n.Message)
	})
	if err := app.Boot(ctx); err != nil {
		kv.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: log, kv: kv, app: app}, nil
}

// resume restores the persisted session.
func (e *env) resume(ctx context.Context) error {
	ok, err := e.app.Resume(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errNotLoggedIn
	}
	return nil
}

func (e *env) close() {
	if err := e.kv.Close(); err != nil {
		e.log.Warn("closing store", "error", err)
	}
}

// session runs fn against a resumed, manually polled dashboard.
func session(ctx context.Context, fn func(*env) error) subcommands.ExitStatus {
	e, err := setup(ctx, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.close()
	if err := e.resume(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := fn(e); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
