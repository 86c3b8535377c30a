// Package mutation writes user changes through to the remote service and
// reconciles local state only after the service confirms them.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"marketwatch/internal/domain"
	"marketwatch/internal/poll"
	"marketwatch/internal/session"
	"marketwatch/pkg/marketwatch"
)

// API is the subset of the service client the gateway writes through.
type API interface {
	AddAlert(ctx context.Context, token, symbol string, target decimal.Decimal) error
	DeleteAlert(ctx context.Context, token, id string) error
	RecordTransaction(ctx context.Context, token string, txn domain.Transaction) error
}

// Sessions supplies the credential and takes authorization failures.
type Sessions interface {
	Require() (session.Session, error)
	ObserveUnauthorized(ctx context.Context, sess session.Session) bool
}

// Refresher schedules an immediate background refetch of a poll target.
type Refresher interface {
	Trigger(name string) error
}

// AlertRemover drops one alert from the local collection.
type AlertRemover interface {
	RemoveAlert(sess session.Session, id string) bool
}

// Gateway performs the three mutating operations.
type Gateway struct {
	api      API
	sessions Sessions
	refresh  Refresher
	alerts   AlertRemover
	log      *slog.Logger
}

// New returns a Gateway.
func New(api API, sessions Sessions, refresh Refresher, alerts AlertRemover, log *slog.Logger) *Gateway {
	return &Gateway{api: api, sessions: sessions, refresh: refresh, alerts: alerts, log: log}
}

// AddAlert creates an alert and asks for an alerts refetch. The new alert
// shows up only once the service returns it.
func (g *Gateway) AddAlert(ctx context.Context, symbol string, target decimal.Decimal) error {
	symbol = domain.CanonicalSymbol(symbol)
	if symbol == "" {
		return domain.ErrEmptySymbol
	}
	if !target.IsPositive() {
		return domain.ErrNonPositivePrice
	}
	sess, err := g.sessions.Require()
	if err != nil {
		return err
	}

	if err := g.api.AddAlert(ctx, sess.Token, symbol, target); err != nil {
		return g.fail(ctx, sess, "add alert", err)
	}
	g.log.Info("alert added", "symbol", symbol, "target", target.String())
	g.trigger(poll.TargetAlerts)
	return nil
}

// DeleteAlert removes an alert remotely, then locally. On failure the local
// collection is untouched.
func (g *Gateway) DeleteAlert(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("alert id is required")
	}
	sess, err := g.sessions.Require()
	if err != nil {
		return err
	}

	if err := g.api.DeleteAlert(ctx, sess.Token, id); err != nil {
		return g.fail(ctx, sess, "delete alert", err)
	}
	g.alerts.RemoveAlert(sess, id)
	g.log.Info("alert deleted", "id", id)
	return nil
}

// RecordTransaction validates txn, posts it, and asks for a portfolio
// refetch.
func (g *Gateway) RecordTransaction(ctx context.Context, txn domain.Transaction) error {
	txn = txn.Normalize()
	if err := txn.Validate(); err != nil {
		return err
	}
	sess, err := g.sessions.Require()
	if err != nil {
		return err
	}

	if err := g.api.RecordTransaction(ctx, sess.Token, txn); err != nil {
		return g.fail(ctx, sess, "record transaction", err)
	}
	g.log.Info("transaction recorded", "symbol", txn.Symbol, "side", txn.Side, "quantity", txn.Quantity)
	g.trigger(poll.TargetPortfolio)
	return nil
}

func (g *Gateway) fail(ctx context.Context, sess session.Session, op string, err error) error {
	if errors.Is(err, marketwatch.ErrUnauthorized) {
		g.sessions.ObserveUnauthorized(ctx, sess)
	}
	g.log.Warn(op+" failed", "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

func (g *Gateway) trigger(target string) {
	if err := g.refresh.Trigger(target); err != nil {
		g.log.Warn("scheduling refresh", "target", target, "error", err)
	}
}
