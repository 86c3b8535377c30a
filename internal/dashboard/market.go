package dashboard

import (
	"context"
	"errors"
	"log/slog"

	"marketwatch/internal/domain"
	"marketwatch/internal/poll"
	"marketwatch/internal/session"
	"marketwatch/internal/util"
	"marketwatch/pkg/marketwatch"
)

// observe ends sess when err is an authorization failure and returns err
// unchanged.
func (a *App) observe(ctx context.Context, sess session.Session, err error) error {
	if errors.Is(err, marketwatch.ErrUnauthorized) && a.sessions.ObserveUnauthorized(ctx, sess) {
		a.notify(slog.LevelWarn, "Session expired, please log in again")
	}
	return err
}

// StockHistory returns recent closing prices for symbol.
func (a *App) StockHistory(ctx context.Context, symbol string) ([]domain.PricePoint, error) {
	sess, err := a.sessions.Require()
	if err != nil {
		return nil, err
	}
	out, err := a.api.StockHistory(util.WithRequestID(ctx), sess.Token, domain.CanonicalSymbol(symbol))
	return out, a.observe(ctx, sess, err)
}

// MarketNews returns the service's market headlines.
func (a *App) MarketNews(ctx context.Context) ([]domain.NewsItem, error) {
	sess, err := a.sessions.Require()
	if err != nil {
		return nil, err
	}
	out, err := a.api.MarketNews(util.WithRequestID(ctx), sess.Token)
	return out, a.observe(ctx, sess, err)
}

// AnalyzeStock returns the service's analysis of symbol.
func (a *App) AnalyzeStock(ctx context.Context, symbol string) (string, error) {
	sess, err := a.sessions.Require()
	if err != nil {
		return "", err
	}
	out, err := a.api.AnalyzeStock(util.WithRequestID(ctx), sess.Token, domain.CanonicalSymbol(symbol))
	return out, a.observe(ctx, sess, err)
}

// ClearAlerts deletes every alert remotely, then refreshes the local
// collection.
func (a *App) ClearAlerts(ctx context.Context) error {
	sess, err := a.sessions.Require()
	if err != nil {
		return err
	}
	if err := a.api.ClearAlerts(util.WithRequestID(ctx), sess.Token); err != nil {
		a.notify(slog.LevelError, "Could not clear alerts: %v", err)
		return a.observe(ctx, sess, err)
	}
	a.notify(slog.LevelInfo, "All alerts deleted")
	return a.Trigger(poll.TargetAlerts)
}
