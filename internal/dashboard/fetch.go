package dashboard

import (
	"context"
	"errors"

	"marketwatch/internal/domain"
	"marketwatch/internal/poll"
	"marketwatch/internal/session"
	"marketwatch/internal/util"
	"marketwatch/pkg/marketwatch"
)

// begin records a new request for target and returns its sequence number.
func (a *App) begin(target string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq[target]++
	return a.seq[target]
}

// currentLocked reports whether a response for target issued under sess
// with sequence seq may still be applied. Must be called with mu held.
func (a *App) currentLocked(sess session.Session, target string, seq uint64) bool {
	return a.sessions.IsCurrent(sess) && a.seq[target] == seq
}

// fetchFailed handles a failed fetch: authorization failures end the
// session, foreground failures set the target's failed flag, background
// failures are only logged by the caller.
func (a *App) fetchFailed(ctx context.Context, sess session.Session, target string, seq uint64, background bool, err error) error {
	if errors.Is(err, marketwatch.ErrUnauthorized) {
		return a.observe(ctx, sess, err)
	}
	if !background {
		a.mu.Lock()
		if a.currentLocked(sess, target, seq) {
			a.failed[target] = true
		}
		a.mu.Unlock()
		a.changed()
	}
	return err
}

func (a *App) fetchAlerts(ctx context.Context, background bool) error {
	sess, err := a.sessions.Require()
	if err != nil {
		return err
	}
	ctx = util.WithRequestID(ctx)
	seq := a.begin(poll.TargetAlerts)

	alerts, err := a.api.GetAlerts(ctx, sess.Token)
	if err != nil {
		return a.fetchFailed(ctx, sess, poll.TargetAlerts, seq, background, err)
	}

	a.mu.Lock()
	if !a.currentLocked(sess, poll.TargetAlerts, seq) {
		a.mu.Unlock()
		return nil
	}
	a.alerts = alerts
	a.failed[poll.TargetAlerts] = false
	if len(alerts) > 0 && alerts[0].OwnerEmail != "" {
		a.userEmail = alerts[0].OwnerEmail
	}
	a.mu.Unlock()
	a.changed()
	return nil
}

func (a *App) fetchIndices(ctx context.Context, background bool) error {
	sess, err := a.sessions.Require()
	if err != nil {
		return err
	}
	ctx = util.WithRequestID(ctx)
	seq := a.begin(poll.TargetIndices)

	idx, err := a.api.GetIndices(ctx, sess.Token)
	if err != nil {
		return a.fetchFailed(ctx, sess, poll.TargetIndices, seq, background, err)
	}

	a.mu.Lock()
	if !a.currentLocked(sess, poll.TargetIndices, seq) {
		a.mu.Unlock()
		return nil
	}
	a.indices = &idx
	a.failed[poll.TargetIndices] = false
	a.mu.Unlock()
	a.changed()
	return nil
}

// fetchPortfolio replaces the holdings with a merged view and hands any
// unresolved symbols to the resolver.
func (a *App) fetchPortfolio(ctx context.Context, background bool) error {
	sess, err := a.sessions.Require()
	if err != nil {
		return err
	}
	ctx = util.WithRequestID(ctx)
	seq := a.begin(poll.TargetPortfolio)

	fetched, err := a.api.GetPortfolio(ctx, sess.Token)
	if err != nil {
		return a.fetchFailed(ctx, sess, poll.TargetPortfolio, seq, background, err)
	}
	merged, unresolved := a.cache.Merge(ctx, fetched)

	a.mu.Lock()
	if !a.currentLocked(sess, poll.TargetPortfolio, seq) {
		a.mu.Unlock()
		return nil
	}
	a.holdings = merged
	a.failed[poll.TargetPortfolio] = false
	a.mu.Unlock()
	a.changed()

	if len(unresolved) > 0 {
		a.resolver.Resolve(a.ctx, unresolved, a.applyNames(sess))
	}
	return nil
}

// applyNames returns the resolver callback for sess. It fills empty names
// in the current holdings in one update.
func (a *App) applyNames(sess session.Session) func(map[string]string) {
	return func(batch map[string]string) {
		a.mu.Lock()
		if !a.sessions.IsCurrent(sess) {
			a.mu.Unlock()
			return
		}
		next := make([]domain.Holding, len(a.holdings))
		for i, h := range a.holdings {
			if name, ok := batch[h.Symbol]; ok && h.Name == "" {
				h.Name = name
			}
			next[i] = h
		}
		a.holdings = next
		a.mu.Unlock()
		a.changed()
	}
}

// searchAnonymous backs the alert form. The lookup carries no credential
// but still needs a live session.
func (a *App) searchAnonymous(ctx context.Context, query string) ([]domain.Suggestion, error) {
	if !a.sessions.Valid() {
		return nil, session.ErrNoSession
	}
	return a.api.SearchStock(util.WithRequestID(ctx), "", query)
}

// searchAuthenticated backs the trade form and the remote name source.
func (a *App) searchAuthenticated(ctx context.Context, query string) ([]domain.Suggestion, error) {
	sess, err := a.sessions.Require()
	if err != nil {
		return nil, err
	}
	out, err := a.api.SearchStock(util.WithRequestID(ctx), sess.Token, query)
	return out, a.observe(ctx, sess, err)
}
