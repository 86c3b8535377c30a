package dashboard

import (
	"github.com/shopspring/decimal"

	"marketwatch/internal/domain"
	"marketwatch/internal/poll"
	"marketwatch/internal/search"
)

// Snapshot is a consistent, copy-on-read view of everything the
// presentation layer renders.
type Snapshot struct {
	LoggedIn  bool
	UserEmail string
	Theme     string

	Alerts     []domain.Alert
	AlertStats domain.AlertStats
	AlertForm  AlertForm

	Holdings      []domain.Holding
	TotalInvested decimal.Decimal
	TradeFormOpen bool

	Indices *domain.Indices

	AlertSearch     search.State
	PortfolioSearch search.State

	// Loading is true while a target's initial load is in flight.
	Loading map[string]bool
	// Failed is true when a target's last foreground load failed.
	Failed map[string]bool
}

// Snapshot returns the current view.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	s := Snapshot{
		LoggedIn:      a.sessions.Valid(),
		UserEmail:     a.userEmail,
		Theme:         a.theme,
		Alerts:        append([]domain.Alert(nil), a.alerts...),
		AlertStats:    domain.CountAlerts(a.alerts),
		AlertForm:     a.alertForm,
		Holdings:      append([]domain.Holding(nil), a.holdings...),
		TotalInvested: domain.TotalInvested(a.holdings),
		TradeFormOpen: a.tradeOpen,
		Failed:        make(map[string]bool, len(a.failed)),
	}
	if a.indices != nil {
		idx := *a.indices
		s.Indices = &idx
	}
	for k, v := range a.failed {
		s.Failed[k] = v
	}
	a.mu.RUnlock()

	s.AlertSearch = a.alertSearch.State()
	s.PortfolioSearch = a.portfolioSearch.State()
	s.Loading = map[string]bool{
		poll.TargetAlerts:    a.poller.Loading(poll.TargetAlerts),
		poll.TargetIndices:   a.poller.Loading(poll.TargetIndices),
		poll.TargetPortfolio: a.poller.Loading(poll.TargetPortfolio),
	}
	return s
}

// Holding returns the holding for symbol, if present.
func (s Snapshot) Holding(symbol string) (domain.Holding, bool) {
	for _, h := range s.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return domain.Holding{}, false
}
