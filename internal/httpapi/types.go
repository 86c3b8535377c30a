package httpapi

import (
	"github.com/shopspring/decimal"

	"marketwatch/internal/dashboard"
	"marketwatch/internal/domain"
	"marketwatch/internal/search"
)

// DashboardResponse is the JSON view of a dashboard snapshot.
type DashboardResponse struct {
	LoggedIn        bool            `json:"logged_in"`
	UserEmail       string          `json:"user_email,omitempty"`
	Theme           string          `json:"theme"`
	Alerts          []domain.Alert  `json:"alerts"`
	AlertStats      AlertStatsJSON  `json:"alert_stats"`
	AlertForm       AlertFormJSON   `json:"alert_form"`
	Holdings        []HoldingJSON   `json:"holdings"`
	TotalInvested   decimal.Decimal `json:"total_invested"`
	TradeFormOpen   bool            `json:"trade_form_open"`
	Indices         *domain.Indices `json:"indices,omitempty"`
	AlertSearch     SearchJSON      `json:"alert_search"`
	PortfolioSearch SearchJSON      `json:"portfolio_search"`
	Loading         map[string]bool `json:"loading"`
	Failed          map[string]bool `json:"failed"`
}

// AlertStatsJSON counts alerts by status.
type AlertStatsJSON struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Triggered int `json:"triggered"`
}

// AlertFormJSON is the pending new-alert input.
type AlertFormJSON struct {
	Symbol string `json:"symbol"`
	Target string `json:"target"`
}

// HoldingJSON adds display fields to a holding.
type HoldingJSON struct {
	domain.Holding
	DisplayName string          `json:"display_name"`
	Invested    decimal.Decimal `json:"invested"`
	Change      string          `json:"change,omitempty"`
}

// SearchJSON is one search panel.
type SearchJSON struct {
	Query       string              `json:"query"`
	Suggestions []domain.Suggestion `json:"suggestions"`
	Visible     bool                `json:"visible"`
	Pending     bool                `json:"pending"`
}

// AddAlertRequest is the body of POST /api/alerts.
type AddAlertRequest struct {
	Symbol string          `json:"symbol"`
	Target decimal.Decimal `json:"target"`
}

// TransactionRequest is the body of POST /api/transactions.
type TransactionRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Type     string          `json:"type"`
}

// SearchRequest is the body of POST /api/search/{scope}.
type SearchRequest struct {
	Text string `json:"text"`
}

// ArchiveSnapshot is the holdings recorded at one time.
type ArchiveSnapshot struct {
	Time     string           `json:"time"`
	Holdings []domain.Holding `json:"holdings"`
}

func convertSearch(st search.State) SearchJSON {
	s := SearchJSON{
		Query:       st.QueryText,
		Suggestions: st.Suggestions,
		Visible:     st.Visible,
		Pending:     st.Pending,
	}
	if s.Suggestions == nil {
		s.Suggestions = []domain.Suggestion{}
	}
	return s
}

func convertSnapshot(s dashboard.Snapshot) DashboardResponse {
	resp := DashboardResponse{
		LoggedIn:  s.LoggedIn,
		UserEmail: s.UserEmail,
		Theme:     s.Theme,
		Alerts:    s.Alerts,
		AlertStats: AlertStatsJSON{
			Total:     s.AlertStats.Total,
			Active:    s.AlertStats.Active,
			Triggered: s.AlertStats.Triggered,
		},
		AlertForm:       AlertFormJSON{Symbol: s.AlertForm.Symbol, Target: s.AlertForm.Target},
		Holdings:        make([]HoldingJSON, 0, len(s.Holdings)),
		TotalInvested:   s.TotalInvested,
		TradeFormOpen:   s.TradeFormOpen,
		Indices:         s.Indices,
		AlertSearch:     convertSearch(s.AlertSearch),
		PortfolioSearch: convertSearch(s.PortfolioSearch),
		Loading:         s.Loading,
		Failed:          s.Failed,
	}
	if resp.Alerts == nil {
		resp.Alerts = []domain.Alert{}
	}
	for _, h := range s.Holdings {
		hj := HoldingJSON{
			Holding:     h,
			DisplayName: dashboard.DisplayName(h.Name),
			Invested:    h.Invested(),
		}
		if h.CurrentPrice != nil {
			hj.Change = dashboard.FormatChange(h.AvgPrice, *h.CurrentPrice)
		}
		resp.Holdings = append(resp.Holdings, hj)
	}
	return resp
}
