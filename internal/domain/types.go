// Package domain defines the core records shared by the dashboard engine:
// alerts, holdings, suggestions, indices and transactions.
package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------------

// AlertStatus is assigned by the remote service and only copied locally.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertTriggered AlertStatus = "triggered"
)

// Alert is a user-owned price alert.
type Alert struct {
	ID          string          `json:"_id"`
	Symbol      string          `json:"stock_symbol"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Direction   string          `json:"direction,omitempty"`
	Status      AlertStatus     `json:"status"`
	OwnerEmail  string          `json:"email"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// AlertStats summarises an alert collection.
type AlertStats struct {
	Total     int
	Active    int
	Triggered int
}

// CountAlerts tallies alerts by status.
func CountAlerts(alerts []Alert) AlertStats {
	st := AlertStats{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Status {
		case AlertActive:
			st.Active++
		case AlertTriggered:
			st.Triggered++
		}
	}
	return st
}

// ---------------------------------------------------------------------------
// Portfolio
// ---------------------------------------------------------------------------

// Holding is one position in the user's portfolio. Name is empty while the
// holding is unresolved and is never equal to Symbol.
type Holding struct {
	ID             string           `json:"_id,omitempty"`
	Symbol         string           `json:"symbol"`
	Quantity       int64            `json:"quantity"`
	AvgPrice       decimal.Decimal  `json:"avg_price"`
	CurrentPrice   *decimal.Decimal `json:"current_price,omitempty"`
	CurrencySymbol string           `json:"currency_symbol,omitempty"`
	Name           string           `json:"name,omitempty"`
}

// Invested returns quantity * average price.
func (h Holding) Invested() decimal.Decimal {
	return h.AvgPrice.Mul(decimal.NewFromInt(h.Quantity))
}

// TotalInvested sums Invested over all holdings.
func TotalInvested(holdings []Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.Invested())
	}
	return total
}

// Side is the direction of a portfolio transaction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Transaction is a BUY or SELL recorded against the portfolio.
type Transaction struct {
	Symbol   string
	Quantity int64
	Price    decimal.Decimal
	Side     Side
}

// Validation errors returned before any request is made.
var (
	ErrEmptySymbol         = errors.New("symbol is required")
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrNonPositivePrice    = errors.New("price must be positive")
	ErrUnknownSide         = errors.New("side must be BUY or SELL")
)

// CanonicalSymbol trims whitespace and upper-cases s.
func CanonicalSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Normalize returns a copy of t with a canonical symbol and side. An empty
// side defaults to BUY.
func (t Transaction) Normalize() Transaction {
	t.Symbol = CanonicalSymbol(t.Symbol)
	t.Side = Side(strings.ToUpper(strings.TrimSpace(string(t.Side))))
	if t.Side == "" {
		t.Side = Buy
	}
	return t
}

// Validate checks a normalized transaction.
func (t Transaction) Validate() error {
	if t.Symbol == "" {
		return ErrEmptySymbol
	}
	if t.Quantity <= 0 {
		return ErrNonPositiveQuantity
	}
	if !t.Price.IsPositive() {
		return ErrNonPositivePrice
	}
	if t.Side != Buy && t.Side != Sell {
		return ErrUnknownSide
	}
	return nil
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Suggestion is one result of a symbol search.
type Suggestion struct {
	Symbol       string           `json:"symbol"`
	Name         string           `json:"name"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	Currency     string           `json:"currency,omitempty"`
	Type         string           `json:"type,omitempty"`
}

// Indices holds the headline market index levels.
type Indices struct {
	Nifty  decimal.Decimal `json:"nifty"`
	Sensex decimal.Decimal `json:"sensex"`
}

// PricePoint is one entry of a symbol's price history.
type PricePoint struct {
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// NewsItem is a market headline.
type NewsItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Publisher string `json:"publisher"`
	Time      string `json:"time"`
}
