package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"marketwatch/internal/dashboard"
	"marketwatch/internal/domain"
	"marketwatch/internal/search"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	activeStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	triggeredStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// displayCurrency is the ISO code amounts are formatted in.
var displayCurrency = "INR"

// formatMoney renders amount in the display currency, e.g. "₹12,400.50".
func formatMoney(amount decimal.Decimal) string {
	cur := money.GetCurrency(displayCurrency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, displayCurrency).Display()
}

// changeStyle picks gain or loss colouring for a formatted change.
func changeStyle(change string) lipgloss.Style {
	switch {
	case strings.HasPrefix(change, "+"):
		return gainStyle
	case strings.HasPrefix(change, "-"):
		return lossStyle
	default:
		return dimStyle
	}
}

func renderIndices(w io.Writer, idx *domain.Indices) {
	fmt.Fprintln(w, titleStyle.Render(" INDICES "))
	if idx == nil {
		fmt.Fprintln(w, dimStyle.Render("  no data"))
		return
	}
	fmt.Fprintf(w, "  %s %s   %s %s\n",
		colHeaderStyle.Render("NIFTY 50"), idx.Nifty.StringFixed(2),
		colHeaderStyle.Render("SENSEX"), idx.Sensex.StringFixed(2))
}

func renderAlerts(w io.Writer, alerts []domain.Alert) {
	st := domain.CountAlerts(alerts)
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(" ALERTS "),
		dimStyle.Render(fmt.Sprintf("%d total, %d active, %d triggered", st.Total, st.Active, st.Triggered)))
	if len(alerts) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  none"))
		return
	}
	fmt.Fprintln(w, colHeaderStyle.Render(fmt.Sprintf("  %-26s %-14s %12s  %-9s", "ID", "SYMBOL", "TARGET", "STATUS")))
	for _, a := range alerts {
		status := activeStyle
		if a.Status == domain.AlertTriggered {
			status = triggeredStyle
		}
		fmt.Fprintf(w, "  %-26s %s %12s  %s\n",
			a.ID,
			symbolStyle.Render(fmt.Sprintf("%-14s", a.Symbol)),
			formatMoney(a.TargetPrice),
			status.Render(fmt.Sprintf("%-9s", a.Status)))
	}
}

func renderHoldings(w io.Writer, holdings []domain.Holding) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render(" PORTFOLIO "),
		dimStyle.Render("invested "+formatMoney(domain.TotalInvested(holdings))))
	if len(holdings) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  no holdings"))
		return
	}
	fmt.Fprintln(w, colHeaderStyle.Render(fmt.Sprintf("  %-14s %-28s %8s %14s %10s %8s", "SYMBOL", "NAME", "QTY", "AVG", "LAST", "CHG")))
	for _, h := range holdings {
		change := ""
		if h.CurrentPrice != nil {
			change = dashboard.FormatChange(h.AvgPrice, *h.CurrentPrice)
		}
		name := dashboard.DisplayName(h.Name)
		if r := []rune(name); len(r) > 28 {
			name = string(r[:27]) + "…"
		}
		fmt.Fprintf(w, "  %s %-28s %8s %14s %10s %s\n",
			symbolStyle.Render(fmt.Sprintf("%-14s", h.Symbol)),
			name,
			dashboard.FormatInt(h.Quantity),
			formatMoney(h.AvgPrice),
			dashboard.FormatPrice(h.CurrentPrice),
			changeStyle(change).Render(fmt.Sprintf("%8s", change)))
	}
}

func renderSuggestions(w io.Writer, st search.State) {
	if !st.Visible {
		fmt.Fprintln(w, dimStyle.Render("no matches"))
		return
	}
	for _, s := range st.Suggestions {
		fmt.Fprintf(w, "  %s %s %s\n",
			symbolStyle.Render(fmt.Sprintf("%-16s", s.Symbol)),
			s.Name,
			dimStyle.Render(dashboard.FormatPrice(s.CurrentPrice)))
	}
}

// renderDashboard draws every panel of s.
func renderDashboard(w io.Writer, s dashboard.Snapshot) {
	header := "marketwatch"
	if s.UserEmail != "" {
		header += "  " + s.UserEmail
	}
	fmt.Fprintln(w, titleStyle.Render(" "+header+" "))
	fmt.Fprintln(w)
	renderIndices(w, s.Indices)
	fmt.Fprintln(w)
	renderAlerts(w, s.Alerts)
	fmt.Fprintln(w)
	renderHoldings(w, s.Holdings)

	for target, failed := range s.Failed {
		if failed {
			fmt.Fprintln(w, errStyle.Render("could not load "+target))
		}
	}
	for target, loading := range s.Loading {
		if loading {
			fmt.Fprintln(w, dimStyle.Render("loading "+target+"…"))
		}
	}
}
