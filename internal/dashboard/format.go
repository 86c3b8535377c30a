package dashboard

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > len(sign) {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPrice formats a price with two decimals, or "-" when absent.
func FormatPrice(p *decimal.Decimal) string {
	if p == nil || p.IsZero() {
		return "-"
	}
	return p.StringFixed(2)
}

// FormatChange formats the relative move from base to cur as "+X.X%" or
// "-X.X%". Drops the decimal at 100% or more to keep width compact.
func FormatChange(base, cur decimal.Decimal) string {
	if base.IsZero() {
		return ""
	}
	pct := cur.Sub(base).Div(base).Mul(decimal.NewFromInt(100))
	places := int32(1)
	if pct.Abs().GreaterThanOrEqual(decimal.NewFromInt(100)) {
		places = 0
	}
	s := pct.StringFixed(places)
	if pct.IsPositive() {
		s = "+" + s
	}
	return s + "%"
}

// DisplayName returns name, or a dash while the holding is unresolved.
func DisplayName(name string) string {
	if name == "" {
		return "-"
	}
	return name
}
