// Package notify renders alert messages and delivers them.
package notify

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUSD formats an amount as en-US currency with two decimals, e.g.
// $1,234.56 or -$1.00. Rounding is half away from zero.
func FormatUSD(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	negative := rounded.IsNegative()
	if negative {
		rounded = rounded.Neg()
	}

	parts := strings.SplitN(rounded.StringFixed(2), ".", 2)
	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var sb strings.Builder
	lead := n % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
