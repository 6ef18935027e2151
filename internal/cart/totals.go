package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount extracts a decimal amount from a price string that may carry
// currency symbols or thousands separators. Unparsable input yields zero and
// false; a flagged line contributes nothing to the subtotal rather than
// poisoning it.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" || cleaned == "." {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// LineTotal is unit price times quantity, zero when the price is flagged.
func LineTotal(line Line) decimal.Decimal {
	if line.PriceUnparsed {
		return decimal.Zero
	}
	amount, ok := ParseAmount(line.Price)
	if !ok {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// Subtotal sums line totals deterministically.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineTotal(line))
	}
	return total
}

// discountBetween is the absolute gap between the remote subtotal and total.
func discountBetween(subtotal, total string) decimal.Decimal {
	sub, okSub := ParseAmount(subtotal)
	tot, okTot := ParseAmount(total)
	if !okSub || !okTot {
		return decimal.Zero
	}
	return sub.Sub(tot).Abs()
}
