package dialogue

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/angelmondragon/shopkeeper/pkg/money"
	"github.com/shopspring/decimal"
)

// ParseQty accepts a positive whole number, optionally followed by "dona".
func ParseQty(raw string) (int64, bool) {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimSpace(strings.TrimSuffix(s, "dona"))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ParsePrice accepts so'm amounts such as "5 000", "5.000" or "5000 so'm".
func ParsePrice(raw string) (int64, bool) {
	amount, err := money.Parse(raw)
	if err != nil || amount < 0 {
		return 0, false
	}
	return amount, true
}

// ParseUSD accepts a non-negative dollar amount with "." or "," decimals.
func ParseUSD(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(strings.TrimSuffix(s, "usd"))
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// ParseID accepts "42", "#42" and option labels that start with "#42".
func ParseID(raw string) (uint64, bool) {
	m := idPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

var idPattern = regexp.MustCompile(`^(?:№|#)?\s*(\d+)(?:\s|$)`)
