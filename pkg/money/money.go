// Package money formats and parses integer so'm amounts.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const Suffix = " so'm"

// MaxAmount bounds every price, line total and sale total.
const MaxAmount int64 = 1_000_000_000_000

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOutOfRange    = fmt.Errorf("amount exceeds %d", MaxAmount)
)

// Mul returns price × qty, or ErrOutOfRange when the product leaves [0, MaxAmount].
func Mul(price, qty int64) (int64, error) {
	if price < 0 || qty < 0 {
		return 0, ErrInvalidAmount
	}
	if price > MaxAmount || qty > MaxAmount {
		return 0, ErrOutOfRange
	}
	if qty != 0 && price > MaxAmount/qty {
		return 0, ErrOutOfRange
	}
	return price * qty, nil
}

// Add returns a + b, or ErrOutOfRange when the sum exceeds MaxAmount.
func Add(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrInvalidAmount
	}
	if a > MaxAmount || b > MaxAmount-a {
		return 0, ErrOutOfRange
	}
	return a + b, nil
}

// Format renders an amount with "." thousands separators and the currency suffix: 10.000 so'm.
func Format(amount int64) string {
	return Group(amount, ".") + Suffix
}

// Plain renders an amount with space separators and no suffix, for table cells: 10 000.
func Plain(amount int64) string {
	return Group(amount, " ")
}

// FormatValue formats anything that reads as an integer amount and falls back
// to the value's default string form otherwise.
func FormatValue(v any) string {
	switch n := v.(type) {
	case int:
		return Format(int64(n))
	case int32:
		return Format(int64(n))
	case int64:
		return Format(n)
	case uint64:
		if n <= 1<<63-1 {
			return Format(int64(n))
		}
	case string:
		if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return Format(parsed)
		}
		return n
	case fmt.Stringer:
		if parsed, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return Format(parsed)
		}
		return n.String()
	}
	return fmt.Sprint(v)
}

// Group inserts sep between every three digits of amount.
func Group(amount int64, sep string) string {
	digits := strconv.FormatInt(amount, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	b.WriteString(sign)
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > len(sign) {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Parse reads a non-negative whole amount typed by a person. Thousands may be
// separated by one space, dot, comma or underscore, but only in groups of three,
// so "5.000" is five thousand while "5.5" and "5..000" are rejected.
func Parse(raw string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, suffix := range []string{"so'm", "som", "sum", "сум"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	}
	if s == "" {
		return 0, ErrInvalidAmount
	}

	groups := splitGroups(s)
	for i, g := range groups {
		if g == "" {
			return 0, ErrInvalidAmount
		}
		for _, r := range g {
			if !unicode.IsDigit(r) || r > unicode.MaxASCII {
				return 0, ErrInvalidAmount
			}
		}
		if i > 0 && len(g) != 3 {
			return 0, ErrInvalidAmount
		}
		if i == 0 && len(groups) > 1 && len(g) > 3 {
			return 0, ErrInvalidAmount
		}
	}

	value, err := strconv.ParseInt(strings.Join(groups, ""), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrOutOfRange
		}
		return 0, ErrInvalidAmount
	}
	if value > MaxAmount {
		return 0, ErrOutOfRange
	}
	return value, nil
}

// splitGroups cuts s at every separator rune, keeping empty groups so that
// doubled or trailing separators can be rejected.
func splitGroups(s string) []string {
	var groups []string
	start := 0
	for i, r := range s {
		if isSeparator(r) {
			groups = append(groups, s[start:i])
			start = i + utf8.RuneLen(r)
		}
	}
	return append(groups, s[start:])
}

func isSeparator(r rune) bool {
	return r == ' ' || r == '.' || r == ',' || r == '_' || r == '\u00a0'
}
