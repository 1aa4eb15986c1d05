package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how the customer settles a sale.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCredit PaymentMethod = "credit"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCredit,
}

// Shop staff type the local words as often as the English ones.
var paymentMethodAliases = map[string]PaymentMethod{
	"naqd":   PaymentMethodCash,
	"qarz":   PaymentMethodCredit,
	"nasiya": PaymentMethodCredit,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// Label is the receipt wording for the payment method.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentMethodCash:
		return "Naqd"
	case PaymentMethodCredit:
		return "Qarz"
	default:
		return string(p)
	}
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod. Matching is case-insensitive.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	if alias, ok := paymentMethodAliases[normalized]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
