package enums

import "fmt"

// CheckoutState is the position of a checkout flow in its state machine.
type CheckoutState string

const (
	CheckoutStateCollectingCustomer CheckoutState = "collecting_customer"
	CheckoutStateCollectingPayment  CheckoutState = "collecting_payment"
	CheckoutStateCommitting         CheckoutState = "committing"
	CheckoutStateDone               CheckoutState = "done"
	CheckoutStateAborted            CheckoutState = "aborted"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateCollectingCustomer,
	CheckoutStateCollectingPayment,
	CheckoutStateCommitting,
	CheckoutStateDone,
	CheckoutStateAborted,
}

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CheckoutState.
func (s CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateDone
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
