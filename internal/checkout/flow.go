package checkout

import (
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/google/uuid"
)

// Flow is the serializable state of one checkout attempt. It lives in the
// session between messages; no transaction spans two messages.
type Flow struct {
	ID         string              `json:"id"`
	State      enums.CheckoutState `json:"state"`
	CustomerID uint64              `json:"customer_id,omitempty"`
	Payment    enums.PaymentMethod `json:"payment,omitempty"`
	SaleID     uint64              `json:"sale_id,omitempty"`
	LastError  pkgerrors.Code      `json:"last_error,omitempty"`
	Cancelled  bool                `json:"cancelled,omitempty"`
}

// Start opens a new flow waiting for the customer.
func Start() *Flow {
	return &Flow{
		ID:    uuid.NewString(),
		State: enums.CheckoutStateCollectingCustomer,
	}
}

// CanCommit reports whether Commit would be accepted from the current state.
func (f *Flow) CanCommit() bool {
	if f == nil {
		return false
	}
	switch f.State {
	case enums.CheckoutStateCollectingPayment, enums.CheckoutStateAborted:
		return f.CustomerID != 0 && f.Payment.IsValid() && !f.Cancelled
	default:
		return false
	}
}

// CanCancel is true until the commit has started.
func (f *Flow) CanCancel() bool {
	if f == nil {
		return false
	}
	switch f.State {
	case enums.CheckoutStateCommitting, enums.CheckoutStateDone:
		return false
	default:
		return !f.Cancelled
	}
}

func (f *Flow) expect(states ...enums.CheckoutState) error {
	if f == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no checkout in progress")
	}
	if f.Cancelled {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout was cancelled").
			WithDetails(map[string]any{"state": f.State})
	}
	for _, s := range states {
		if f.State == s {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout step not allowed").
		WithDetails(map[string]any{"state": f.State, "allowed": states})
}
