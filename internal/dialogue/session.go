// Package dialogue turns chat messages into catalog, cart and checkout calls.
// All per-user state lives in a Session value owned by the Manager.
package dialogue

import (
	"time"

	"github.com/angelmondragon/shopkeeper/internal/cart"
	"github.com/angelmondragon/shopkeeper/internal/checkout"
)

// Step is where the user is in the conversation.
type Step string

const (
	StepMenu Step = "menu"

	StepSellProduct Step = "sell_product"
	StepSellQty     Step = "sell_qty"
	StepSellPrice   Step = "sell_price"
	StepCartMenu    Step = "cart_menu"

	StepCustomer      Step = "customer"
	StepCustomerName  Step = "customer_name"
	StepCustomerPhone Step = "customer_phone"
	StepPayment       Step = "payment"
	StepCommitFailed  Step = "commit_failed"

	StepIntakeName  Step = "intake_name"
	StepIntakeQty   Step = "intake_qty"
	StepIntakeCost  Step = "intake_cost"
	StepIntakePrice Step = "intake_price"

	StepStatsPeriod Step = "stats_period"
	StepReceiptID   Step = "receipt_id"
)

// Draft holds answers collected for the step in progress.
type Draft struct {
	ProductID    uint64 `json:"product_id,omitempty"`
	ProductName  string `json:"product_name,omitempty"`
	Available    int64  `json:"available,omitempty"`
	SuggestPrice int64  `json:"suggest_price,omitempty"`
	Qty          int64  `json:"qty,omitempty"`

	CustomerName string `json:"customer_name,omitempty"`

	IntakeName    string `json:"intake_name,omitempty"`
	IntakeQty     int64  `json:"intake_qty,omitempty"`
	IntakeCostUSD string `json:"intake_cost_usd,omitempty"`
}

// Session is the whole conversational state of one chat.
type Session struct {
	ID        string         `json:"id"`
	UserID    int64          `json:"user_id"`
	Step      Step           `json:"step"`
	Cart      *cart.Cart     `json:"cart"`
	Checkout  *checkout.Flow `json:"checkout,omitempty"`
	Draft     Draft          `json:"draft"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSession starts at the menu with an empty cart.
func NewSession(id string, userID int64) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		Step:   StepMenu,
		Cart:   cart.New(id),
	}
}

// reset returns to the menu, keeping the cart.
func (s *Session) reset() {
	s.Step = StepMenu
	s.Checkout = nil
	s.Draft = Draft{}
}
