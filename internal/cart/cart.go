// Package cart holds the per-session list of items picked for a sale.
package cart

import (
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/money"
)

// Item is a product line snapshotted when it was added. Its price does not
// follow later catalog changes.
type Item struct {
	ProductID uint64 `json:"product_id"`
	Name      string `json:"name"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

// Total is qty × unit price. Lines added through Service.AddItem never
// exceed money.MaxAmount; use CheckedTotal for lines of unknown origin.
func (i Item) Total() int64 {
	return i.Qty * i.UnitPrice
}

// CheckedTotal is Total with a validation error instead of overflow.
func (i Item) CheckedTotal() (int64, error) {
	total, err := money.Mul(i.UnitPrice, i.Qty)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "line total out of range").
			WithDetails(map[string]any{"product_id": i.ProductID, "qty": i.Qty, "unit_price": i.UnitPrice})
	}
	return total, nil
}

// Cart is owned by exactly one session and never shared.
type Cart struct {
	SessionID string `json:"session_id"`
	Items     []Item `json:"items"`
}

// New returns an empty cart for the session.
func New(sessionID string) *Cart {
	return &Cart{SessionID: sessionID}
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Len is the number of lines, not units.
func (c *Cart) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// QtyFor sums the units of a product across all lines.
func (c *Cart) QtyFor(productID uint64) int64 {
	if c == nil {
		return 0
	}
	var qty int64
	for _, item := range c.Items {
		if item.ProductID == productID {
			qty += item.Qty
		}
	}
	return qty
}

// RemoveLast drops the most recently added line.
func (c *Cart) RemoveLast() (Item, bool) {
	if c.IsEmpty() {
		return Item{}, false
	}
	last := c.Items[len(c.Items)-1]
	c.Items = c.Items[:len(c.Items)-1]
	return last, true
}

func (c *Cart) Clear() {
	if c == nil {
		return
	}
	c.Items = nil
}

// Total is computed on demand from the lines.
func (c *Cart) Total() int64 {
	if c == nil {
		return 0
	}
	var total int64
	for _, item := range c.Items {
		total += item.Total()
	}
	return total
}

// CheckedTotal sums the lines, failing with a validation error when any line
// or the running sum leaves the money.MaxAmount range.
func (c *Cart) CheckedTotal() (int64, error) {
	if c == nil {
		return 0, nil
	}
	var total int64
	for _, item := range c.Items {
		line, err := item.CheckedTotal()
		if err != nil {
			return 0, err
		}
		if total, err = money.Add(total, line); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cart total out of range")
		}
	}
	return total, nil
}

// Demand is the requested quantity per product, in first-seen order.
type Demand struct {
	ProductID uint64
	Name      string
	Qty       int64
}

// Demands folds repeated lines of the same product together.
func (c *Cart) Demands() []Demand {
	if c == nil {
		return nil
	}
	index := map[uint64]int{}
	var out []Demand
	for _, item := range c.Items {
		if i, ok := index[item.ProductID]; ok {
			out[i].Qty += item.Qty
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, Demand{ProductID: item.ProductID, Name: item.Name, Qty: item.Qty})
	}
	return out
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := &Cart{SessionID: c.SessionID}
	if len(c.Items) > 0 {
		out.Items = append([]Item(nil), c.Items...)
	}
	return out
}

// Line is one row of a cart view.
type Line struct {
	Position int
	Item     Item
	Total    int64
}

// View is a read-only rendering of the cart with its running total.
type View struct {
	Lines []Line
	Total int64
}

func (c *Cart) View() View {
	var view View
	if c == nil {
		return view
	}
	for i, item := range c.Items {
		view.Lines = append(view.Lines, Line{Position: i + 1, Item: item, Total: item.Total()})
	}
	view.Total = c.Total()
	return view
}
