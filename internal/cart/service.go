package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopkeeper/internal/catalog"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/money"
)

type productReader interface {
	Get(ctx context.Context, id uint64) (*models.Product, error)
}

// Service validates additions against the catalog without touching it.
type Service struct {
	products productReader
}

func NewService(products productReader) (*Service, error) {
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	return &Service{products: products}, nil
}

// AddItem appends a line after checking qty against the stock read right now.
// The check is a hint for the seller; the commit re-checks under lock.
func (s *Service) AddItem(ctx context.Context, c *Cart, productID uint64, qty, unitPrice int64) (Item, error) {
	if c == nil {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	if qty <= 0 {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if unitPrice < 0 {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if unitPrice > money.MaxAmount {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "price is too large").
			WithDetails(map[string]any{"max": money.MaxAmount})
	}

	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return Item{}, err
	}

	wanted := c.QtyFor(productID) + qty
	if wanted > product.Qty {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "not enough stock").
			WithDetails(catalog.StockShortage{
				ProductID: product.ID,
				Name:      product.Name,
				Requested: wanted,
				Available: product.Qty,
			})
	}

	item := Item{
		ProductID: product.ID,
		Name:      product.Name,
		Qty:       qty,
		UnitPrice: unitPrice,
	}
	next := &Cart{Items: append(c.Items[:len(c.Items):len(c.Items)], item)}
	if _, err := next.CheckedTotal(); err != nil {
		return Item{}, err
	}
	c.Items = next.Items
	return item, nil
}
