// Package reservation decrements catalog stock for a sale being committed.
package reservation

import (
	"context"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/catalog"
	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Request asks for qty units of a product. Callers aggregate cart lines so a
// product appears at most once.
type Request struct {
	ProductID uint64
	Name      string
	Qty       int64
}

// Result records the stock level around a successful decrement.
type Result struct {
	ProductID uint64
	Before    int64
	After     int64
}

// DecrementStock must run inside the commit transaction. It stops at the first
// product that cannot be satisfied; the caller's rollback undoes earlier rows.
func DecrementStock(ctx context.Context, tx *gorm.DB, requests []Request) ([]Result, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	results := make([]Result, 0, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}

		var product models.Product
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&product, "id = ?", req.ProductID).Error
		if err != nil {
			if db.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "product no longer exists").
					WithDetails(shortage(req, 0))
			}
			return nil, err
		}

		if product.Qty < req.Qty {
			req.Name = product.Name
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
				WithDetails(shortage(req, product.Qty))
		}

		res := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND qty >= ?", req.ProductID, req.Qty).
			Updates(map[string]any{
				"qty":        gorm.Expr("qty - ?", req.Qty),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected != 1 {
			req.Name = product.Name
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock changed during checkout").
				WithDetails(shortage(req, product.Qty))
		}

		results = append(results, Result{
			ProductID: req.ProductID,
			Before:    product.Qty,
			After:     product.Qty - req.Qty,
		})
	}
	return results, nil
}

func shortage(req Request, available int64) catalog.StockShortage {
	return catalog.StockShortage{
		ProductID: req.ProductID,
		Name:      req.Name,
		Requested: req.Qty,
		Available: available,
	}
}
