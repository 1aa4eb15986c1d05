package ledger

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
)

const (
	defaultDebtorLimit = 50
	maxDebtorLimit     = 500
)

type customerReader interface {
	Get(ctx context.Context, id uint64) (*models.Customer, error)
}

// SaleDetail is everything a receipt needs about one committed sale.
type SaleDetail struct {
	Sale     models.Sale
	Items    []models.SaleItem
	Customer *models.Customer
	Debt     *models.Debt
}

// Service exposes the read side of the ledger.
type Service interface {
	SaleDetail(ctx context.Context, saleID uint64) (*SaleDetail, error)
	Debtors(ctx context.Context, limit int) ([]DebtorRow, error)
}

type service struct {
	repo      Repository
	customers customerReader
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository, customers customerReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer reader required")
	}
	return &service{repo: repo, customers: customers}, nil
}

func (s *service) SaleDetail(ctx context.Context, saleID uint64) (*SaleDetail, error) {
	if saleID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	sale, err := s.repo.FindSale(ctx, saleID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found").
				WithDetails(map[string]any{"sale_id": saleID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}

	items, err := s.repo.ListItems(ctx, saleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale items")
	}

	detail := &SaleDetail{Sale: *sale, Items: items}

	customer, err := s.customers.Get(ctx, sale.CustomerID)
	switch {
	case err == nil:
		detail.Customer = customer
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		// receipts still render without the customer block
	default:
		return nil, err
	}

	debt, err := s.repo.FindDebtBySale(ctx, saleID)
	switch {
	case err == nil:
		detail.Debt = debt
	case db.IsNotFound(err):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load debt")
	}
	return detail, nil
}

func (s *service) Debtors(ctx context.Context, limit int) ([]DebtorRow, error) {
	if limit <= 0 {
		limit = defaultDebtorLimit
	}
	if limit > maxDebtorLimit {
		limit = maxDebtorLimit
	}
	rows, err := s.repo.ListDebtors(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list debtors")
	}
	return rows, nil
}

// ItemsTotal sums the line totals.
func ItemsTotal(items []models.SaleItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Total
	}
	return total
}
