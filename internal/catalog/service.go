package catalog

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

type rateProvider interface {
	USDRate(ctx context.Context) (decimal.Decimal, error)
}

// Service exposes catalog maintenance and lookups.
type Service interface {
	Intake(ctx context.Context, input IntakeInput) (*IntakeResult, error)
	Get(ctx context.Context, id uint64) (*models.Product, error)
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
	ListLowStock(ctx context.Context, threshold int64) ([]models.Product, error)
}

// IntakeInput describes received stock. Exactly one cost form is used: when
// CostPriceUSD is set the so'm cost is derived from the current USD rate.
type IntakeInput struct {
	Name         string           `validate:"required"`
	Qty          int64            `validate:"gt=0"`
	CostPrice    int64            `validate:"gte=0"`
	CostPriceUSD *decimal.Decimal `validate:"-"`
	SuggestPrice int64            `validate:"gte=0"`
}

// IntakeResult reports whether the intake created a product or restocked one.
type IntakeResult struct {
	Product   *models.Product
	Restocked bool
}

type service struct {
	repo     *Repository
	tx       db.TxRunner
	rates    rateProvider
	validate *validator.Validate
}

// NewService builds the catalog service.
func NewService(repo *Repository, tx db.TxRunner, rates rateProvider) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if rates == nil {
		return nil, fmt.Errorf("rate provider required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		rates:    rates,
		validate: validator.New(),
	}, nil
}

func (s *service) Intake(ctx context.Context, input IntakeInput) (*IntakeResult, error) {
	if err := ValidateName(input.Name); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stock intake")
	}

	name := CleanName(input.Name)
	product := &models.Product{
		Name:         name,
		NameKey:      NameKey(name),
		Qty:          input.Qty,
		CostPrice:    input.CostPrice,
		SuggestPrice: input.SuggestPrice,
	}

	if input.CostPriceUSD != nil {
		usd := *input.CostPriceUSD
		if usd.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost in USD must be non-negative")
		}
		rate, err := s.rates.USDRate(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "usd rate unavailable")
		}
		usd = usd.Round(2)
		product.CostPriceUSD = decimal.NewNullDecimal(usd)
		product.USDRate = decimal.NewNullDecimal(rate)
		product.CostPrice = ConvertUSD(usd, rate)
	}

	result := &IntakeResult{Product: product}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindMergeCandidate(ctx, product.NameKey, product.CostPriceUSD, product.CostPrice)
		switch {
		case err == nil:
			if err := repo.Restock(ctx, existing.ID, product.Qty, product.CostPrice, product.SuggestPrice); err != nil {
				return err
			}
			refreshed, err := repo.FindByID(ctx, existing.ID)
			if err != nil {
				return err
			}
			result.Product = refreshed
			result.Restocked = true
			return nil
		case db.IsNotFound(err):
			created, err := repo.Create(ctx, product)
			if err != nil {
				return err
			}
			result.Product = created
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save stock intake")
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uint64) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	rows, err := s.repo.Search(ctx, NameKey(query), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search products")
	}
	return rows, nil
}

func (s *service) ListLowStock(ctx context.Context, threshold int64) ([]models.Product, error) {
	if threshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold must be non-negative")
	}
	rows, err := s.repo.ListLowStock(ctx, threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock")
	}
	return rows, nil
}

// ConvertUSD converts a USD amount to whole so'm, dropping the fraction.
func ConvertUSD(usd, rate decimal.Decimal) int64 {
	return usd.Mul(rate).IntPart()
}
