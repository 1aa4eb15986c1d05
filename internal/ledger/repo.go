package ledger

import (
	"context"
	"time"

	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"gorm.io/gorm"
)

// Repository manages persistence for sales and debts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSale(ctx context.Context, sale *models.Sale) error
	CreateItems(ctx context.Context, items []models.SaleItem) error
	CreateDebt(ctx context.Context, debt *models.Debt) error
	FindSale(ctx context.Context, id uint64) (*models.Sale, error)
	FindSaleByCheckout(ctx context.Context, checkoutID string) (*models.Sale, error)
	ListItems(ctx context.Context, saleID uint64) ([]models.SaleItem, error)
	FindDebtBySale(ctx context.Context, saleID uint64) (*models.Debt, error)
	ListDebtors(ctx context.Context, limit int) ([]DebtorRow, error)
	ListSalesBetween(ctx context.Context, start, end time.Time) ([]models.Sale, error)
}

// DebtorRow is a debt joined with its customer.
type DebtorRow struct {
	DebtID        uint64    `gorm:"column:debt_id" json:"debt_id"`
	SaleID        uint64    `gorm:"column:sale_id" json:"sale_id"`
	CustomerID    uint64    `gorm:"column:customer_id" json:"customer_id"`
	CustomerName  string    `gorm:"column:customer_name" json:"customer_name"`
	CustomerPhone string    `gorm:"column:customer_phone" json:"customer_phone"`
	Amount        int64     `gorm:"column:amount" json:"amount"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateDebt(ctx context.Context, debt *models.Debt) error {
	return r.db.WithContext(ctx).Create(debt).Error
}

func (r *repository) FindSale(ctx context.Context, id uint64) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// FindSaleByCheckout returns gorm.ErrRecordNotFound when the checkout never committed.
func (r *repository) FindSaleByCheckout(ctx context.Context, checkoutID string) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).First(&sale, "checkout_id = ?", checkoutID).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) ListItems(ctx context.Context, saleID uint64) ([]models.SaleItem, error) {
	var items []models.SaleItem
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindDebtBySale(ctx context.Context, saleID uint64) (*models.Debt, error) {
	var debt models.Debt
	if err := r.db.WithContext(ctx).First(&debt, "sale_id = ?", saleID).Error; err != nil {
		return nil, err
	}
	return &debt, nil
}

func (r *repository) ListDebtors(ctx context.Context, limit int) ([]DebtorRow, error) {
	var rows []DebtorRow
	if err := r.db.WithContext(ctx).
		Table("debts AS d").
		Select("d.id AS debt_id, d.sale_id, d.customer_id, c.name AS customer_name, c.phone AS customer_phone, d.amount, d.created_at").
		Joins("JOIN customers c ON c.id = d.customer_id").
		Order("d.created_at DESC").
		Order("d.id DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSalesBetween returns sales with created_at in [start, end).
func (r *repository) ListSalesBetween(ctx context.Context, start, end time.Time) ([]models.Sale, error) {
	var sales []models.Sale
	if err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start, end).
		Order("created_at ASC").
		Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}
