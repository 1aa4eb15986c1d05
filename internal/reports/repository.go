package reports

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Row is one product's sales over a period.
type Row struct {
	ProductID uint64 `gorm:"column:product_id" json:"product_id"`
	Product   string `gorm:"column:product_name" json:"product"`
	QtySold   int64  `gorm:"column:sold_qty" json:"qty_sold"`
	Revenue   int64  `gorm:"column:revenue" json:"revenue"`
	CostPrice int64  `gorm:"column:cost_price" json:"cost_price"`
	Cost      int64  `gorm:"-" json:"cost"`
	Profit    int64  `gorm:"-" json:"profit"`
}

// PaymentTotal is the committed amount per payment type.
type PaymentTotal struct {
	PaymentType string `gorm:"column:payment_type"`
	Sales       int64  `gorm:"column:sales"`
	Amount      int64  `gorm:"column:amount"`
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ProductRows aggregates sale items in [start, end) per product and cost price.
func (r *Repository) ProductRows(ctx context.Context, start, end time.Time) ([]Row, error) {
	var rows []Row
	err := r.db.WithContext(ctx).
		Table("sale_items AS si").
		Select(`si.product_id, si.name AS product_name,
			SUM(si.qty) AS sold_qty,
			SUM(si.total) AS revenue,
			COALESCE(p.cost_price, 0) AS cost_price`).
		Joins("JOIN sales s ON s.id = si.sale_id").
		Joins("LEFT JOIN products p ON p.id = si.product_id").
		Where("s.created_at >= ? AND s.created_at < ?", start, end).
		Group("si.product_id, si.name, p.cost_price").
		Order("si.name ASC").
		Order("si.product_id ASC").
		Scan(&rows).
		Error
	return rows, err
}

// PaymentTotals sums sales in [start, end) per payment type.
func (r *Repository) PaymentTotals(ctx context.Context, start, end time.Time) ([]PaymentTotal, error) {
	var totals []PaymentTotal
	err := r.db.WithContext(ctx).
		Table("sales").
		Select("payment_type, COUNT(*) AS sales, COALESCE(SUM(total_amount), 0) AS amount").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("payment_type").
		Order("payment_type ASC").
		Scan(&totals).
		Error
	return totals, err
}
