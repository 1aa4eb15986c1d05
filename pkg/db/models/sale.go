package models

import (
	"time"

	"github.com/angelmondragon/shopkeeper/pkg/enums"
)

// Sale is the committed header of a transaction. TotalAmount equals the sum of its items.
// CheckoutID is the id of the checkout flow that wrote it; a flow commits at most one sale.
type Sale struct {
	ID          uint64              `gorm:"column:id;primaryKey;autoIncrement"`
	CheckoutID  *string             `gorm:"column:checkout_id;uniqueIndex:idx_sales_checkout_id"`
	CustomerID  uint64              `gorm:"column:customer_id;not null;index"`
	TotalAmount int64               `gorm:"column:total_amount;not null"`
	PaymentType enums.PaymentMethod `gorm:"column:payment_type;not null"`
	SellerPhone string              `gorm:"column:seller_phone;not null;default:''"`
	CreatedAt   time.Time           `gorm:"column:created_at;not null;index"`
}

func (Sale) TableName() string { return "sales" }

// SaleItem snapshots a product line at commit time. Rows are never updated.
type SaleItem struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	SaleID    uint64 `gorm:"column:sale_id;not null;index"`
	ProductID uint64 `gorm:"column:product_id;not null;index"`
	Name      string `gorm:"column:name;not null"`
	Qty       int64  `gorm:"column:qty;not null"`
	Price     int64  `gorm:"column:price;not null"`
	Total     int64  `gorm:"column:total;not null"`
}

func (SaleItem) TableName() string { return "sale_items" }

// Debt exists exactly when the sale was paid on credit.
type Debt struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerID uint64    `gorm:"column:customer_id;not null;index"`
	SaleID     uint64    `gorm:"column:sale_id;not null;uniqueIndex"`
	Amount     int64     `gorm:"column:amount;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (Debt) TableName() string { return "debts" }

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{&Product{}, &Customer{}, &Sale{}, &SaleItem{}, &Debt{}}
}
