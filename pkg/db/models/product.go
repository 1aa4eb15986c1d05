package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable catalog entry. Qty only decreases inside a committed sale.
type Product struct {
	ID           uint64              `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string              `gorm:"column:name;not null"`
	NameKey      string              `gorm:"column:name_key;not null;index"`
	Qty          int64               `gorm:"column:qty;not null;default:0;check:chk_products_qty_non_negative,qty >= 0"`
	CostPrice    int64               `gorm:"column:cost_price;not null;default:0"`
	CostPriceUSD decimal.NullDecimal `gorm:"column:cost_price_usd;type:numeric(12,2)"`
	USDRate      decimal.NullDecimal `gorm:"column:usd_rate;type:numeric(14,4)"`
	SuggestPrice int64               `gorm:"column:suggest_price;not null;default:0"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
