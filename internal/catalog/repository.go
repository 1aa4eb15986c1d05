package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository persists catalog products.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads a product.
func (r *Repository) FindByID(ctx context.Context, id uint64) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindMergeCandidate returns the product an intake should restock: same name key
// and same purchase cost (USD cost when known, so'm cost otherwise).
func (r *Repository) FindMergeCandidate(ctx context.Context, nameKey string, costUSD decimal.NullDecimal, costPrice int64) (*models.Product, error) {
	query := r.db.WithContext(ctx).Where("name_key = ?", nameKey)
	if costUSD.Valid {
		query = query.Where("cost_price_usd = ?", costUSD.Decimal.StringFixed(2))
	} else {
		query = query.Where("cost_price_usd IS NULL AND cost_price = ?", costPrice)
	}

	var product models.Product
	if err := query.Order("id ASC").First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// Restock adds qty to a product and refreshes its prices.
func (r *Repository) Restock(ctx context.Context, id uint64, qty int64, costPrice, suggestPrice int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"qty":           gorm.Expr("qty + ?", qty),
			"cost_price":    costPrice,
			"suggest_price": suggestPrice,
		}).Error
}

// Search lists in-stock products whose name key contains the folded query.
func (r *Repository) Search(ctx context.Context, nameKey string, limit int) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Where("qty > 0")
	if nameKey != "" {
		query = query.Where("name_key LIKE ? ESCAPE '\\'", "%"+escapeLike(nameKey)+"%")
	}
	var rows []models.Product
	err := query.Order("name_key ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// ListLowStock lists products at or under the threshold, lowest stock first.
func (r *Repository) ListLowStock(ctx context.Context, threshold int64) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("qty <= ?", threshold).
		Order("qty ASC").
		Order("name_key ASC").
		Find(&rows).
		Error
	return rows, err
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
