package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/shopkeeper/api/responses"
	"github.com/angelmondragon/shopkeeper/api/validators"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

type productReader interface {
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
	ListLowStock(ctx context.Context, threshold int64) ([]models.Product, error)
}

type productDTO struct {
	ID           uint64  `json:"id"`
	Name         string  `json:"name"`
	Qty          int64   `json:"qty"`
	CostPrice    int64   `json:"cost_price"`
	CostPriceUSD *string `json:"cost_price_usd,omitempty"`
	SuggestPrice int64   `json:"suggest_price"`
}

func newProductDTOs(products []models.Product) []productDTO {
	out := make([]productDTO, 0, len(products))
	for _, p := range products {
		dto := productDTO{
			ID:           p.ID,
			Name:         p.Name,
			Qty:          p.Qty,
			CostPrice:    p.CostPrice,
			SuggestPrice: p.SuggestPrice,
		}
		if p.CostPriceUSD.Valid {
			usd := p.CostPriceUSD.Decimal.StringFixed(2)
			dto.CostPriceUSD = &usd
		}
		out = append(out, dto)
	}
	return out
}

// SearchProducts matches in-stock products by name.
func SearchProducts(catalog productReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := catalog.Search(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductDTOs(products))
	}
}

// LowStock lists products at or below ?threshold=, defaulting to the configured one.
func LowStock(catalog productReader, defaultThreshold int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threshold, err := validators.ParseQueryInt(r, "threshold", int(defaultThreshold), 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		products, err := catalog.ListLowStock(r.Context(), int64(threshold))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductDTOs(products))
	}
}
