package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/shopkeeper/api/responses"
	"github.com/angelmondragon/shopkeeper/api/validators"
	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

type ledgerReader interface {
	SaleDetail(ctx context.Context, saleID uint64) (*ledger.SaleDetail, error)
	Debtors(ctx context.Context, limit int) ([]ledger.DebtorRow, error)
}

type saleItemDTO struct {
	ProductID uint64 `json:"product_id"`
	Name      string `json:"name"`
	Qty       int64  `json:"qty"`
	Price     int64  `json:"price"`
	Total     int64  `json:"total"`
}

type saleCustomerDTO struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type saleDTO struct {
	ID          uint64           `json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	PaymentType string           `json:"payment_type"`
	TotalAmount int64            `json:"total_amount"`
	SellerPhone string           `json:"seller_phone,omitempty"`
	Customer    *saleCustomerDTO `json:"customer,omitempty"`
	Items       []saleItemDTO    `json:"items"`
	DebtAmount  *int64           `json:"debt_amount,omitempty"`
}

func newSaleDTO(detail *ledger.SaleDetail) saleDTO {
	out := saleDTO{
		ID:          detail.Sale.ID,
		CreatedAt:   detail.Sale.CreatedAt,
		PaymentType: string(detail.Sale.PaymentType),
		TotalAmount: detail.Sale.TotalAmount,
		SellerPhone: detail.Sale.SellerPhone,
		Items:       make([]saleItemDTO, 0, len(detail.Items)),
	}
	if detail.Customer != nil {
		out.Customer = &saleCustomerDTO{
			ID:    detail.Customer.ID,
			Name:  detail.Customer.Name,
			Phone: detail.Customer.Phone,
		}
	}
	for _, item := range detail.Items {
		out.Items = append(out.Items, saleItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Qty:       item.Qty,
			Price:     item.Price,
			Total:     item.Total,
		})
	}
	if detail.Debt != nil {
		amount := detail.Debt.Amount
		out.DebtAmount = &amount
	}
	return out
}

func SaleDetail(sales ledgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		saleID, err := validators.ParsePathID(r, "saleID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := sales.SaleDetail(r.Context(), saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSaleDTO(detail))
	}
}

// Debtors lists open debts, newest first.
func Debtors(sales ledgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := sales.Debtors(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if rows == nil {
			rows = []ledger.DebtorRow{}
		}

		var total int64
		for _, row := range rows {
			total += row.Amount
		}
		responses.WriteSuccess(w, map[string]any{
			"debts": rows,
			"total": total,
		})
	}
}
