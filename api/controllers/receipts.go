package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/shopkeeper/api/middleware"
	"github.com/angelmondragon/shopkeeper/api/responses"
	"github.com/angelmondragon/shopkeeper/api/validators"
	"github.com/angelmondragon/shopkeeper/internal/receipts"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

type receiptRenderer interface {
	Render(ctx context.Context, saleID uint64, format receipts.Format) (*receipts.Artifact, error)
}

// SaleReceipt serves the receipt of a committed sale. The format comes from
// ?format=, defaulting to forced when set. A PNG request that had to fall back
// to text still succeeds, flagged with X-Receipt-Degraded.
func SaleReceipt(renderer receiptRenderer, forced receipts.Format, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		saleID, err := validators.ParsePathID(r, "saleID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithSaleID(ctx, saleID)
		}

		format := forced
		if format == "" {
			format, err = receipts.ParseFormat(r.URL.Query().Get("format"))
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		artifact, err := renderer.Render(ctx, saleID, format)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if artifact.Degraded {
			w.Header().Set(middleware.ReceiptDegradedHeader, strings.Join(artifact.Warnings, "; "))
		}
		responses.WriteBody(w, artifact.ContentType, artifact.Body)
	}
}
