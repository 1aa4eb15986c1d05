package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopkeeper/api/responses"
	"github.com/angelmondragon/shopkeeper/api/validators"
	"github.com/angelmondragon/shopkeeper/internal/reports"
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

type periodReporter interface {
	Current(ctx context.Context, period enums.ReportPeriod) (*reports.Summary, error)
	For(ctx context.Context, period enums.ReportPeriod, at time.Time) (*reports.Summary, error)
}

type reportQuery struct {
	Period string `query:"period" validate:"required,oneof=daily monthly yearly"`
	At     string `query:"at" validate:"omitempty,datetime=2006-01-02"`
	Format string `query:"format" validate:"omitempty,oneof=json text"`
}

// SalesReport returns the period summary containing ?at= (a local date) or
// now. ?format=text returns the same message the bot sends.
func SalesReport(svc periodReporter, loc *time.Location, logg *logger.Logger) http.HandlerFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		top, err := validators.ParseQueryInt(r, "top", 10, 1, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		q := reportQuery{
			Period: strings.ToLower(strings.TrimSpace(chi.URLParam(r, "period"))),
			At:     strings.TrimSpace(r.URL.Query().Get("at")),
			Format: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))),
		}
		if err := validators.Struct(&q); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		period := enums.ReportPeriod(q.Period)

		var summary *reports.Summary
		if q.At == "" {
			summary, err = svc.Current(ctx, period)
		} else {
			var at time.Time
			at, err = time.ParseInLocation("2006-01-02", q.At, loc)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date"))
				return
			}
			summary, err = svc.For(ctx, period, at)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if q.Format == "text" {
			responses.WriteBody(w, responses.ContentTypeText, []byte(reports.FormatSummary(summary, top)))
			return
		}
		if summary.Rows == nil {
			summary.Rows = []reports.Row{}
		}
		if len(summary.Rows) > top {
			summary.Rows = summary.Rows[:top]
		}
		responses.WriteSuccess(w, summary)
	}
}
