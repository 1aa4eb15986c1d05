// Package reports aggregates committed sales over calendar periods.
package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/money"
)

// Summary is a period report with per-product rows and totals.
type Summary struct {
	Period     enums.ReportPeriod `json:"period"`
	Start      time.Time          `json:"start"`
	End        time.Time          `json:"end"`
	Rows       []Row              `json:"rows"`
	SalesCount int64              `json:"sales_count"`
	QtySold    int64              `json:"qty_sold"`
	Revenue    int64              `json:"revenue"`
	Cost       int64              `json:"cost"`
	Profit     int64              `json:"profit"`
	Cash       int64              `json:"cash"`
	Credit     int64              `json:"credit"`
}

type Service struct {
	repo *Repository
	loc  *time.Location
	now  func() time.Time
}

func NewService(repo *Repository, loc *time.Location) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, now: time.Now}, nil
}

// Aggregate returns per-product rows for [start, end). Cost is quantity
// times the product's current cost price.
func (s *Service) Aggregate(ctx context.Context, start, end time.Time) ([]Row, error) {
	if !end.After(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report range is empty")
	}
	rows, err := s.repo.ProductRows(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate sales")
	}
	for i := range rows {
		rows[i].Cost = rows[i].QtySold * rows[i].CostPrice
		rows[i].Profit = rows[i].Revenue - rows[i].Cost
	}
	return rows, nil
}

// Current reports the period containing now.
func (s *Service) Current(ctx context.Context, period enums.ReportPeriod) (*Summary, error) {
	return s.For(ctx, period, s.now())
}

// For reports the period containing at.
func (s *Service) For(ctx context.Context, period enums.ReportPeriod, at time.Time) (*Summary, error) {
	start, end, err := PeriodRange(period, at, s.loc)
	if err != nil {
		return nil, err
	}
	rows, err := s.Aggregate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.PaymentTotals(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum payments")
	}

	summary := Summarize(rows)
	summary.Period = period
	summary.Start = start
	summary.End = end
	for _, t := range totals {
		summary.SalesCount += t.Sales
		switch enums.PaymentMethod(t.PaymentType) {
		case enums.PaymentMethodCash:
			summary.Cash += t.Amount
		case enums.PaymentMethodCredit:
			summary.Credit += t.Amount
		}
	}
	return summary, nil
}

// PeriodRange returns the local calendar day, month or year containing now.
func PeriodRange(period enums.ReportPeriod, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	switch period {
	case enums.ReportPeriodDaily:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1), nil
	case enums.ReportPeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case enums.ReportPeriodYearly:
		start := time.Date(y, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown report period").
			WithDetails(map[string]any{"period": period})
	}
}

// Summarize totals the rows.
func Summarize(rows []Row) *Summary {
	summary := &Summary{Rows: rows}
	for _, row := range rows {
		summary.QtySold += row.QtySold
		summary.Revenue += row.Revenue
		summary.Cost += row.Cost
		summary.Profit += row.Profit
	}
	return summary
}

var periodTitles = map[enums.ReportPeriod]string{
	enums.ReportPeriodDaily:   "Kunlik hisobot",
	enums.ReportPeriodMonthly: "Oylik hisobot",
	enums.ReportPeriodYearly:  "Yillik hisobot",
}

func periodLabel(period enums.ReportPeriod, start time.Time) string {
	switch period {
	case enums.ReportPeriodMonthly:
		return start.Format("01.2006")
	case enums.ReportPeriodYearly:
		return start.Format("2006")
	default:
		return start.Format("02.01.2006")
	}
}

// FormatSummary renders a summary for chat. At most topN products are listed.
func FormatSummary(summary *Summary, topN int) string {
	if summary == nil {
		return ""
	}
	var b strings.Builder
	title := periodTitles[summary.Period]
	if title == "" {
		title = "Hisobot"
	}
	fmt.Fprintf(&b, "📊 %s (%s)\n", title, periodLabel(summary.Period, summary.Start))
	fmt.Fprintf(&b, "Sotuvlar soni: %d\n", summary.SalesCount)
	fmt.Fprintf(&b, "Sotilgan: %d dona\n", summary.QtySold)
	fmt.Fprintf(&b, "Tushum: %s\n", money.Format(summary.Revenue))
	fmt.Fprintf(&b, "  Naqd: %s\n", money.Format(summary.Cash))
	fmt.Fprintf(&b, "  Qarz: %s\n", money.Format(summary.Credit))
	fmt.Fprintf(&b, "Tannarx: %s\n", money.Format(summary.Cost))
	fmt.Fprintf(&b, "Foyda: %s", money.Format(summary.Profit))

	if len(summary.Rows) == 0 {
		b.WriteString("\n\nBu davrda sotuv yo'q.")
		return b.String()
	}
	b.WriteString("\n────────────────────────────")
	for i, row := range summary.Rows {
		if topN > 0 && i == topN {
			fmt.Fprintf(&b, "\n… yana %d ta mahsulot", len(summary.Rows)-topN)
			break
		}
		fmt.Fprintf(&b, "\n%s — %d dona, %s (foyda %s)", row.Product, row.QtySold, money.Format(row.Revenue), money.Format(row.Profit))
	}
	return b.String()
}
