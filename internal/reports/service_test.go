package reports

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/shopkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var tashkent = time.FixedZone("UZT", 5*60*60)

func seedSale(t *testing.T, db *gorm.DB, at time.Time, payment enums.PaymentMethod, items ...models.SaleItem) {
	t.Helper()
	var total int64
	for _, item := range items {
		total += item.Total
	}
	sale := &models.Sale{CustomerID: 1, TotalAmount: total, PaymentType: payment, CreatedAt: at.UTC()}
	require.NoError(t, db.Create(sale).Error)
	for i := range items {
		items[i].SaleID = sale.ID
	}
	require.NoError(t, db.Create(&items).Error)
}

func TestForAggregatesDayInStoreTime(t *testing.T) {
	client := dbtest.NewClient(t)
	db := client.DB()
	tea := &models.Product{Name: "Tea", NameKey: "tea", Qty: 10, CostPrice: 3000}
	sugar := &models.Product{Name: "Sugar", NameKey: "sugar", Qty: 10, CostPrice: 8000}
	require.NoError(t, db.Create(tea).Error)
	require.NoError(t, db.Create(sugar).Error)

	day := time.Date(2026, 3, 8, 0, 0, 0, 0, tashkent)
	// 00:30 local is still the previous day in UTC.
	seedSale(t, db, day.Add(30*time.Minute), enums.PaymentMethodCash,
		models.SaleItem{ProductID: tea.ID, Name: "Tea", Qty: 2, Price: 5000, Total: 10000})
	seedSale(t, db, day.Add(15*time.Hour), enums.PaymentMethodCredit,
		models.SaleItem{ProductID: tea.ID, Name: "Tea", Qty: 1, Price: 5000, Total: 5000},
		models.SaleItem{ProductID: sugar.ID, Name: "Sugar", Qty: 1, Price: 12000, Total: 12000})
	seedSale(t, db, day.Add(24*time.Hour), enums.PaymentMethodCash,
		models.SaleItem{ProductID: tea.ID, Name: "Tea", Qty: 9, Price: 5000, Total: 45000})

	svc, err := NewService(NewRepository(db), tashkent)
	require.NoError(t, err)

	summary, err := svc.For(context.Background(), enums.ReportPeriodDaily, day.Add(12*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.SalesCount)
	require.EqualValues(t, 27000, summary.Revenue)
	require.EqualValues(t, 10000, summary.Cash)
	require.EqualValues(t, 17000, summary.Credit)
	require.Len(t, summary.Rows, 2)

	require.Equal(t, "Sugar", summary.Rows[0].Product)
	require.EqualValues(t, 8000, summary.Rows[0].Cost)
	require.EqualValues(t, 4000, summary.Rows[0].Profit)
	require.Equal(t, "Tea", summary.Rows[1].Product)
	require.EqualValues(t, 3, summary.Rows[1].QtySold)
	require.EqualValues(t, 9000, summary.Rows[1].Cost)
	require.EqualValues(t, 6000, summary.Rows[1].Profit)
	require.EqualValues(t, 10000, summary.Profit)

	monthly, err := svc.For(context.Background(), enums.ReportPeriodMonthly, day)
	require.NoError(t, err)
	require.EqualValues(t, 3, monthly.SalesCount)
	require.EqualValues(t, 72000, monthly.Revenue)
}

func TestPeriodRange(t *testing.T) {
	now := time.Date(2026, 12, 31, 22, 0, 0, 0, time.UTC) // 03:00 on Jan 1 in Tashkent

	start, end, err := PeriodRange(enums.ReportPeriodDaily, now, tashkent)
	require.NoError(t, err)
	require.True(t, start.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, tashkent)))
	require.True(t, end.Equal(time.Date(2027, 1, 2, 0, 0, 0, 0, tashkent)))

	start, end, err = PeriodRange(enums.ReportPeriodMonthly, now, time.UTC)
	require.NoError(t, err)
	require.True(t, start.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, end.Equal(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))

	start, end, err = PeriodRange(enums.ReportPeriodYearly, now, tashkent)
	require.NoError(t, err)
	require.Equal(t, 2027, start.Year())
	require.Equal(t, 2028, end.Year())

	_, _, err = PeriodRange("weekly", now, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAggregateRejectsEmptyRange(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.NewClient(t).DB()), nil)
	require.NoError(t, err)
	now := time.Now()
	_, err = svc.Aggregate(context.Background(), now, now)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestFormatSummary(t *testing.T) {
	summary := Summarize([]Row{
		{Product: "Tea", QtySold: 3, Revenue: 15000, Cost: 9000, Profit: 6000},
		{Product: "Sugar", QtySold: 1, Revenue: 12000, Cost: 8000, Profit: 4000},
	})
	summary.Period = enums.ReportPeriodDaily
	summary.Start = time.Date(2026, 3, 8, 0, 0, 0, 0, tashkent)
	summary.SalesCount = 2
	summary.Cash = 10000
	summary.Credit = 17000

	text := FormatSummary(summary, 1)
	require.True(t, strings.HasPrefix(text, "📊 Kunlik hisobot (08.03.2026)\n"))
	require.Contains(t, text, "Tushum: 27.000 so'm")
	require.Contains(t, text, "Foyda: 10.000 so'm")
	require.Contains(t, text, "Tea — 3 dona, 15.000 so'm (foyda 6.000 so'm)")
	require.NotContains(t, text, "Sugar —")
	require.Contains(t, text, "yana 1 ta mahsulot")

	empty := FormatSummary(&Summary{Period: enums.ReportPeriodYearly, Start: summary.Start}, 0)
	require.Contains(t, empty, "Yillik hisobot (2026)")
	require.Contains(t, empty, "sotuv yo'q")
}
