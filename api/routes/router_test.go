package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopkeeper/api/responses"
	"github.com/angelmondragon/shopkeeper/internal/catalog"
	"github.com/angelmondragon/shopkeeper/internal/customers"
	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/internal/receipts"
	"github.com/angelmondragon/shopkeeper/internal/reports"
	"github.com/angelmondragon/shopkeeper/pkg/config"
	"github.com/angelmondragon/shopkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
)

const testKey = "test-key"

type fixedRate struct{}

func (fixedRate) USDRate(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(12800), nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	handler http.Handler
	saleID  uint64
	debtID  uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.NewClient(t)
	conn := client.DB()

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), client, fixedRate{})
	require.NoError(t, err)
	customerSvc, err := customers.NewService(customers.NewRepository(conn))
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), customerSvc)
	require.NoError(t, err)
	reportSvc, err := reports.NewService(reports.NewRepository(conn), time.UTC)
	require.NoError(t, err)
	renderer, err := receipts.NewRenderer(ledgerSvc, receipts.Options{
		Store: config.StoreConfig{Name: "Test do'kon", Brand: "SRM"},
	})
	require.NoError(t, err)

	product := &models.Product{Name: "Choynak", NameKey: catalog.NameKey("Choynak"), Qty: 2, CostPrice: 3000, SuggestPrice: 5000}
	require.NoError(t, conn.Create(product).Error)
	customer := &models.Customer{Name: "Ali", Phone: "+998901234567"}
	require.NoError(t, conn.Create(customer).Error)
	sale := &models.Sale{
		CustomerID:  customer.ID,
		TotalAmount: 10000,
		PaymentType: enums.PaymentMethodCredit,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, conn.Create(sale).Error)
	require.NoError(t, conn.Create(&models.SaleItem{
		SaleID: sale.ID, ProductID: product.ID, Name: product.Name, Qty: 2, Price: 5000, Total: 10000,
	}).Error)
	debt := &models.Debt{CustomerID: customer.ID, SaleID: sale.ID, Amount: 10000, CreatedAt: sale.CreatedAt}
	require.NoError(t, conn.Create(debt).Error)

	cfg := &config.Config{
		App:  config.AppConfig{Env: "test"},
		API:  config.APIConfig{Keys: []string{testKey}},
		Cron: config.CronConfig{LowStockThreshold: 3},
	}
	reg := prometheus.NewRegistry()
	handler := NewRouter(Deps{
		Config:     cfg,
		Logger:     logger.Nop(),
		DB:         client,
		Catalog:    catalogSvc,
		Ledger:     ledgerSvc,
		Reports:    reportSvc,
		Receipts:   renderer,
		Gatherer:   reg,
		Registerer: reg,
		Location:   time.UTC,
	})
	return &fixture{handler: handler, saleID: sale.ID, debtID: debt.ID}
}

func (f *fixture) get(t *testing.T, path string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authed {
		req.Header.Set("X-API-Key", testKey)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body responses.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func TestHealthRoutesArePublic(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/health/live", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "test", rec.Header().Get("X-Shopkeeper-Env"))

	rec = f.get(t, "/health/ready", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeData(t, rec, &ready)
	require.Equal(t, "ready", ready.Status)
	require.Equal(t, "ok", ready.Checks["db"])
	require.Equal(t, "disabled", ready.Checks["redis"])
}

func TestReadyReportsFailedDependency(t *testing.T) {
	reg := prometheus.NewRegistry()
	handler := NewRouter(Deps{
		Config:     &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:     logger.Nop(),
		DB:         failingPinger{},
		Gatherer:   reg,
		Registerer: reg,
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, rec))
}

func TestAPIRequiresKey(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/v1/debts", false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSaleDetail(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/v1/sales/"+itoa(f.saleID), true)
	require.Equal(t, http.StatusOK, rec.Code)

	var sale struct {
		ID          uint64 `json:"id"`
		PaymentType string `json:"payment_type"`
		TotalAmount int64  `json:"total_amount"`
		DebtAmount  *int64 `json:"debt_amount"`
		Customer    struct {
			Name string `json:"name"`
		} `json:"customer"`
		Items []struct {
			Name string `json:"name"`
			Qty  int64  `json:"qty"`
		} `json:"items"`
	}
	decodeData(t, rec, &sale)
	require.Equal(t, f.saleID, sale.ID)
	require.Equal(t, "credit", sale.PaymentType)
	require.Equal(t, int64(10000), sale.TotalAmount)
	require.NotNil(t, sale.DebtAmount)
	require.Equal(t, int64(10000), *sale.DebtAmount)
	require.Equal(t, "Ali", sale.Customer.Name)
	require.Len(t, sale.Items, 1)
	require.Equal(t, int64(2), sale.Items[0].Qty)
}

func TestSaleDetailErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/v1/sales/999", true)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, string(pkgerrors.CodeNotFound), errorCode(t, rec))

	rec = f.get(t, "/api/v1/sales/abc", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
}

func TestReceiptText(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/receipt", "/receipt.txt", "/receipt?format=text"} {
		rec := f.get(t, "/api/v1/sales/"+itoa(f.saleID)+path, true)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Equal(t, receipts.ContentTypeText, rec.Header().Get("Content-Type"))
		require.Contains(t, rec.Body.String(), "Choynak")
	}
}

func TestReceiptPNG(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/receipt.png", "/receipt?format=png"} {
		rec := f.get(t, "/api/v1/sales/"+itoa(f.saleID)+path, true)
		require.Equal(t, http.StatusOK, rec.Code, path)
		contentType := rec.Header().Get("Content-Type")
		if contentType == receipts.ContentTypePNG {
			require.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
			continue
		}
		// a text fallback must say so.
		require.NotEmpty(t, rec.Header().Get("X-Receipt-Degraded"))
	}
}

func TestReceiptRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/v1/sales/"+itoa(f.saleID)+"/receipt?format=pdf", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDebts(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/v1/debts", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Debts []ledger.DebtorRow `json:"debts"`
		Total int64              `json:"total"`
	}
	decodeData(t, rec, &body)
	require.Len(t, body.Debts, 1)
	require.Equal(t, f.debtID, body.Debts[0].DebtID)
	require.Equal(t, "Ali", body.Debts[0].CustomerName)
	require.Equal(t, int64(10000), body.Total)

	rec = f.get(t, "/api/v1/debts?limit=0", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDailyReport(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/v1/reports/daily", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary reports.Summary
	decodeData(t, rec, &summary)
	require.Equal(t, enums.ReportPeriodDaily, summary.Period)
	require.Equal(t, int64(1), summary.SalesCount)
	require.Equal(t, int64(10000), summary.Revenue)
	require.Equal(t, int64(6000), summary.Cost)
	require.Equal(t, int64(4000), summary.Profit)
	require.Equal(t, int64(10000), summary.Credit)

	rec = f.get(t, "/api/v1/reports/daily?format=text", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Kunlik hisobot")
}

func TestReportForPastDateAndBadInput(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/v1/reports/daily?at=2001-01-01", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary reports.Summary
	decodeData(t, rec, &summary)
	require.Zero(t, summary.SalesCount)
	require.Empty(t, summary.Rows)

	rec = f.get(t, "/api/v1/reports/weekly", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get(t, "/api/v1/reports/daily?at=01.01.2001", true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/v1/products?q=choy", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []struct {
		Name string `json:"name"`
		Qty  int64  `json:"qty"`
	}
	decodeData(t, rec, &found)
	require.Len(t, found, 1)
	require.Equal(t, "Choynak", found[0].Name)

	rec = f.get(t, "/api/v1/products/low-stock", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var low []struct {
		Qty int64 `json:"qty"`
	}
	decodeData(t, rec, &low)
	require.Len(t, low, 1)

	rec = f.get(t, "/api/v1/products/low-stock?threshold=1", true)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &low)
	require.Empty(t, low)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/health/live", false)

	rec := f.get(t, "/metrics", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "shopkeeper_http_requests_total")
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
