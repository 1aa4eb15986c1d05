package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/customers"
	"github.com/angelmondragon/shopkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, Repository, *gorm.DB) {
	t.Helper()
	client := dbtest.NewClient(t)
	customerSvc, err := customers.NewService(customers.NewRepository(client.DB()))
	require.NoError(t, err)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, customerSvc)
	require.NoError(t, err)
	return svc, repo, client.DB()
}

func seedSale(t *testing.T, conn *gorm.DB, repo Repository, payment enums.PaymentMethod, createdAt time.Time) (*models.Sale, *models.Customer) {
	t.Helper()
	ctx := context.Background()
	customer := &models.Customer{Name: "Ali", Phone: "+998901234567"}
	require.NoError(t, conn.Create(customer).Error)

	items := []models.SaleItem{
		{ProductID: 1, Name: "Tea", Qty: 2, Price: 5000, Total: 10000},
		{ProductID: 2, Name: "Sugar", Qty: 1, Price: 12000, Total: 12000},
	}
	sale := &models.Sale{
		CustomerID:  customer.ID,
		TotalAmount: ItemsTotal(items),
		PaymentType: payment,
		CreatedAt:   createdAt,
	}
	require.NoError(t, repo.CreateSale(ctx, sale))
	for i := range items {
		items[i].SaleID = sale.ID
	}
	require.NoError(t, repo.CreateItems(ctx, items))
	if payment == enums.PaymentMethodCredit {
		require.NoError(t, repo.CreateDebt(ctx, &models.Debt{
			CustomerID: customer.ID,
			SaleID:     sale.ID,
			Amount:     sale.TotalAmount,
			CreatedAt:  createdAt,
		}))
	}
	return sale, customer
}

func TestSaleDetailLoadsItemsCustomerAndDebt(t *testing.T) {
	svc, repo, conn := newTestService(t)
	sale, customer := seedSale(t, conn, repo, enums.PaymentMethodCredit, time.Now().UTC())

	detail, err := svc.SaleDetail(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 2)
	require.Equal(t, "Tea", detail.Items[0].Name)
	require.Equal(t, detail.Sale.TotalAmount, ItemsTotal(detail.Items))
	require.NotNil(t, detail.Customer)
	require.Equal(t, customer.Name, detail.Customer.Name)
	require.NotNil(t, detail.Debt)
	require.EqualValues(t, 22000, detail.Debt.Amount)
}

func TestSaleDetailCashHasNoDebt(t *testing.T) {
	svc, repo, conn := newTestService(t)
	sale, _ := seedSale(t, conn, repo, enums.PaymentMethodCash, time.Now().UTC())

	detail, err := svc.SaleDetail(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Nil(t, detail.Debt)
}

func TestSaleDetailUnknownSale(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.SaleDetail(context.Background(), 404)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.SaleDetail(context.Background(), 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDebtorsNewestFirst(t *testing.T) {
	svc, repo, conn := newTestService(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	older, _ := seedSale(t, conn, repo, enums.PaymentMethodCredit, base)
	newer, _ := seedSale(t, conn, repo, enums.PaymentMethodCredit, base.Add(time.Hour))
	seedSale(t, conn, repo, enums.PaymentMethodCash, base.Add(2*time.Hour))

	rows, err := svc.Debtors(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, newer.ID, rows[0].SaleID)
	require.Equal(t, older.ID, rows[1].SaleID)
	require.Equal(t, "Ali", rows[0].CustomerName)
}

func TestDebtUniquePerSale(t *testing.T) {
	_, repo, conn := newTestService(t)
	sale, customer := seedSale(t, conn, repo, enums.PaymentMethodCredit, time.Now().UTC())

	err := repo.CreateDebt(context.Background(), &models.Debt{
		CustomerID: customer.ID,
		SaleID:     sale.ID,
		Amount:     1,
		CreatedAt:  time.Now().UTC(),
	})
	require.Error(t, err)
}

func TestListSalesBetweenIsHalfOpen(t *testing.T) {
	_, repo, conn := newTestService(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	seedSale(t, conn, repo, enums.PaymentMethodCash, start)
	seedSale(t, conn, repo, enums.PaymentMethodCash, end)

	sales, err := repo.ListSalesBetween(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, sales, 1)
}
