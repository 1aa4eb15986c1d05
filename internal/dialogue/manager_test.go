package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/cart"
	"github.com/angelmondragon/shopkeeper/internal/catalog"
	"github.com/angelmondragon/shopkeeper/internal/checkout"
	"github.com/angelmondragon/shopkeeper/internal/customers"
	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/internal/reports"
	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/angelmondragon/shopkeeper/pkg/db/dbtest"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixedRate struct{ rate decimal.Decimal }

func (f fixedRate) USDRate(context.Context) (decimal.Decimal, error) { return f.rate, nil }

type chat struct {
	t       *testing.T
	client  *db.Client
	manager *Manager
	store   *flakyStore
	id      string
}

// flakyStore fails the next failSaves saves after they reach the wrapped store
// unchanged, the way a lost Redis write would.
type flakyStore struct {
	*MemoryStore
	mu        sync.Mutex
	failSaves int
}

func (f *flakyStore) Save(ctx context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSaves > 0 {
		f.failSaves--
		return errors.New("session store unavailable")
	}
	return f.MemoryStore.Save(ctx, s)
}

func newChat(t *testing.T) *chat {
	t.Helper()
	client := dbtest.NewClient(t)
	conn := client.DB()

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), client, fixedRate{rate: decimal.NewFromInt(12800)})
	require.NoError(t, err)
	cartSvc, err := cart.NewService(catalogSvc)
	require.NoError(t, err)
	customerSvc, err := customers.NewService(customers.NewRepository(conn))
	require.NoError(t, err)
	ledgerRepo := ledger.NewRepository(conn)
	checkoutSvc, err := checkout.NewService(client, customerSvc, ledgerRepo, checkout.Options{})
	require.NoError(t, err)
	ledgerSvc, err := ledger.NewService(ledgerRepo, customerSvc)
	require.NoError(t, err)
	reportSvc, err := reports.NewService(reports.NewRepository(conn), time.UTC)
	require.NoError(t, err)

	store := &flakyStore{MemoryStore: NewMemoryStore(time.Hour)}
	manager, err := NewManager(Deps{
		Catalog:   catalogSvc,
		Cart:      cartSvc,
		Checkout:  checkoutSvc,
		Customers: customerSvc,
		Reports:   reportSvc,
		Ledger:    ledgerSvc,
	}, Options{Store: store})
	require.NoError(t, err)

	return &chat{t: t, client: client, manager: manager, store: store, id: "tg:1"}
}

func (c *chat) say(text string) *Reply {
	c.t.Helper()
	reply, err := c.manager.Handle(context.Background(), c.id, 1, text)
	require.NoError(c.t, err)
	require.NotNil(c.t, reply)
	return reply
}

func (c *chat) session() *Session {
	c.t.Helper()
	sess, err := c.store.Load(context.Background(), c.id)
	require.NoError(c.t, err)
	return sess
}

func (c *chat) product(name string, qty, suggest int64) *models.Product {
	c.t.Helper()
	p := &models.Product{Name: name, NameKey: catalog.NameKey(name), Qty: qty, CostPrice: 1000, SuggestPrice: suggest}
	require.NoError(c.t, c.client.DB().Create(p).Error)
	return p
}

func (c *chat) stock(id uint64) int64 {
	c.t.Helper()
	var p models.Product
	require.NoError(c.t, c.client.DB().First(&p, "id = ?", id).Error)
	return p.Qty
}

// fillCart picks one product into the cart and stops at the cart menu.
func (c *chat) fillCart(query, qty, price string) {
	c.t.Helper()
	c.say(BtnSell)
	c.say(query)
	c.say(qty)
	c.say(price)
	require.Equal(c.t, StepCartMenu, c.session().Step)
}

func (c *chat) payWithNewCustomer(payment string) *Reply {
	c.t.Helper()
	c.say(BtnCheckout)
	c.say(BtnNewCustomer)
	c.say("Ali")
	c.say("+998901234567")
	return c.say(payment)
}

func hasOption(reply *Reply, label string) bool {
	for _, row := range reply.Options {
		for _, opt := range row {
			if opt == label {
				return true
			}
		}
	}
	return false
}

func TestCashSaleThroughChat(t *testing.T) {
	c := newChat(t)
	bread := c.product("Bread", 10, 5000)

	reply := c.say("/start")
	require.True(t, hasOption(reply, BtnSell))

	c.say(BtnSell)
	reply = c.say("bread")
	require.Contains(t, reply.Text, "mavjud: 10 dona")
	require.Equal(t, StepSellQty, c.session().Step)

	reply = c.say("2")
	require.True(t, hasOption(reply, "5 000"))
	reply = c.say("5 000")
	require.Contains(t, reply.Text, "Bread — 2 x 5.000 so'm = 10.000 so'm")
	require.True(t, hasOption(reply, BtnCheckout))

	reply = c.payWithNewCustomer(BtnCash)
	require.NotZero(t, reply.ReceiptSaleID)
	require.Contains(t, reply.Text, "10.000 so'm")

	sess := c.session()
	require.Equal(t, StepMenu, sess.Step)
	require.Nil(t, sess.Checkout)
	require.True(t, sess.Cart.IsEmpty())
	require.EqualValues(t, 8, c.stock(bread.ID))

	var debts int64
	require.NoError(t, c.client.DB().Model(&models.Debt{}).Count(&debts).Error)
	require.Zero(t, debts)
}

func TestCreditSaleShowsInDebtors(t *testing.T) {
	c := newChat(t)
	c.product("Milk", 5, 0)

	c.fillCart("milk", "1", "25000")
	sold := c.payWithNewCustomer(BtnCredit)
	require.NotZero(t, sold.ReceiptSaleID)

	reply := c.say(BtnDebtors)
	require.Contains(t, reply.Text, "Ali +998901234567")
	require.Contains(t, reply.Text, "25.000 so'm")
	require.Contains(t, reply.Text, fmt.Sprintf("Chek №%d", sold.ReceiptSaleID))
}

func TestProductByIDAndPickList(t *testing.T) {
	c := newChat(t)
	c.product("Cola 0.5", 3, 0)
	big := c.product("Cola 1.5", 4, 0)

	c.say(BtnSell)
	reply := c.say("cola")
	require.Equal(t, StepSellProduct, c.session().Step)
	require.True(t, hasOption(reply, fmt.Sprintf("#%d Cola 1.5 (4 dona)", big.ID)))

	reply = c.say(fmt.Sprintf("#%d Cola 1.5 (4 dona)", big.ID))
	require.Equal(t, StepSellQty, c.session().Step)
	require.Equal(t, big.ID, c.session().Draft.ProductID)
	require.Contains(t, reply.Text, "Cola 1.5")
}

func TestParseFailureKeepsStep(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 2, 0)
	c.say(BtnSell)
	c.say("bread")

	reply := c.say("two")
	require.Equal(t, msgBadQty, reply.Text)
	require.Equal(t, StepSellQty, c.session().Step)

	reply = c.say("5")
	require.Contains(t, reply.Text, "faqat 2 dona")
	require.Equal(t, StepSellQty, c.session().Step)

	c.say("2")
	reply = c.say("5.5")
	require.Equal(t, msgBadPrice, reply.Text)
	require.Equal(t, StepSellPrice, c.session().Step)
}

func TestCartHintCountsItemsAlreadyPicked(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 3, 0)
	c.fillCart("bread", "2", "1000")

	c.say(BtnAddMore)
	reply := c.say("bread")
	require.Contains(t, reply.Text, "mavjud: 1 dona")

	c.say("1")
	c.say("1000")
	c.say(BtnAddMore)
	reply = c.say("bread")
	require.Equal(t, msgOutOfStock, reply.Text)
	require.Equal(t, StepSellProduct, c.session().Step)
}

func TestCartMenuEdits(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 5, 0)
	c.product("Milk", 5, 0)
	c.fillCart("bread", "1", "1000")
	c.say(BtnAddMore)
	c.say("milk")
	c.say("1")
	c.say("2000")
	require.Equal(t, 2, c.session().Cart.Len())

	reply := c.say(BtnRemoveLast)
	require.NotContains(t, reply.Text, "Milk")
	require.Equal(t, 1, c.session().Cart.Len())

	reply = c.say(BtnClearCart)
	require.Equal(t, msgEmptyCart, reply.Text)

	reply = c.say(BtnCheckout)
	require.Equal(t, msgEmptyCart, reply.Text)
	require.Equal(t, StepCartMenu, c.session().Step)
	require.Nil(t, c.session().Checkout)
}

func TestCancelBeforeCommitKeepsCustomer(t *testing.T) {
	c := newChat(t)
	bread := c.product("Bread", 5, 0)
	c.fillCart("bread", "2", "1000")
	c.say(BtnCheckout)
	c.say(BtnNewCustomer)
	c.say("Vali")
	c.say("+998907654321")
	require.Equal(t, StepPayment, c.session().Step)

	reply := c.say(BtnCancel)
	require.Equal(t, msgCancelled, reply.Text)

	sess := c.session()
	require.Equal(t, StepMenu, sess.Step)
	require.True(t, sess.Cart.IsEmpty())
	require.Nil(t, sess.Checkout)
	require.EqualValues(t, 5, c.stock(bread.ID))

	var sales, customersOnFile int64
	require.NoError(t, c.client.DB().Model(&models.Sale{}).Count(&sales).Error)
	require.NoError(t, c.client.DB().Model(&models.Customer{}).Count(&customersOnFile).Error)
	require.Zero(t, sales)
	require.EqualValues(t, 1, customersOnFile)
}

func TestBadPaymentRePrompts(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 5, 0)
	c.fillCart("bread", "1", "1000")
	c.say(BtnCheckout)
	c.say(BtnNewCustomer)
	c.say("Ali")
	c.say("+998901234567")

	reply := c.say("card")
	require.Equal(t, msgBadPayment, reply.Text)
	require.Equal(t, StepPayment, c.session().Step)
}

func TestUnknownCustomerIDRePrompts(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 5, 0)
	c.fillCart("bread", "1", "1000")
	c.say(BtnCheckout)

	reply := c.say("#999")
	require.Contains(t, reply.Text, "Topilmadi")
	require.Equal(t, StepCustomer, c.session().Step)
	require.Equal(t, enums.CheckoutStateCollectingCustomer, c.session().Checkout.State)
}

func TestExistingCustomerFromRecentList(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 5, 0)
	known := &models.Customer{Name: "Karim", Phone: "+998901112233"}
	require.NoError(t, c.client.DB().Create(known).Error)

	c.fillCart("bread", "1", "1000")
	reply := c.say(BtnCheckout)
	label := fmt.Sprintf("#%d Karim +998901112233", known.ID)
	require.True(t, hasOption(reply, label))

	c.say(label)
	reply = c.say(BtnCash)
	require.NotZero(t, reply.ReceiptSaleID)

	var sale models.Sale
	require.NoError(t, c.client.DB().First(&sale, "id = ?", reply.ReceiptSaleID).Error)
	require.Equal(t, known.ID, sale.CustomerID)
}

func TestStockGoneAtCommitReturnsToCart(t *testing.T) {
	c := newChat(t)
	bread := c.product("Bread", 2, 0)
	c.fillCart("bread", "2", "1000")

	require.NoError(t, c.client.DB().Model(&models.Product{}).Where("id = ?", bread.ID).Update("qty", 1).Error)

	reply := c.payWithNewCustomer(BtnCash)
	require.Zero(t, reply.ReceiptSaleID)
	require.Contains(t, reply.Text, "Omborda yetarli emas: Bread")
	require.Contains(t, reply.Text, "so'ralgan 2, mavjud 1")

	sess := c.session()
	require.Equal(t, StepCartMenu, sess.Step)
	require.Nil(t, sess.Checkout)
	require.Equal(t, 1, sess.Cart.Len())
	require.EqualValues(t, 1, c.stock(bread.ID))
}

func TestIntakeThroughChat(t *testing.T) {
	c := newChat(t)

	c.say(BtnIntake)
	reply := c.say("Кола")
	require.Contains(t, reply.Text, "Latin")
	require.Equal(t, StepIntakeName, c.session().Step)

	c.say("Cola")
	c.say("10")
	reply = c.say("abc")
	require.Equal(t, msgBadIntakeCost, reply.Text)
	c.say("2,5")
	reply = c.say("40 000")
	require.Contains(t, reply.Text, "Mahsulot qo'shildi")
	require.Contains(t, reply.Text, "32.000 so'm")
	require.Equal(t, StepMenu, c.session().Step)

	var p models.Product
	require.NoError(t, c.client.DB().First(&p, "name = ?", "Cola").Error)
	require.EqualValues(t, 10, p.Qty)
	require.EqualValues(t, 32000, p.CostPrice)
	require.EqualValues(t, 40000, p.SuggestPrice)

	c.say(BtnIntake)
	c.say("cola")
	c.say("5")
	c.say("2.5")
	reply = c.say("40000")
	require.Contains(t, reply.Text, "endi 15 dona")
}

func TestStatsAndReceiptLookup(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 5, 0)
	c.fillCart("bread", "2", "3000")
	sold := c.payWithNewCustomer(BtnCash)

	c.say(BtnStats)
	reply := c.say(BtnDaily)
	require.Contains(t, reply.Text, "Kunlik")
	require.Contains(t, reply.Text, "Bread — 2 dona, 6.000 so'm")
	require.Equal(t, StepStatsPeriod, c.session().Step)

	c.say(BtnReceiptByID)
	reply = c.say("abc")
	require.Equal(t, msgBadReceiptID, reply.Text)
	reply = c.say("999")
	require.Contains(t, reply.Text, "Topilmadi")
	require.Zero(t, reply.ReceiptSaleID)

	reply = c.say(fmt.Sprint(sold.ReceiptSaleID))
	require.Equal(t, sold.ReceiptSaleID, reply.ReceiptSaleID)
	require.Equal(t, StepStatsPeriod, c.session().Step)

	reply = c.say(BtnBack)
	require.True(t, hasOption(reply, BtnSell))
	require.Equal(t, StepMenu, c.session().Step)
}

func TestSessionsAreIndependent(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 5, 0)
	c.fillCart("bread", "1", "1000")

	other, err := c.manager.Handle(context.Background(), "tg:2", 2, BtnSell)
	require.NoError(t, err)
	require.Equal(t, msgAskProduct, other.Text)

	sess, err := c.store.Load(context.Background(), "tg:2")
	require.NoError(t, err)
	require.True(t, sess.Cart.IsEmpty())
	require.Equal(t, 1, c.session().Cart.Len())
}

func TestConcurrentMessagesForOneSessionSerialize(t *testing.T) {
	c := newChat(t)
	c.product("Bread", 100, 0)
	c.fillCart("bread", "1", "1000")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.manager.Handle(context.Background(), c.id, 1, BtnRemoveLast)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.True(t, c.session().Cart.IsEmpty())
	require.Zero(t, c.manager.locks.size())
}

func TestUnknownMenuInputShowsMenu(t *testing.T) {
	c := newChat(t)
	reply := c.say("hello")
	require.Equal(t, msgChoose, reply.Text)
	require.Len(t, reply.Options, 3)
	require.True(t, strings.HasPrefix(reply.Options[0][0], "🔹"))
}

func TestPaymentResentAfterLostSaveCommitsOnce(t *testing.T) {
	c := newChat(t)
	p := c.product("Coca Cola", 10, 12000)
	c.fillCart("cola", "3", "12000")

	c.say(BtnCheckout)
	c.say(BtnNewCustomer)
	c.say("Ali")
	c.say("+998901234567")

	c.store.failSaves = 1
	_, err := c.manager.Handle(context.Background(), c.id, 1, BtnCash)
	require.Error(t, err)
	require.EqualValues(t, 7, c.stock(p.ID), "the sale was written before the save failed")

	stale := c.session()
	require.Equal(t, StepPayment, stale.Step)
	require.NotNil(t, stale.Checkout)
	require.Equal(t, 1, stale.Cart.Len())

	reply := c.say(BtnCash)
	require.NotZero(t, reply.ReceiptSaleID)
	require.Contains(t, reply.Text, "Sotuv saqlandi")

	var sales int64
	require.NoError(t, c.client.DB().Model(&models.Sale{}).Count(&sales).Error)
	require.EqualValues(t, 1, sales)
	var items int64
	require.NoError(t, c.client.DB().Model(&models.SaleItem{}).Count(&items).Error)
	require.EqualValues(t, 1, items)
	require.EqualValues(t, 7, c.stock(p.ID))

	sess := c.session()
	require.Equal(t, StepMenu, sess.Step)
	require.True(t, sess.Cart.IsEmpty())
}
