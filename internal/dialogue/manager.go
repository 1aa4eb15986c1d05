package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/cart"
	"github.com/angelmondragon/shopkeeper/internal/catalog"
	"github.com/angelmondragon/shopkeeper/internal/checkout"
	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/internal/reports"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
	"github.com/angelmondragon/shopkeeper/pkg/money"
)

const (
	defaultSearchLimit    = 10
	defaultCustomerLimit  = 10
	defaultReportTopN     = 15
	defaultDebtorsListLen = 50
)

type catalogService interface {
	Intake(ctx context.Context, input catalog.IntakeInput) (*catalog.IntakeResult, error)
	Get(ctx context.Context, id uint64) (*models.Product, error)
	Search(ctx context.Context, query string, limit int) ([]models.Product, error)
}

type cartService interface {
	AddItem(ctx context.Context, c *cart.Cart, productID uint64, qty, unitPrice int64) (cart.Item, error)
}

type customerLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.Customer, error)
}

type reportService interface {
	Current(ctx context.Context, period enums.ReportPeriod) (*reports.Summary, error)
}

type ledgerReader interface {
	SaleDetail(ctx context.Context, saleID uint64) (*ledger.SaleDetail, error)
	Debtors(ctx context.Context, limit int) ([]ledger.DebtorRow, error)
}

// Reply is what the transport sends back to the chat.
type Reply struct {
	Text    string
	Options [][]string
	// ReceiptSaleID asks the transport to render and send that sale's receipt.
	ReceiptSaleID uint64
}

// Deps are the domain services the dialogue drives.
type Deps struct {
	Catalog   catalogService
	Cart      cartService
	Checkout  checkout.Service
	Customers customerLister
	Reports   reportService
	Ledger    ledgerReader
}

type Options struct {
	Store      Store
	Logger     *logger.Logger
	Location   *time.Location
	ReportTopN int
	Now        func() time.Time
}

// Manager owns all sessions. Messages for one session are handled one at a
// time; different sessions proceed in parallel.
type Manager struct {
	deps  Deps
	store Store
	logg  *logger.Logger
	loc   *time.Location
	topN  int
	now   func() time.Time
	locks *keyedMutex
}

func NewManager(deps Deps, opts Options) (*Manager, error) {
	switch {
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog service required")
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case deps.Checkout == nil:
		return nil, fmt.Errorf("checkout service required")
	case deps.Customers == nil:
		return nil, fmt.Errorf("customer service required")
	case deps.Reports == nil:
		return nil, fmt.Errorf("reports service required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger service required")
	case opts.Store == nil:
		return nil, fmt.Errorf("session store required")
	}
	m := &Manager{
		deps:  deps,
		store: opts.Store,
		logg:  opts.Logger,
		loc:   opts.Location,
		topN:  opts.ReportTopN,
		now:   opts.Now,
		locks: newKeyedMutex(),
	}
	if m.logg == nil {
		m.logg = logger.Nop()
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.topN <= 0 {
		m.topN = defaultReportTopN
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Handle processes one message. Domain failures become reply text; only
// session storage failures are returned as errors.
func (m *Manager) Handle(ctx context.Context, sessionID string, userID int64, text string) (*Reply, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	ctx = m.logg.WithSessionID(ctx, sessionID)
	ctx = m.logg.WithUserID(ctx, userID)

	sess, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		sess = NewSession(sessionID, userID)
	} else if err != nil {
		return nil, err
	}
	if sess.Cart == nil {
		sess.Cart = cart.New(sessionID)
	}

	reply := m.dispatch(ctx, sess, strings.TrimSpace(text))

	sess.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return reply, nil
}

// Session returns the stored session, mostly for inspection in tools and tests.
func (m *Manager) Session(ctx context.Context, sessionID string) (*Session, error) {
	return m.store.Load(ctx, sessionID)
}

func (m *Manager) dispatch(ctx context.Context, sess *Session, text string) *Reply {
	switch text {
	case "/start":
		m.cancel(sess)
		return m.menu(msgWelcome)
	case "/cancel", BtnCancel:
		m.cancel(sess)
		return m.menu(msgCancelled)
	}

	switch sess.Step {
	case StepSellProduct:
		return m.onSellProduct(ctx, sess, text)
	case StepSellQty:
		return m.onSellQty(sess, text)
	case StepSellPrice:
		return m.onSellPrice(ctx, sess, text)
	case StepCartMenu:
		return m.onCartMenu(ctx, sess, text)
	case StepCustomer:
		return m.onCustomer(ctx, sess, text)
	case StepCustomerName:
		return m.onCustomerName(sess, text)
	case StepCustomerPhone:
		return m.onCustomerPhone(ctx, sess, text)
	case StepPayment:
		return m.onPayment(ctx, sess, text)
	case StepCommitFailed:
		return m.onCommitFailed(ctx, sess, text)
	case StepIntakeName:
		return m.onIntakeName(sess, text)
	case StepIntakeQty:
		return m.onIntakeQty(sess, text)
	case StepIntakeCost:
		return m.onIntakeCost(sess, text)
	case StepIntakePrice:
		return m.onIntakePrice(ctx, sess, text)
	case StepStatsPeriod:
		return m.onStatsPeriod(ctx, sess, text)
	case StepReceiptID:
		return m.onReceiptID(ctx, sess, text)
	default:
		return m.onMenu(ctx, sess, text)
	}
}

// cancel drops any sale in progress. A committed sale is never touched.
func (m *Manager) cancel(sess *Session) {
	if sess.Checkout != nil && sess.Checkout.CanCancel() {
		_ = m.deps.Checkout.Cancel(sess.Checkout, sess.Cart)
	} else {
		sess.Cart.Clear()
	}
	sess.reset()
}

func (m *Manager) menu(text string) *Reply {
	return &Reply{Text: text, Options: menuOptions()}
}

func (m *Manager) onMenu(ctx context.Context, sess *Session, text string) *Reply {
	switch text {
	case BtnSell:
		sess.Step = StepSellProduct
		return m.askProduct(sess, msgAskProduct)
	case BtnIntake:
		sess.Step = StepIntakeName
		sess.Draft = Draft{}
		return &Reply{Text: msgAskIntakeName, Options: cancelOnly()}
	case BtnStats:
		sess.Step = StepStatsPeriod
		return &Reply{Text: msgAskPeriod, Options: statsOptions()}
	case BtnDebtors:
		rows, err := m.deps.Ledger.Debtors(ctx, defaultDebtorsListLen)
		if err != nil {
			return m.menu(m.failure(ctx, err))
		}
		return m.menu(debtorsText(rows, m.loc))
	default:
		return m.menu(msgChoose)
	}
}

func (m *Manager) askProduct(sess *Session, text string) *Reply {
	options := [][]string{}
	if !sess.Cart.IsEmpty() {
		options = append(options, []string{BtnViewCart})
	}
	options = append(options, []string{BtnCancel})
	return &Reply{Text: text, Options: options}
}

func (m *Manager) onSellProduct(ctx context.Context, sess *Session, text string) *Reply {
	if text == BtnViewCart && !sess.Cart.IsEmpty() {
		sess.Step = StepCartMenu
		return &Reply{Text: cartText(sess.Cart), Options: cartOptions()}
	}
	if text == "" {
		return m.askProduct(sess, msgAskProduct)
	}

	if id, ok := ParseID(text); ok {
		product, err := m.deps.Catalog.Get(ctx, id)
		if err == nil {
			return m.selectProduct(sess, product)
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return m.askProduct(sess, m.failure(ctx, err))
		}
	}

	found, err := m.deps.Catalog.Search(ctx, text, defaultSearchLimit)
	if err != nil {
		return m.askProduct(sess, m.failure(ctx, err))
	}
	switch len(found) {
	case 0:
		return m.askProduct(sess, msgNoProducts)
	case 1:
		return m.selectProduct(sess, &found[0])
	}
	options := make([][]string, 0, len(found)+1)
	for _, p := range found {
		options = append(options, []string{productOption(p)})
	}
	options = append(options, []string{BtnCancel})
	return &Reply{Text: msgPickProduct, Options: options}
}

func (m *Manager) selectProduct(sess *Session, product *models.Product) *Reply {
	available := product.Qty - sess.Cart.QtyFor(product.ID)
	if available <= 0 {
		return m.askProduct(sess, msgOutOfStock)
	}
	sess.Draft = Draft{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Available:    available,
		SuggestPrice: product.SuggestPrice,
	}
	sess.Step = StepSellQty
	return &Reply{
		Text:    fmt.Sprintf("%s\nMiqdorni kiriting (mavjud: %d dona):", product.Name, available),
		Options: cancelOnly(),
	}
}

func (m *Manager) onSellQty(sess *Session, text string) *Reply {
	qty, ok := ParseQty(text)
	if !ok {
		return &Reply{Text: msgBadQty, Options: cancelOnly()}
	}
	if qty > sess.Draft.Available {
		return &Reply{
			Text:    fmt.Sprintf("❗ Omborda faqat %d dona bor. Miqdorni kiriting:", sess.Draft.Available),
			Options: cancelOnly(),
		}
	}
	sess.Draft.Qty = qty
	sess.Step = StepSellPrice

	options := cancelOnly()
	text = "Sotuv narxini kiriting (so'm):"
	if sess.Draft.SuggestPrice > 0 {
		text = fmt.Sprintf("Sotuv narxini kiriting (tavsiya: %s):", money.Format(sess.Draft.SuggestPrice))
		options = [][]string{{money.Plain(sess.Draft.SuggestPrice)}, {BtnCancel}}
	}
	return &Reply{Text: text, Options: options}
}

func (m *Manager) onSellPrice(ctx context.Context, sess *Session, text string) *Reply {
	price, ok := ParsePrice(text)
	if !ok {
		return &Reply{Text: msgBadPrice, Options: cancelOnly()}
	}
	draft := sess.Draft
	if _, err := m.deps.Cart.AddItem(ctx, sess.Cart, draft.ProductID, draft.Qty, price); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			sess.Draft = Draft{}
			sess.Step = StepSellProduct
			return m.askProduct(sess, m.failure(ctx, err))
		}
		sess.Step = StepSellQty
		return &Reply{Text: m.failure(ctx, err) + "\nMiqdorni kiriting:", Options: cancelOnly()}
	}
	sess.Draft = Draft{}
	sess.Step = StepCartMenu
	return &Reply{Text: cartText(sess.Cart), Options: cartOptions()}
}

func (m *Manager) onCartMenu(ctx context.Context, sess *Session, text string) *Reply {
	switch text {
	case BtnAddMore:
		sess.Step = StepSellProduct
		return m.askProduct(sess, msgAskProduct)
	case BtnRemoveLast:
		sess.Cart.RemoveLast()
	case BtnClearCart:
		sess.Cart.Clear()
	case BtnCheckout:
		if sess.Cart.IsEmpty() {
			return &Reply{Text: msgEmptyCart, Options: cartOptions()}
		}
		sess.Checkout = checkout.Start()
		sess.Step = StepCustomer
		return m.askCustomer(ctx, msgAskCustomer)
	}
	return &Reply{Text: cartText(sess.Cart), Options: cartOptions()}
}

func (m *Manager) askCustomer(ctx context.Context, text string) *Reply {
	recent, err := m.deps.Customers.ListRecent(ctx, defaultCustomerLimit)
	if err != nil {
		m.logg.Warn(ctx, "listing recent customers failed: "+err.Error())
	}
	options := make([][]string, 0, len(recent)+2)
	for _, c := range recent {
		options = append(options, []string{customerOption(c)})
	}
	options = append(options, []string{BtnNewCustomer}, []string{BtnCancel})
	return &Reply{Text: text, Options: options}
}

func (m *Manager) onCustomer(ctx context.Context, sess *Session, text string) *Reply {
	if text == BtnNewCustomer {
		sess.Step = StepCustomerName
		return &Reply{Text: msgAskCustName, Options: cancelOnly()}
	}
	id, ok := ParseID(text)
	if !ok {
		return m.askCustomer(ctx, msgAskCustomer)
	}
	if _, err := m.deps.Checkout.SelectCustomer(ctx, sess.Checkout, id); err != nil {
		return m.checkoutFailure(ctx, sess, err, func() *Reply { return m.askCustomer(ctx, m.failure(ctx, err)) })
	}
	sess.Step = StepPayment
	return &Reply{Text: msgAskPayment, Options: paymentOptions()}
}

func (m *Manager) onCustomerName(sess *Session, text string) *Reply {
	name := strings.Join(strings.Fields(text), " ")
	if name == "" {
		return &Reply{Text: msgBadCustName, Options: cancelOnly()}
	}
	sess.Draft.CustomerName = name
	sess.Step = StepCustomerPhone
	return &Reply{Text: msgAskCustPhone, Options: cancelOnly()}
}

func (m *Manager) onCustomerPhone(ctx context.Context, sess *Session, text string) *Reply {
	_, err := m.deps.Checkout.RegisterCustomer(ctx, sess.Checkout, sess.Draft.CustomerName, text)
	if err != nil {
		return m.checkoutFailure(ctx, sess, err, func() *Reply {
			return &Reply{Text: m.failure(ctx, err) + "\n" + msgAskCustPhone, Options: cancelOnly()}
		})
	}
	sess.Draft.CustomerName = ""
	sess.Step = StepPayment
	return &Reply{Text: msgAskPayment, Options: paymentOptions()}
}

func (m *Manager) onPayment(ctx context.Context, sess *Session, text string) *Reply {
	if _, err := m.deps.Checkout.ChoosePayment(sess.Checkout, text); err != nil {
		return m.checkoutFailure(ctx, sess, err, func() *Reply {
			return &Reply{Text: msgBadPayment, Options: paymentOptions()}
		})
	}
	return m.commit(ctx, sess)
}

func (m *Manager) onCommitFailed(ctx context.Context, sess *Session, text string) *Reply {
	switch text {
	case BtnRetry:
		return m.commit(ctx, sess)
	case BtnBackToCart:
		sess.Checkout = nil
		sess.Step = StepCartMenu
		return &Reply{Text: cartText(sess.Cart), Options: cartOptions()}
	default:
		return &Reply{Text: msgCommitFailed, Options: commitFailedOptions()}
	}
}

func (m *Manager) commit(ctx context.Context, sess *Session) *Reply {
	sale, err := m.deps.Checkout.Commit(ctx, sess.Checkout, sess.Cart)
	if err == nil {
		sess.reset()
		return &Reply{
			Text:          fmt.Sprintf("✅ Sotuv saqlandi. Chek №%d, jami %s.", sale.ID, money.Format(sale.TotalAmount)),
			Options:       menuOptions(),
			ReceiptSaleID: sale.ID,
		}
	}

	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeEmptyCart, pkgerrors.CodeInsufficientStock, pkgerrors.CodeValidation:
		sess.Checkout = nil
		sess.Step = StepCartMenu
		return &Reply{Text: errorText(err) + "\n\n" + cartText(sess.Cart), Options: cartOptions()}
	case pkgerrors.CodeStateConflict:
		return m.checkoutFailure(ctx, sess, err, nil)
	default:
		sess.Step = StepCommitFailed
		return &Reply{Text: m.failure(ctx, err), Options: commitFailedOptions()}
	}
}

// checkoutFailure handles an error from a checkout step. A state conflict
// means the stored flow no longer fits the step, so the flow is dropped and
// the user goes back to the cart. Anything else re-prompts the same step.
func (m *Manager) checkoutFailure(ctx context.Context, sess *Session, err error, reprompt func() *Reply) *Reply {
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || reprompt == nil {
		m.logg.Warn(ctx, "checkout flow out of step: "+err.Error())
		sess.Checkout = nil
		sess.Draft = Draft{}
		sess.Step = StepCartMenu
		return &Reply{Text: errorText(err) + "\n\n" + cartText(sess.Cart), Options: cartOptions()}
	}
	return reprompt()
}

func (m *Manager) onIntakeName(sess *Session, text string) *Reply {
	if err := catalog.ValidateName(text); err != nil {
		return &Reply{Text: errorText(err) + "\n" + msgAskIntakeName, Options: cancelOnly()}
	}
	sess.Draft.IntakeName = catalog.CleanName(text)
	sess.Step = StepIntakeQty
	return &Reply{Text: msgAskIntakeQty, Options: cancelOnly()}
}

func (m *Manager) onIntakeQty(sess *Session, text string) *Reply {
	qty, ok := ParseQty(text)
	if !ok {
		return &Reply{Text: msgBadQty, Options: cancelOnly()}
	}
	sess.Draft.IntakeQty = qty
	sess.Step = StepIntakeCost
	return &Reply{Text: msgAskIntakeCost, Options: cancelOnly()}
}

func (m *Manager) onIntakeCost(sess *Session, text string) *Reply {
	usd, ok := ParseUSD(text)
	if !ok {
		return &Reply{Text: msgBadIntakeCost, Options: cancelOnly()}
	}
	sess.Draft.IntakeCostUSD = usd.String()
	sess.Step = StepIntakePrice
	return &Reply{Text: msgAskIntakePrice, Options: cancelOnly()}
}

func (m *Manager) onIntakePrice(ctx context.Context, sess *Session, text string) *Reply {
	price, ok := ParsePrice(text)
	if !ok {
		return &Reply{Text: msgBadPrice, Options: cancelOnly()}
	}
	usd, ok := ParseUSD(sess.Draft.IntakeCostUSD)
	if !ok {
		sess.Step = StepIntakeCost
		return &Reply{Text: msgBadIntakeCost, Options: cancelOnly()}
	}
	result, err := m.deps.Catalog.Intake(ctx, catalog.IntakeInput{
		Name:         sess.Draft.IntakeName,
		Qty:          sess.Draft.IntakeQty,
		CostPriceUSD: &usd,
		SuggestPrice: price,
	})
	sess.reset()
	if err != nil {
		return m.menu(m.failure(ctx, err))
	}
	p := result.Product
	if result.Restocked {
		return m.menu(fmt.Sprintf("🔄 Qoldiq yangilandi: #%d %s, endi %d dona.", p.ID, p.Name, p.Qty))
	}
	return m.menu(fmt.Sprintf("✅ Mahsulot qo'shildi: #%d %s, %d dona, tannarx %s.",
		p.ID, p.Name, p.Qty, money.Format(p.CostPrice)))
}

var statsPeriods = map[string]enums.ReportPeriod{
	BtnDaily:   enums.ReportPeriodDaily,
	BtnMonthly: enums.ReportPeriodMonthly,
	BtnYearly:  enums.ReportPeriodYearly,
}

func (m *Manager) onStatsPeriod(ctx context.Context, sess *Session, text string) *Reply {
	switch text {
	case BtnBack:
		sess.reset()
		return m.menu(msgChoose)
	case BtnReceiptByID:
		sess.Step = StepReceiptID
		return &Reply{Text: msgAskReceiptID, Options: [][]string{{BtnBack}}}
	}
	period, ok := statsPeriods[text]
	if !ok {
		return &Reply{Text: msgAskPeriod, Options: statsOptions()}
	}
	summary, err := m.deps.Reports.Current(ctx, period)
	if err != nil {
		return &Reply{Text: m.failure(ctx, err), Options: statsOptions()}
	}
	return &Reply{Text: reports.FormatSummary(summary, m.topN), Options: statsOptions()}
}

func (m *Manager) onReceiptID(ctx context.Context, sess *Session, text string) *Reply {
	if text == BtnBack {
		sess.Step = StepStatsPeriod
		return &Reply{Text: msgAskPeriod, Options: statsOptions()}
	}
	id, ok := ParseID(text)
	if !ok {
		return &Reply{Text: msgBadReceiptID, Options: [][]string{{BtnBack}}}
	}
	detail, err := m.deps.Ledger.SaleDetail(ctx, id)
	if err != nil {
		return &Reply{Text: m.failure(ctx, err), Options: [][]string{{BtnBack}}}
	}
	sess.Step = StepStatsPeriod
	return &Reply{
		Text:          fmt.Sprintf("🧾 Chek №%d, jami %s.", detail.Sale.ID, money.Format(detail.Sale.TotalAmount)),
		Options:       statsOptions(),
		ReceiptSaleID: detail.Sale.ID,
	}
}

// failure logs errors the user cannot fix and returns the reply line.
func (m *Manager) failure(ctx context.Context, err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeInsufficientStock,
		pkgerrors.CodeEmptyCart, pkgerrors.CodeStateConflict:
	default:
		m.logg.Error(ctx, "dialogue step failed", err)
	}
	return errorText(err)
}
