package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopkeeper/internal/cart"
	"github.com/angelmondragon/shopkeeper/internal/checkout/reservation"
	"github.com/angelmondragon/shopkeeper/internal/ledger"
	"github.com/angelmondragon/shopkeeper/pkg/db"
	"github.com/angelmondragon/shopkeeper/pkg/db/models"
	"github.com/angelmondragon/shopkeeper/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopkeeper/pkg/errors"
	"github.com/angelmondragon/shopkeeper/pkg/logger"
	"github.com/angelmondragon/shopkeeper/pkg/metrics"
	"github.com/angelmondragon/shopkeeper/pkg/money"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type customerService interface {
	Create(ctx context.Context, name, phone string) (*models.Customer, error)
	Get(ctx context.Context, id uint64) (*models.Customer, error)
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.Request) ([]reservation.Result, error)
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.Request) ([]reservation.Result, error) {
	return reservation.DecrementStock(ctx, tx, requests)
}

// Service drives a Flow from customer selection to a committed sale.
type Service interface {
	SelectCustomer(ctx context.Context, flow *Flow, customerID uint64) (*models.Customer, error)
	RegisterCustomer(ctx context.Context, flow *Flow, name, phone string) (*models.Customer, error)
	ChoosePayment(flow *Flow, raw string) (enums.PaymentMethod, error)
	Commit(ctx context.Context, flow *Flow, c *cart.Cart) (*models.Sale, error)
	Cancel(flow *Flow, c *cart.Cart) error
}

// Options carries the optional collaborators of the checkout service.
type Options struct {
	Logger      *logger.Logger
	Metrics     *metrics.CheckoutMetrics
	Reserver    stockReserver
	SellerPhone string
	Now         func() time.Time
}

type service struct {
	tx          db.TxRunner
	customers   customerService
	sales       ledger.Repository
	reserver    stockReserver
	logg        *logger.Logger
	metrics     *metrics.CheckoutMetrics
	sellerPhone string
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(tx db.TxRunner, customers customerService, sales ledger.Repository, opts Options) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer service required")
	}
	if sales == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if opts.Reserver == nil {
		opts.Reserver = reservationEngine{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		tx:          tx,
		customers:   customers,
		sales:       sales,
		reserver:    opts.Reserver,
		logg:        opts.Logger,
		metrics:     opts.Metrics,
		sellerPhone: opts.SellerPhone,
		now:         opts.Now,
	}, nil
}

func (s *service) SelectCustomer(ctx context.Context, flow *Flow, customerID uint64) (*models.Customer, error) {
	if err := flow.expect(enums.CheckoutStateCollectingCustomer); err != nil {
		return nil, err
	}
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	flow.CustomerID = customer.ID
	flow.State = enums.CheckoutStateCollectingPayment
	return customer, nil
}

// RegisterCustomer persists the customer right away, outside the sale
// transaction. A later cancel leaves the customer row in place.
func (s *service) RegisterCustomer(ctx context.Context, flow *Flow, name, phone string) (*models.Customer, error) {
	if err := flow.expect(enums.CheckoutStateCollectingCustomer); err != nil {
		return nil, err
	}
	customer, err := s.customers.Create(ctx, name, phone)
	if err != nil {
		return nil, err
	}
	flow.CustomerID = customer.ID
	flow.State = enums.CheckoutStateCollectingPayment
	return customer, nil
}

func (s *service) ChoosePayment(flow *Flow, raw string) (enums.PaymentMethod, error) {
	if err := flow.expect(enums.CheckoutStateCollectingPayment); err != nil {
		return "", err
	}
	method, err := enums.ParsePaymentMethod(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment must be cash or credit").
			WithDetails(map[string]any{"input": raw})
	}
	flow.Payment = method
	return method, nil
}

// Commit writes the sale, its items, the stock decrements and, for credit, the
// debt in one transaction. The caller's cancellation does not reach the
// transaction once it has started.
func (s *service) Commit(ctx context.Context, flow *Flow, c *cart.Cart) (*models.Sale, error) {
	if err := flow.expect(enums.CheckoutStateCollectingPayment, enums.CheckoutStateAborted); err != nil {
		return nil, err
	}
	if flow.CustomerID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "customer not selected")
	}
	if !flow.Payment.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment type not selected")
	}

	if flow.ID == "" {
		flow.ID = uuid.NewString()
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"checkout_id": flow.ID,
		"customer_id": flow.CustomerID,
		"payment":     flow.Payment.String(),
	})

	started := time.Now()
	existing, err := s.sales.FindSaleByCheckout(ctx, flow.ID)
	switch {
	case err == nil:
		return s.replay(ctx, flow, c, existing, time.Since(started)), nil
	case !db.IsNotFound(err):
		flow.LastError = pkgerrors.CodePersistence
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "look up checkout")
	}

	flow.State = enums.CheckoutStateCommitting
	sale, err := s.commit(context.WithoutCancel(ctx), flow, c)
	elapsed := time.Since(started)

	if errors.Is(err, errReplayed) {
		return s.replay(ctx, flow, c, sale, elapsed), nil
	}
	if err != nil {
		flow.State = enums.CheckoutStateAborted
		flow.LastError = pkgerrors.CodeOf(err)
		s.metrics.ObserveCommit(strings.ToLower(string(flow.LastError)), elapsed)
		return nil, err
	}

	flow.State = enums.CheckoutStateDone
	flow.SaleID = sale.ID
	flow.LastError = ""
	c.Clear()

	s.metrics.ObserveCommit("success", elapsed)
	s.metrics.AddRevenue(sale.PaymentType.String(), sale.TotalAmount)
	s.logg.Info(s.logg.WithSaleID(ctx, sale.ID), "sale committed")
	return sale, nil
}

// errReplayed marks a commit that found the flow's sale already written.
var errReplayed = errors.New("checkout already committed")

// replay finishes a flow whose sale was written by an earlier attempt, such as
// one whose session save failed after the commit. Nothing is written again.
func (s *service) replay(ctx context.Context, flow *Flow, c *cart.Cart, sale *models.Sale, elapsed time.Duration) *models.Sale {
	flow.State = enums.CheckoutStateDone
	flow.SaleID = sale.ID
	flow.LastError = ""
	c.Clear()

	s.metrics.ObserveCommit("replayed", elapsed)
	s.logg.Info(s.logg.WithSaleID(ctx, sale.ID), "checkout already committed, returning existing sale")
	return sale
}

func (s *service) commit(ctx context.Context, flow *Flow, c *cart.Cart) (*models.Sale, error) {
	if c.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart is empty")
	}

	demands := c.Demands()
	requests := make([]reservation.Request, len(demands))
	for i, d := range demands {
		requests[i] = reservation.Request{ProductID: d.ProductID, Name: d.Name, Qty: d.Qty}
	}

	items := make([]models.SaleItem, len(c.Items))
	var total int64
	for i, line := range c.Items {
		lineTotal, err := line.CheckedTotal()
		if err != nil {
			return nil, err
		}
		items[i] = models.SaleItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Qty:       line.Qty,
			Price:     line.UnitPrice,
			Total:     lineTotal,
		}
		if total, err = money.Add(total, lineTotal); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "sale total out of range")
		}
	}

	checkoutID := flow.ID
	sale := &models.Sale{
		CheckoutID:  &checkoutID,
		CustomerID:  flow.CustomerID,
		TotalAmount: total,
		PaymentType: flow.Payment,
		SellerPhone: s.sellerPhone,
		CreatedAt:   s.now().UTC(),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.reserver.Reserve(ctx, tx, requests); err != nil {
			return err
		}

		repo := s.sales.WithTx(tx)
		if err := repo.CreateSale(ctx, sale); err != nil {
			return err
		}
		for i := range items {
			items[i].SaleID = sale.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return err
		}
		if sale.PaymentType == enums.PaymentMethodCredit {
			return repo.CreateDebt(ctx, &models.Debt{
				CustomerID: sale.CustomerID,
				SaleID:     sale.ID,
				Amount:     sale.TotalAmount,
				CreatedAt:  sale.CreatedAt,
			})
		}
		return nil
	})
	if err == nil {
		return sale, nil
	}
	if db.IsUniqueViolation(err, "") && strings.Contains(err.Error(), "checkout_id") {
		// a concurrent or earlier attempt of the same flow won the insert
		if existing, ferr := s.sales.FindSaleByCheckout(ctx, flow.ID); ferr == nil {
			return existing, errReplayed
		}
	}

	if typed := pkgerrors.As(err); typed != nil {
		s.logg.Warn(s.logg.WithField(ctx, "code", string(typed.Code())), "checkout commit rejected")
		return nil, err
	}
	diag := pkgerrors.Diagnose(err)
	s.logg.Error(s.logg.WithFields(ctx, diag.Fields()), "checkout commit failed", err)
	return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "commit sale")
}

func (s *service) Cancel(flow *Flow, c *cart.Cart) error {
	if flow == nil {
		c.Clear()
		return nil
	}
	if !flow.CanCancel() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout can no longer be cancelled").
			WithDetails(map[string]any{"state": flow.State})
	}
	flow.State = enums.CheckoutStateAborted
	flow.Cancelled = true
	c.Clear()
	return nil
}
