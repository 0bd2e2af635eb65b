// Package service implements the cart operations. Every operation checks the
// cart's state before it touches the cart, recalculates after it, and saves
// under the cart's etag.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/cache"
	"github.com/fjod/pos_cart/cart-service/internal/calc"
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/cart-service/internal/master"
	"github.com/fjod/pos_cart/cart-service/internal/payment"
	"github.com/fjod/pos_cart/cart-service/internal/repository"
	"github.com/fjod/pos_cart/cart-service/internal/tranlog"
	"github.com/fjod/pos_cart/pkg/logger"
	"github.com/fjod/pos_cart/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SettingDiscountRounding names the setting that overrides the discount rounding method.
const SettingDiscountRounding = "ROUND_METHOD_FOR_DISCOUNT"

const maxQuantity = 9999

// Monetary inputs must fit a Decimal128 once multiplied by a quantity.
const (
	maxDecimalPlaces = 6
	maxIntegerDigits = 12
)

var maxMonetaryValue = decimal.New(1, maxIntegerDigits)

// Finalizer stores and publishes the transaction log of a billed cart.
type Finalizer interface {
	Finalize(ctx context.Context, log *domain.TransactionLog) (*tranlog.FinalizeResult, error)
}

// Deps are the collaborators of a CartService.
type Deps struct {
	Carts     repository.CartRepository
	Counters  repository.CounterRepository
	Cache     cache.CartCache
	Items     master.ItemLookup
	Payments  master.PaymentLookup
	Taxes     master.TaxLookup
	Settings  master.SettingLookup
	Terminals master.TerminalLookup
	Methods   *payment.Registry
	Finalizer Finalizer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

type CartService struct {
	Deps
	policy calc.Policy
	now    func() time.Time
	sfg    singleflight.Group
}

// NewCartService builds the service. policy is used when the discount
// rounding setting is absent or unreadable.
func NewCartService(d Deps, policy calc.Policy) *CartService {
	return &CartService{Deps: d, policy: policy, now: time.Now}
}

type AddItemInput struct {
	ItemCode string
	Quantity int
	// UnitPrice overrides the item master price when set.
	UnitPrice *decimal.Decimal
}

type DiscountInput struct {
	Kind   domain.DiscountKind
	Value  decimal.Decimal
	Detail string
}

type PaymentInput struct {
	PaymentCode string
	Amount      decimal.Decimal
}

type BillResult struct {
	Cart    *domain.Cart
	Log     *domain.TransactionLog
	EventID string
	// DeliveryErr is set when the log is stored but not yet published.
	DeliveryErr error
	// SaveErr is set when the log is stored but the completed cart could not
	// be saved. Billing the cart again completes it without a second log.
	SaveErr error
}

func (s *CartService) CreateCart(ctx context.Context, terminalID string) (c *domain.Cart, err error) {
	defer func() { s.observe(ctx, domain.EventCreate, c, err) }()

	if terminalID == "" {
		return nil, domain.Validationf("terminal id is required")
	}
	if err := domain.CheckEvent(domain.StateInitial, domain.EventCreate); err != nil {
		return nil, err
	}

	info, err := s.Terminals.Terminal(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	txNo, err := s.Counters.Next(ctx, terminalID, repository.CounterTransactionNo)
	if err != nil {
		return nil, fmt.Errorf("%w: next transaction number: %w", domain.ErrPersistence, err)
	}

	c = domain.NewCart(*info, uuid.NewString(), txNo, s.now())
	c.State = domain.NextState(c.State, domain.EventCreate)
	calc.CalcTotals(c)

	if err := s.Carts.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCart reads through the cache; concurrent misses for one cart share a
// single repository read.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(cartID, func() (interface{}, error) {
		cart, err := s.Cache.Get(ctx, cartID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log(ctx).Warn("cart cache get failed", zap.String("cart_id", cartID), zap.Error(err))
		}

		cart, err = s.Carts.Get(ctx, cartID)
		if err != nil {
			return nil, err
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if errSet := s.Cache.Set(setCtx, cart); errSet != nil {
			s.log(ctx).Warn("cart cache set failed", zap.String("cart_id", cartID), zap.Error(errSet))
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	c := v.(*domain.Cart)
	if err := domain.CheckEvent(c.State, domain.EventGet); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CartService) AddItems(ctx context.Context, cartID string, items []AddItemInput) (*domain.Cart, error) {
	if len(items) == 0 {
		return nil, domain.Validationf("at least one item is required")
	}
	for i, in := range items {
		if in.ItemCode == "" {
			return nil, domain.Validationf("item %d: item code is required", i+1)
		}
		if err := checkQuantity(in.Quantity); err != nil {
			return nil, err
		}
		if in.UnitPrice != nil {
			if in.UnitPrice.IsNegative() {
				return nil, domain.Validationf("item %d: unit price must not be negative", i+1)
			}
			if err := checkDecimal(fmt.Sprintf("item %d: unit price", i+1), *in.UnitPrice); err != nil {
				return nil, err
			}
		}
	}

	return s.mutate(ctx, cartID, domain.EventAddItem, func(ctx context.Context, c *domain.Cart) error {
		for _, in := range items {
			m, err := s.Items.Item(ctx, c.TenantID, c.StoreCode, in.ItemCode)
			if err != nil {
				return err
			}
			li := domain.LineItem{
				ItemCode:          m.ItemCode,
				Description:       m.Description,
				UnitPrice:         m.UnitPrice,
				UnitPriceOriginal: m.UnitPrice,
				Quantity:          in.Quantity,
				TaxCode:           m.TaxCode,
			}
			if in.UnitPrice != nil {
				li.UnitPrice = *in.UnitPrice
				li.IsUnitPriceChanged = !in.UnitPrice.Equal(m.UnitPrice)
			}
			c.AddLineItem(li)
		}
		return nil
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, cartID string, lineNo, quantity int) (*domain.Cart, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	return s.mutate(ctx, cartID, domain.EventUpdateQuantity, func(_ context.Context, c *domain.Cart) error {
		li, err := c.ActiveLineItem(lineNo)
		if err != nil {
			return err
		}
		li.Quantity = quantity
		return nil
	})
}

func (s *CartService) UpdateUnitPrice(ctx context.Context, cartID string, lineNo int, price decimal.Decimal) (*domain.Cart, error) {
	if price.IsNegative() {
		return nil, domain.Validationf("unit price must not be negative")
	}
	if err := checkDecimal("unit price", price); err != nil {
		return nil, err
	}
	return s.mutate(ctx, cartID, domain.EventUpdateUnitPrice, func(_ context.Context, c *domain.Cart) error {
		li, err := c.ActiveLineItem(lineNo)
		if err != nil {
			return err
		}
		li.UnitPrice = price
		li.IsUnitPriceChanged = !price.Equal(li.UnitPriceOriginal)
		return nil
	})
}

func (s *CartService) CancelLineItem(ctx context.Context, cartID string, lineNo int) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, domain.EventCancelLineItem, func(_ context.Context, c *domain.Cart) error {
		li, err := c.ActiveLineItem(lineNo)
		if err != nil {
			return err
		}
		li.IsCancelled = true
		return nil
	})
}

func (s *CartService) AddLineDiscounts(ctx context.Context, cartID string, lineNo int, discounts []DiscountInput) (*domain.Cart, error) {
	if err := checkDiscounts(discounts); err != nil {
		return nil, err
	}
	return s.mutate(ctx, cartID, domain.EventAddLineDiscount, func(_ context.Context, c *domain.Cart) error {
		for _, d := range discounts {
			if err := c.AddLineDiscount(lineNo, domain.Discount{Kind: d.Kind, Value: d.Value, Detail: d.Detail}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CartService) Subtotal(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, domain.EventSubtotal, func(_ context.Context, c *domain.Cart) error {
		if len(c.ActiveLineItems()) == 0 {
			return domain.Validationf("cart %s has no active line items", c.CartID)
		}
		return nil
	})
}

func (s *CartService) AddCartDiscounts(ctx context.Context, cartID string, discounts []DiscountInput) (*domain.Cart, error) {
	if err := checkDiscounts(discounts); err != nil {
		return nil, err
	}
	return s.mutate(ctx, cartID, domain.EventAddCartDiscount, func(_ context.Context, c *domain.Cart) error {
		if len(c.Payments) > 0 {
			return domain.Validationf("cart discounts cannot be added after payments")
		}
		for _, d := range discounts {
			c.AddSubtotalDiscount(domain.Discount{Kind: d.Kind, Value: d.Value, Detail: d.Detail})
		}
		return nil
	})
}

func (s *CartService) AddPayments(ctx context.Context, cartID string, payments []PaymentInput) (*domain.Cart, error) {
	if len(payments) == 0 {
		return nil, domain.Validationf("at least one payment is required")
	}
	for i, p := range payments {
		if p.PaymentCode == "" {
			return nil, domain.Validationf("payment %d: payment code is required", i+1)
		}
		if !p.Amount.IsPositive() {
			return nil, domain.Validationf("payment %d: amount must be positive", i+1)
		}
		if err := checkDecimal(fmt.Sprintf("payment %d: amount", i+1), p.Amount); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, cartID, domain.EventAddPayment, func(ctx context.Context, c *domain.Cart) error {
		if err := s.recalculate(ctx, c); err != nil {
			return err
		}
		balance := c.Totals.BalanceAmount
		for _, in := range payments {
			method, err := s.Methods.Lookup(in.PaymentCode)
			if err != nil {
				return err
			}
			m, err := s.Payments.Payment(ctx, c.TenantID, in.PaymentCode)
			if err != nil {
				return err
			}
			p, err := method.Apply(*m, in.Amount, balance)
			if err != nil {
				return err
			}
			c.AddPayment(p)
			balance = balance.Sub(p.Amount)
		}
		return nil
	})
}

func (s *CartService) CancelTransaction(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, domain.EventCancelTransaction, func(context.Context, *domain.Cart) error {
		return nil
	})
}

// ResumeItemEntry returns a paying cart to item entry and drops its payments.
func (s *CartService) ResumeItemEntry(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, domain.EventResumeItemEntry, func(_ context.Context, c *domain.Cart) error {
		c.ClearPayments()
		return nil
	})
}

// Bill completes a fully paid cart. It succeeds once the transaction log is
// stored, whether or not the log could be published or the cart saved.
func (s *CartService) Bill(ctx context.Context, cartID string) (res *BillResult, err error) {
	var c *domain.Cart
	defer func() { s.observe(ctx, domain.EventBill, c, err) }()

	c, err = s.load(ctx, cartID, domain.EventBill)
	if err != nil {
		return nil, err
	}
	if err := s.recalculate(ctx, c); err != nil {
		return nil, err
	}
	if !c.Totals.BalanceAmount.IsZero() {
		return nil, domain.Validationf("balance of %s is still due", c.Totals.BalanceAmount)
	}

	if c.ReceiptNo == 0 {
		n, err := s.Counters.Next(ctx, c.TerminalID, repository.CounterReceiptNo)
		if err != nil {
			return nil, fmt.Errorf("%w: next receipt number: %w", domain.ErrPersistence, err)
		}
		c.ReceiptNo = n
	}
	c.State = domain.NextState(c.State, domain.EventBill)

	fin, err := s.Finalizer.Finalize(ctx, tranlog.Build(c, s.now()))
	if err != nil {
		return nil, err
	}
	// a retried bill keeps the receipt number of the stored log
	c.ReceiptNo = fin.Log.ReceiptNo
	if fin.DeliveryErr != nil {
		s.log(ctx).Warn("transaction log stored, delivery pending",
			zap.String("cart_id", c.CartID),
			zap.String("event_id", fin.EventID),
			zap.Error(fin.DeliveryErr))
	}

	res = &BillResult{Cart: c, Log: fin.Log, EventID: fin.EventID, DeliveryErr: fin.DeliveryErr}
	if err := s.save(ctx, c); err != nil {
		s.log(ctx).Warn("transaction log stored, cart save failed",
			zap.String("cart_id", c.CartID),
			zap.String("event_id", fin.EventID),
			zap.Error(err))
		res.SaveErr = err
	}
	return res, nil
}

// mutate loads the cart, checks event against its state, applies fn,
// recalculates and saves. Nothing is written when any step fails.
func (s *CartService) mutate(ctx context.Context, cartID string, event domain.CartEvent, fn func(context.Context, *domain.Cart) error) (c *domain.Cart, err error) {
	defer func() { s.observe(ctx, event, c, err) }()

	c, err = s.load(ctx, cartID, event)
	if err != nil {
		return nil, err
	}
	if err := fn(ctx, c); err != nil {
		return nil, err
	}
	if err := s.recalculate(ctx, c); err != nil {
		return nil, err
	}
	if err := checkAmounts(c); err != nil {
		return nil, err
	}
	c.State = domain.NextState(c.State, event)

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CartService) load(ctx context.Context, cartID string, event domain.CartEvent) (*domain.Cart, error) {
	c, err := s.Carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckEvent(c.State, event); err != nil {
		return nil, fmt.Errorf("cart %s: %w", cartID, err)
	}
	return c, nil
}

func (s *CartService) save(ctx context.Context, c *domain.Cart) error {
	err := s.Carts.Save(ctx, c)
	s.invalidateCache(ctx, c.CartID)
	return err
}

func (s *CartService) recalculate(ctx context.Context, c *domain.Cart) error {
	masters := make(map[string]domain.TaxMaster)
	for _, code := range c.TaxCodes() {
		m, err := s.Taxes.Tax(ctx, c.TenantID, code)
		if err != nil {
			return err
		}
		masters[code] = *m
	}
	return calc.Recalculate(c, masters, s.discountPolicy(ctx, c))
}

func (s *CartService) discountPolicy(ctx context.Context, c *domain.Cart) calc.Policy {
	p := s.policy
	v, err := s.Settings.Setting(ctx, c.TenantID, c.StoreCode, c.TerminalNo, SettingDiscountRounding)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log(ctx).Warn("discount rounding setting unavailable, using default", zap.Error(err))
		}
		return p
	}
	m, err := calc.ParseRoundMethod(v)
	if err != nil {
		s.log(ctx).Warn("invalid discount rounding setting", zap.String("value", v), zap.Error(err))
		return p
	}
	p.DiscountRounding = m
	return p
}

func (s *CartService) invalidateCache(ctx context.Context, cartID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.Cache.Delete(ctx, cartID); err != nil {
		s.log(ctx).Warn("cart cache invalidate failed", zap.String("cart_id", cartID), zap.Error(err))
	}
}

func (s *CartService) observe(ctx context.Context, event domain.CartEvent, c *domain.Cart, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict):
		result = "rejected"
	default:
		result = "error"
	}
	s.Metrics.CartOperations.WithLabelValues(event.String(), result).Inc()

	l := s.log(ctx).With(zap.String("op", event.String()))
	switch result {
	case "ok":
		l.Info("cart updated", zap.String("cart_id", c.CartID), zap.Stringer("state", c.State))
	case "rejected":
		l.Info("cart operation rejected", zap.Error(err))
	default:
		l.Error("cart operation failed", zap.Error(err))
	}
}

func (s *CartService) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.Logger)
}

func checkQuantity(q int) error {
	if q < 1 || q > maxQuantity {
		return domain.Validationf("quantity %d must be between 1 and %d", q, maxQuantity)
	}
	return nil
}

func checkDecimal(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(maxDecimalPlaces)) {
		return domain.Validationf("%s has more than %d decimal places", field, maxDecimalPlaces)
	}
	if d.Abs().GreaterThanOrEqual(maxMonetaryValue) {
		return domain.Validationf("%s must be below %s", field, maxMonetaryValue)
	}
	return nil
}

func checkDiscounts(discounts []DiscountInput) error {
	if len(discounts) == 0 {
		return domain.Validationf("at least one discount is required")
	}
	hundred := decimal.NewFromInt(100)
	for i, d := range discounts {
		if !d.Kind.Valid() {
			return domain.Validationf("discount %d: unknown kind %q", i+1, d.Kind)
		}
		if !d.Value.IsPositive() {
			return domain.Validationf("discount %d: value must be positive", i+1)
		}
		if err := checkDecimal(fmt.Sprintf("discount %d: value", i+1), d.Value); err != nil {
			return err
		}
		if d.Kind == domain.DiscountPercent && d.Value.GreaterThan(hundred) {
			return domain.Validationf("discount %d: percentage above 100", i+1)
		}
	}
	return nil
}

// checkAmounts rejects a mutation that drives any amount below zero.
func checkAmounts(c *domain.Cart) error {
	for _, li := range c.ActiveLineItems() {
		if li.Amount.IsNegative() {
			return domain.Validationf("line item %d amount would be negative", li.LineNo)
		}
	}
	if c.Totals.TotalAmount.IsNegative() {
		return domain.Validationf("cart total would be negative")
	}
	return nil
}
