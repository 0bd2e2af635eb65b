// Package calc derives every monetary field of a cart from its inputs:
// line items, discounts, tax masters and applied payments.
package calc

import (
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Policy holds the rounding rules for discounts. TaxRounding applies to tax
// masters that carry no round method of their own.
type Policy struct {
	CurrencyDigits   int32
	DiscountRounding RoundMethod
	TaxRounding      RoundMethod
}

// Recalculate recomputes line amounts, cart discounts, taxes and totals in place.
// It only reads inputs, so calling it twice yields the same cart.
func Recalculate(c *domain.Cart, taxMasters map[string]domain.TaxMaster, p Policy) error {
	CalcLineItems(c.LineItems, p)
	CalcSubtotalDiscounts(c, p)

	taxes, err := CalcTaxes(c, taxMasters, p.TaxRounding)
	if err != nil {
		return err
	}
	c.Taxes = taxes

	CalcTotals(c)
	return nil
}

// CalcTotals aggregates line, discount, tax and payment figures into c.Totals.
func CalcTotals(c *domain.Cart) {
	t := domain.Totals{
		SubtotalAmount:     decimal.Zero,
		LineDiscountAmount: decimal.Zero,
		CartDiscountAmount: decimal.Zero,
		ExternalTaxAmount:  decimal.Zero,
		InternalTaxAmount:  decimal.Zero,
		PaymentAmount:      decimal.Zero,
		ChangeAmount:       decimal.Zero,
	}

	for _, li := range c.ActiveLineItems() {
		t.SubtotalAmount = t.SubtotalAmount.Add(li.Amount)
		t.TotalQuantity += li.Quantity
		for _, d := range li.Discounts {
			t.LineDiscountAmount = t.LineDiscountAmount.Add(d.Amount)
		}
	}
	for _, d := range c.SubtotalDiscounts {
		t.CartDiscountAmount = t.CartDiscountAmount.Add(d.Amount)
	}
	for _, tax := range c.Taxes {
		switch tax.TaxType {
		case domain.TaxTypeExternal:
			t.ExternalTaxAmount = t.ExternalTaxAmount.Add(tax.TaxAmount)
		case domain.TaxTypeInternal:
			t.InternalTaxAmount = t.InternalTaxAmount.Add(tax.TaxAmount)
		}
	}
	for _, p := range c.Payments {
		t.PaymentAmount = t.PaymentAmount.Add(p.Amount)
		t.ChangeAmount = t.ChangeAmount.Add(p.ChangeAmount)
	}

	t.TotalDiscountAmount = t.LineDiscountAmount.Add(t.CartDiscountAmount)
	t.TotalAmount = t.SubtotalAmount.Sub(t.CartDiscountAmount)
	t.TotalAmountWithTax = t.TotalAmount.Add(t.ExternalTaxAmount)
	t.BalanceAmount = t.TotalAmountWithTax.Sub(t.PaymentAmount)

	c.Totals = t
}
