package calc

import (
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalcLineItems resolves line discounts and sets each line's Amount.
// Percentage discounts are resolved first in declaration order, each against
// the per-unit price left by the discounts before it, rounded at the currency
// unit and multiplied back by quantity. Fixed amounts are subtracted afterwards.
func CalcLineItems(items []domain.LineItem, p Policy) {
	for i := range items {
		calcLineItem(&items[i], p)
	}
}

func calcLineItem(li *domain.LineItem, p Policy) {
	if li.Quantity <= 0 {
		li.Amount = decimal.Zero
		return
	}
	qty := decimal.NewFromInt(int64(li.Quantity))
	gross := li.UnitPrice.Mul(qty)
	resolved := decimal.Zero

	for j := range li.Discounts {
		d := &li.Discounts[j]
		if d.Kind != domain.DiscountPercent {
			continue
		}
		baseUnit := gross.Sub(resolved).Div(qty)
		unitDiscount := Round(baseUnit.Mul(d.Value).Div(hundred), p.CurrencyDigits, p.DiscountRounding)
		d.Amount = unitDiscount.Mul(qty)
		resolved = resolved.Add(d.Amount)
	}
	for j := range li.Discounts {
		d := &li.Discounts[j]
		if d.Kind != domain.DiscountAmount {
			continue
		}
		d.Amount = d.Value
		resolved = resolved.Add(d.Amount)
	}

	li.Amount = gross.Sub(resolved)
}

// CalcSubtotalDiscounts resolves cart-level discounts against the sum of
// active line amounts and spreads each one over the active lines.
func CalcSubtotalDiscounts(c *domain.Cart, p Policy) {
	for i := range c.LineItems {
		c.LineItems[i].DiscountsAllocated = nil
	}
	active := c.ActiveLineItems()

	base := decimal.Zero
	for _, li := range active {
		base = base.Add(li.Amount)
	}

	resolved := decimal.Zero
	for i := range c.SubtotalDiscounts {
		d := &c.SubtotalDiscounts[i]
		if d.Kind != domain.DiscountPercent {
			continue
		}
		d.Amount = Round(base.Sub(resolved).Mul(d.Value).Div(hundred), p.CurrencyDigits, p.DiscountRounding)
		resolved = resolved.Add(d.Amount)
	}
	for i := range c.SubtotalDiscounts {
		d := &c.SubtotalDiscounts[i]
		if d.Kind != domain.DiscountAmount {
			continue
		}
		d.Amount = d.Value
		resolved = resolved.Add(d.Amount)
	}

	for _, d := range c.SubtotalDiscounts {
		allocate(active, d, base, p.CurrencyDigits)
	}
}

// allocate splits d over lines in proportion to line amount, rounding each
// share down and giving the remainder to the largest line so the shares sum
// to d.Amount exactly.
func allocate(lines []*domain.LineItem, d domain.Discount, base decimal.Decimal, digits int32) {
	if len(lines) == 0 || d.Amount.IsZero() {
		return
	}
	largest := 0
	for i, li := range lines {
		if li.Amount.GreaterThan(lines[largest].Amount) {
			largest = i
		}
	}
	if !base.IsPositive() {
		lines[largest].DiscountsAllocated = append(lines[largest].DiscountsAllocated,
			domain.AllocatedDiscount{DiscountSeq: d.Seq, Amount: d.Amount})
		return
	}

	shares := make([]decimal.Decimal, len(lines))
	remaining := d.Amount
	for i, li := range lines {
		shares[i] = d.Amount.Mul(li.Amount).Div(base).RoundFloor(digits)
		remaining = remaining.Sub(shares[i])
	}
	shares[largest] = shares[largest].Add(remaining)

	for i, li := range lines {
		if shares[i].IsZero() {
			continue
		}
		li.DiscountsAllocated = append(li.DiscountsAllocated,
			domain.AllocatedDiscount{DiscountSeq: d.Seq, Amount: shares[i]})
	}
}

// AllocatedAmount is the sum of cart-level discount shares carried by li.
func AllocatedAmount(li *domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, a := range li.DiscountsAllocated {
		total = total.Add(a.Amount)
	}
	return total
}
