package calc

import (
	"fmt"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
)

// CalcTaxes groups active lines by tax code and computes one Tax per code.
// The target of a group is the sum of line amounts less their share of
// cart-level discounts. fallback rounds masters without a round method.
func CalcTaxes(c *domain.Cart, masters map[string]domain.TaxMaster, fallback RoundMethod) ([]domain.Tax, error) {
	var taxes []domain.Tax
	for _, code := range c.TaxCodes() {
		master, ok := masters[code]
		if !ok {
			return nil, domain.NotFoundf("tax master %q", code)
		}

		target := decimal.Zero
		qty := 0
		for _, li := range c.ActiveLineItems() {
			if li.TaxCode != code {
				continue
			}
			target = target.Add(li.Amount.Sub(AllocatedAmount(li)))
			qty += li.Quantity
		}

		amount, err := taxAmount(master, target, fallback)
		if err != nil {
			return nil, err
		}
		taxes = append(taxes, domain.Tax{
			TaxNo:          len(taxes) + 1,
			TaxCode:        code,
			TaxType:        master.TaxType,
			TaxName:        master.TaxName,
			TaxAmount:      amount,
			TargetAmount:   target,
			TargetQuantity: qty,
		})
	}
	return taxes, nil
}

func taxAmount(m domain.TaxMaster, target decimal.Decimal, fallback RoundMethod) (decimal.Decimal, error) {
	method := fallback
	if m.RoundMethod != "" {
		parsed, err := ParseRoundMethod(m.RoundMethod)
		if err != nil {
			return decimal.Zero, fmt.Errorf("tax master %q: %w", m.TaxCode, err)
		}
		method = parsed
	}

	switch m.TaxType {
	case domain.TaxTypeExternal:
		return Round(target.Mul(m.Rate).Div(hundred), m.RoundDigit, method), nil
	case domain.TaxTypeInternal:
		return Round(target.Mul(m.Rate).Div(hundred.Add(m.Rate)), m.RoundDigit, method), nil
	case domain.TaxTypeExempt:
		return decimal.Zero, nil
	}
	return decimal.Zero, fmt.Errorf("tax master %q: unknown tax type %q", m.TaxCode, m.TaxType)
}
