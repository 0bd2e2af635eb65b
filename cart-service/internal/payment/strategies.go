package payment

import (
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Cash returns change for any amount tendered above the balance.
type Cash struct{}

func (Cash) Apply(m domain.PaymentMaster, tendered, balance decimal.Decimal) (domain.Payment, error) {
	p, over, err := prepare(m, tendered, balance)
	if err != nil {
		return p, err
	}
	if over.IsPositive() {
		if !m.CanChange {
			return p, domain.Validationf("payment %s does not give change", m.PaymentCode)
		}
		p.Amount = balance
		p.ChangeAmount = over
	}
	return p, nil
}

// Voucher keeps any overage as deposit without giving change.
type Voucher struct{}

func (Voucher) Apply(m domain.PaymentMaster, tendered, balance decimal.Decimal) (domain.Payment, error) {
	p, over, err := prepare(m, tendered, balance)
	if err != nil {
		return p, err
	}
	if over.IsPositive() {
		if !m.CanDepositOver {
			return p, domain.Validationf("payment %s cannot exceed the balance", m.PaymentCode)
		}
		p.Amount = balance
		p.DepositOverAmount = over
	}
	return p, nil
}

// Cashless never accepts more than the balance.
type Cashless struct{}

func (Cashless) Apply(m domain.PaymentMaster, tendered, balance decimal.Decimal) (domain.Payment, error) {
	p, over, err := prepare(m, tendered, balance)
	if err != nil {
		return p, err
	}
	if over.IsPositive() {
		return p, domain.Validationf("payment %s cannot exceed the balance of %s", m.PaymentCode, balance)
	}
	return p, nil
}

// prepare runs the checks shared by every method and returns the payment
// with the whole tender applied, plus the amount tendered above the balance.
func prepare(m domain.PaymentMaster, tendered, balance decimal.Decimal) (domain.Payment, decimal.Decimal, error) {
	p := domain.Payment{
		PaymentCode:       m.PaymentCode,
		Description:       m.Description,
		TenderedAmount:    tendered,
		Amount:            tendered,
		ChangeAmount:      decimal.Zero,
		DepositOverAmount: decimal.Zero,
	}
	if !tendered.IsPositive() {
		return p, decimal.Zero, domain.Validationf("payment amount must be positive")
	}
	if !balance.IsPositive() {
		return p, decimal.Zero, domain.Validationf("nothing left to pay")
	}
	if m.LimitAmount.IsPositive() && tendered.GreaterThan(m.LimitAmount) {
		return p, decimal.Zero, domain.Validationf("payment %s exceeds limit %s", m.PaymentCode, m.LimitAmount)
	}
	return p, tendered.Sub(balance), nil
}
