package payment

import (
	"testing"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cashMaster     = domain.PaymentMaster{PaymentCode: CodeCash, Description: "Cash", CanChange: true, CanDepositOver: true}
	cashlessMaster = domain.PaymentMaster{PaymentCode: CodeCashless, Description: "Card", LimitAmount: decimal.NewFromInt(100000)}
	voucherMaster  = domain.PaymentMaster{PaymentCode: CodeVoucher, Description: "Gift voucher", CanDepositOver: true}
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestDefaultRegistry_Codes(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{"01", "02", "11"}, r.Codes())

	_, err := r.Lookup("99")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCash_GivesChange(t *testing.T) {
	p, err := Cash{}.Apply(cashMaster, d(200), d(198))
	require.NoError(t, err)

	assert.True(t, p.Amount.Equal(d(198)))
	assert.True(t, p.ChangeAmount.Equal(d(2)))
	assert.True(t, p.TenderedAmount.Equal(d(200)))
}

func TestCash_PartialPayment(t *testing.T) {
	p, err := Cash{}.Apply(cashMaster, d(100), d(198))
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(d(100)))
	assert.True(t, p.ChangeAmount.IsZero())
}

func TestCash_NoChangeAllowed(t *testing.T) {
	m := cashMaster
	m.CanChange = false
	_, err := Cash{}.Apply(m, d(200), d(198))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCashless_RejectsOverage(t *testing.T) {
	_, err := Cashless{}.Apply(cashlessMaster, d(200), d(198))
	assert.ErrorIs(t, err, domain.ErrValidation)

	p, err := Cashless{}.Apply(cashlessMaster, d(198), d(198))
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(d(198)))
}

func TestCashless_Limit(t *testing.T) {
	_, err := Cashless{}.Apply(cashlessMaster, d(150000), d(200000))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVoucher_KeepsOverageAsDeposit(t *testing.T) {
	p, err := Voucher{}.Apply(voucherMaster, d(500), d(198))
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(d(198)))
	assert.True(t, p.DepositOverAmount.Equal(d(302)))
	assert.True(t, p.ChangeAmount.IsZero())
}

func TestApply_RejectsNonPositiveTenderAndZeroBalance(t *testing.T) {
	_, err := Cash{}.Apply(cashMaster, d(0), d(198))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = Cash{}.Apply(cashMaster, d(10), d(0))
	assert.ErrorIs(t, err, domain.ErrValidation)
}
