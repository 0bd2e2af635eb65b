// Package payment maps payment codes to the rules that turn a tendered
// amount into an applied payment.
package payment

import (
	"sort"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	CodeCash     = "01"
	CodeVoucher  = "02"
	CodeCashless = "11"
)

// Strategy applies a tendered amount against the outstanding balance.
type Strategy interface {
	Apply(master domain.PaymentMaster, tendered, balance decimal.Decimal) (domain.Payment, error)
}

type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// NewDefaultRegistry registers every payment method the cart supports.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(CodeCash, Cash{})
	r.Register(CodeVoucher, Voucher{})
	r.Register(CodeCashless, Cashless{})
	return r
}

func (r *Registry) Register(code string, s Strategy) {
	r.strategies[code] = s
}

func (r *Registry) Lookup(code string) (Strategy, error) {
	s, ok := r.strategies[code]
	if !ok {
		return nil, domain.NotFoundf("payment method %q", code)
	}
	return s, nil
}

func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.strategies))
	for c := range r.strategies {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
