// Package master looks up reference data owned by the master-data service.
package master

import (
	"context"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
)

type ItemLookup interface {
	Item(ctx context.Context, tenantID, storeCode, itemCode string) (*domain.ItemMaster, error)
}

type PaymentLookup interface {
	Payment(ctx context.Context, tenantID, paymentCode string) (*domain.PaymentMaster, error)
}

type TaxLookup interface {
	Tax(ctx context.Context, tenantID, taxCode string) (*domain.TaxMaster, error)
}

type SettingLookup interface {
	// Setting resolves name for a terminal, falling back to the store value
	// and then to the tenant default.
	Setting(ctx context.Context, tenantID, storeCode string, terminalNo int, name string) (string, error)
}

type TerminalLookup interface {
	Terminal(ctx context.Context, terminalID string) (*domain.TerminalInfo, error)
}

// SettingDoc is a setting with its default and its store or terminal overrides.
// TerminalNo 0 marks a store-wide override.
type SettingDoc struct {
	Name         string         `json:"name"`
	DefaultValue string         `json:"default_value"`
	Values       []SettingValue `json:"values"`
}

type SettingValue struct {
	StoreCode  string `json:"store_code"`
	TerminalNo int    `json:"terminal_no"`
	Value      string `json:"value"`
}

// Resolve picks the most specific value for the terminal.
func (s SettingDoc) Resolve(storeCode string, terminalNo int) string {
	storeValue, hasStore := "", false
	for _, v := range s.Values {
		if v.StoreCode != storeCode {
			continue
		}
		if v.TerminalNo == terminalNo && terminalNo != 0 {
			return v.Value
		}
		if v.TerminalNo == 0 {
			storeValue, hasStore = v.Value, true
		}
	}
	if hasStore {
		return storeValue
	}
	return s.DefaultValue
}
