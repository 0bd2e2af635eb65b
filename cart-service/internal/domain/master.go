package domain

import "github.com/shopspring/decimal"

// Master data as served by the master-data collaborator.

type TaxType string

const (
	TaxTypeExternal TaxType = "external"
	TaxTypeInternal TaxType = "internal"
	TaxTypeExempt   TaxType = "exempt"
)

type ItemMaster struct {
	ItemCode    string          `json:"item_code"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxCode     string          `json:"tax_code"`
}

type PaymentMaster struct {
	PaymentCode    string          `json:"payment_code"`
	Description    string          `json:"description"`
	LimitAmount    decimal.Decimal `json:"limit_amount"`
	CanDepositOver bool            `json:"can_deposit_over"`
	CanChange      bool            `json:"can_change"`
}

type TaxMaster struct {
	TaxCode     string          `json:"tax_code"`
	TaxType     TaxType         `json:"tax_type"`
	TaxName     string          `json:"tax_name"`
	Rate        decimal.Decimal `json:"rate"`
	RoundDigit  int32           `json:"round_digit"`
	RoundMethod string          `json:"round_method"`
}

type TerminalInfo struct {
	TerminalID      string `json:"terminal_id"`
	TenantID        string `json:"tenant_id"`
	StoreCode       string `json:"store_code"`
	StoreName       string `json:"store_name"`
	TerminalNo      int    `json:"terminal_no"`
	BusinessDate    string `json:"business_date"`
	OpenCounter     int    `json:"open_counter"`
	BusinessCounter int    `json:"business_counter"`
	Staff           Staff  `json:"staff"`
}
