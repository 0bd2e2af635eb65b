package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionTypeNormalSales marks a regular sale in the transaction log.
const TransactionTypeNormalSales = 101

type Cart struct {
	CartID            string     `bson:"cart_id" json:"cart_id"`
	TenantID          string     `bson:"tenant_id" json:"tenant_id"`
	StoreCode         string     `bson:"store_code" json:"store_code"`
	StoreName         string     `bson:"store_name" json:"store_name"`
	TerminalNo        int        `bson:"terminal_no" json:"terminal_no"`
	TerminalID        string     `bson:"terminal_id" json:"terminal_id"`
	BusinessDate      string     `bson:"business_date" json:"business_date"`
	OpenCounter       int        `bson:"open_counter" json:"open_counter"`
	BusinessCounter   int        `bson:"business_counter" json:"business_counter"`
	TransactionNo     int        `bson:"transaction_no" json:"transaction_no"`
	TransactionType   int        `bson:"transaction_type" json:"transaction_type"`
	ReceiptNo         int        `bson:"receipt_no" json:"receipt_no"`
	State             CartState  `bson:"state" json:"state"`
	Staff             Staff      `bson:"staff" json:"staff"`
	LineItems         []LineItem `bson:"line_items" json:"line_items"`
	SubtotalDiscounts []Discount `bson:"subtotal_discounts" json:"subtotal_discounts"`
	Taxes             []Tax      `bson:"taxes" json:"taxes"`
	Payments          []Payment  `bson:"payments" json:"payments"`
	Totals            Totals     `bson:"totals" json:"totals"`
	Etag              string     `bson:"etag" json:"etag"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at" json:"updated_at"`
}

type Staff struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

type LineItem struct {
	LineNo             int                 `bson:"line_no" json:"line_no"`
	ItemCode           string              `bson:"item_code" json:"item_code"`
	Description        string              `bson:"description" json:"description"`
	UnitPrice          decimal.Decimal     `bson:"unit_price" json:"unit_price"`
	UnitPriceOriginal  decimal.Decimal     `bson:"unit_price_original" json:"unit_price_original"`
	IsUnitPriceChanged bool                `bson:"is_unit_price_changed" json:"is_unit_price_changed"`
	Quantity           int                 `bson:"quantity" json:"quantity"`
	TaxCode            string              `bson:"tax_code" json:"tax_code"`
	IsCancelled        bool                `bson:"is_cancelled" json:"is_cancelled"`
	Discounts          []Discount          `bson:"discounts" json:"discounts"`
	DiscountsAllocated []AllocatedDiscount `bson:"discounts_allocated" json:"discounts_allocated"`
	Amount             decimal.Decimal     `bson:"amount" json:"amount"`
}

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountAmount  DiscountKind = "amount"
)

func (k DiscountKind) Valid() bool {
	return k == DiscountPercent || k == DiscountAmount
}

type Discount struct {
	Seq    int             `bson:"seq" json:"seq"`
	Kind   DiscountKind    `bson:"kind" json:"kind"`
	Value  decimal.Decimal `bson:"value" json:"value"`
	Amount decimal.Decimal `bson:"amount" json:"amount"`
	Detail string          `bson:"detail" json:"detail,omitempty"`
}

// AllocatedDiscount is the share of a cart-level discount carried by one line.
type AllocatedDiscount struct {
	DiscountSeq int             `bson:"discount_seq" json:"discount_seq"`
	Amount      decimal.Decimal `bson:"amount" json:"amount"`
}

type Tax struct {
	TaxNo          int             `bson:"tax_no" json:"tax_no"`
	TaxCode        string          `bson:"tax_code" json:"tax_code"`
	TaxType        TaxType         `bson:"tax_type" json:"tax_type"`
	TaxName        string          `bson:"tax_name" json:"tax_name"`
	TaxAmount      decimal.Decimal `bson:"tax_amount" json:"tax_amount"`
	TargetAmount   decimal.Decimal `bson:"target_amount" json:"target_amount"`
	TargetQuantity int             `bson:"target_quantity" json:"target_quantity"`
}

type Payment struct {
	PaymentNo         int             `bson:"payment_no" json:"payment_no"`
	PaymentCode       string          `bson:"payment_code" json:"payment_code"`
	Description       string          `bson:"description" json:"description"`
	TenderedAmount    decimal.Decimal `bson:"tendered_amount" json:"tendered_amount"`
	Amount            decimal.Decimal `bson:"amount" json:"amount"`
	ChangeAmount      decimal.Decimal `bson:"change_amount" json:"change_amount"`
	DepositOverAmount decimal.Decimal `bson:"deposit_over_amount" json:"deposit_over_amount"`
}

type Totals struct {
	SubtotalAmount      decimal.Decimal `bson:"subtotal_amount" json:"subtotal_amount"`
	LineDiscountAmount  decimal.Decimal `bson:"line_discount_amount" json:"line_discount_amount"`
	CartDiscountAmount  decimal.Decimal `bson:"cart_discount_amount" json:"cart_discount_amount"`
	TotalDiscountAmount decimal.Decimal `bson:"total_discount_amount" json:"total_discount_amount"`
	TotalAmount         decimal.Decimal `bson:"total_amount" json:"total_amount"`
	ExternalTaxAmount   decimal.Decimal `bson:"external_tax_amount" json:"external_tax_amount"`
	InternalTaxAmount   decimal.Decimal `bson:"internal_tax_amount" json:"internal_tax_amount"`
	TotalAmountWithTax  decimal.Decimal `bson:"total_amount_with_tax" json:"total_amount_with_tax"`
	TotalQuantity       int             `bson:"total_quantity" json:"total_quantity"`
	PaymentAmount       decimal.Decimal `bson:"payment_amount" json:"payment_amount"`
	ChangeAmount        decimal.Decimal `bson:"change_amount" json:"change_amount"`
	BalanceAmount       decimal.Decimal `bson:"balance_amount" json:"balance_amount"`
}

// NewCart opens a cart for a terminal. The cart starts in StateInitial;
// the caller applies EventCreate to move it to StateIdle.
func NewCart(info TerminalInfo, cartID string, transactionNo int, now time.Time) *Cart {
	return &Cart{
		CartID:          cartID,
		TenantID:        info.TenantID,
		StoreCode:       info.StoreCode,
		StoreName:       info.StoreName,
		TerminalNo:      info.TerminalNo,
		TerminalID:      info.TerminalID,
		BusinessDate:    info.BusinessDate,
		OpenCounter:     info.OpenCounter,
		BusinessCounter: info.BusinessCounter,
		TransactionNo:   transactionNo,
		TransactionType: TransactionTypeNormalSales,
		State:           StateInitial,
		Staff:           info.Staff,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AddLineItem appends item with the next line number and returns that number.
func (c *Cart) AddLineItem(item LineItem) int {
	item.LineNo = len(c.LineItems) + 1
	c.LineItems = append(c.LineItems, item)
	return item.LineNo
}

// ActiveLineItem returns the non-cancelled line with lineNo.
func (c *Cart) ActiveLineItem(lineNo int) (*LineItem, error) {
	if lineNo < 1 || lineNo > len(c.LineItems) {
		return nil, Validationf("line item %d does not exist", lineNo)
	}
	li := &c.LineItems[lineNo-1]
	if li.IsCancelled {
		return nil, Validationf("line item %d is cancelled", lineNo)
	}
	return li, nil
}

func (c *Cart) ActiveLineItems() []*LineItem {
	var out []*LineItem
	for i := range c.LineItems {
		if !c.LineItems[i].IsCancelled {
			out = append(out, &c.LineItems[i])
		}
	}
	return out
}

func (c *Cart) AddLineDiscount(lineNo int, d Discount) error {
	li, err := c.ActiveLineItem(lineNo)
	if err != nil {
		return err
	}
	d.Seq = len(li.Discounts) + 1
	li.Discounts = append(li.Discounts, d)
	return nil
}

func (c *Cart) AddSubtotalDiscount(d Discount) {
	d.Seq = len(c.SubtotalDiscounts) + 1
	c.SubtotalDiscounts = append(c.SubtotalDiscounts, d)
}

func (c *Cart) AddPayment(p Payment) {
	p.PaymentNo = len(c.Payments) + 1
	c.Payments = append(c.Payments, p)
}

func (c *Cart) ClearPayments() {
	c.Payments = nil
}

// TaxCodes returns the distinct tax codes of active lines in order of first appearance.
func (c *Cart) TaxCodes() []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, li := range c.ActiveLineItems() {
		if _, ok := seen[li.TaxCode]; ok {
			continue
		}
		seen[li.TaxCode] = struct{}{}
		codes = append(codes, li.TaxCode)
	}
	return codes
}

// Clone returns a deep copy; slices are not shared with the receiver.
func (c *Cart) Clone() *Cart {
	out := *c
	out.LineItems = make([]LineItem, len(c.LineItems))
	for i, li := range c.LineItems {
		li.Discounts = append([]Discount(nil), li.Discounts...)
		li.DiscountsAllocated = append([]AllocatedDiscount(nil), li.DiscountsAllocated...)
		out.LineItems[i] = li
	}
	out.SubtotalDiscounts = append([]Discount(nil), c.SubtotalDiscounts...)
	out.Taxes = append([]Tax(nil), c.Taxes...)
	out.Payments = append([]Payment(nil), c.Payments...)
	return &out
}
