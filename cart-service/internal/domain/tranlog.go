package domain

import "time"

// TransactionLog is the immutable record of a completed sale.
// (TenantID, StoreCode, TerminalNo, TransactionNo) identifies it.
type TransactionLog struct {
	TenantID          string     `bson:"tenant_id" json:"tenant_id"`
	StoreCode         string     `bson:"store_code" json:"store_code"`
	StoreName         string     `bson:"store_name" json:"store_name"`
	TerminalNo        int        `bson:"terminal_no" json:"terminal_no"`
	TerminalID        string     `bson:"terminal_id" json:"terminal_id"`
	TransactionNo     int        `bson:"transaction_no" json:"transaction_no"`
	TransactionType   int        `bson:"transaction_type" json:"transaction_type"`
	BusinessDate      string     `bson:"business_date" json:"business_date"`
	OpenCounter       int        `bson:"open_counter" json:"open_counter"`
	BusinessCounter   int        `bson:"business_counter" json:"business_counter"`
	GenerateDateTime  time.Time  `bson:"generate_date_time" json:"generate_date_time"`
	ReceiptNo         int        `bson:"receipt_no" json:"receipt_no"`
	CartID            string     `bson:"cart_id" json:"cart_id"`
	Staff             Staff      `bson:"staff" json:"staff"`
	LineItems         []LineItem `bson:"line_items" json:"line_items"`
	SubtotalDiscounts []Discount `bson:"subtotal_discounts" json:"subtotal_discounts"`
	Taxes             []Tax      `bson:"taxes" json:"taxes"`
	Payments          []Payment  `bson:"payments" json:"payments"`
	Totals            Totals     `bson:"totals" json:"totals"`
	ReceiptText       string     `bson:"receipt_text" json:"receipt_text"`
	JournalText       string     `bson:"journal_text" json:"journal_text"`
	ShardKey          string     `bson:"shard_key" json:"shard_key"`
	CreatedAt         time.Time  `bson:"created_at" json:"created_at"`
}
