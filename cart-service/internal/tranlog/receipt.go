package tranlog

import (
	"fmt"
	"strings"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/shopspring/decimal"
)

const receiptWidth = 40

func line(b *strings.Builder, label string, amount decimal.Decimal) {
	v := amount.StringFixed(2)
	pad := receiptWidth - len(label) - len(v)
	if pad < 1 {
		pad = 1
	}
	b.WriteString(label)
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(v)
	b.WriteByte('\n')
}

func rule(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", receiptWidth))
	b.WriteByte('\n')
}

func header(b *strings.Builder, log *domain.TransactionLog) {
	fmt.Fprintf(b, "%s\n", log.StoreName)
	fmt.Fprintf(b, "Store %s  Terminal %d\n", log.StoreCode, log.TerminalNo)
	fmt.Fprintf(b, "Txn %d  Receipt %d\n", log.TransactionNo, log.ReceiptNo)
	fmt.Fprintf(b, "%s  %s\n", log.BusinessDate, log.GenerateDateTime.Format("2006-01-02 15:04:05"))
	if log.Staff.Name != "" {
		fmt.Fprintf(b, "Staff %s\n", log.Staff.Name)
	}
	rule(b)
}

func items(b *strings.Builder, log *domain.TransactionLog, withCancelled bool) {
	for _, li := range log.LineItems {
		if li.IsCancelled && !withCancelled {
			continue
		}
		desc := li.Description
		if li.IsCancelled {
			desc = "[VOID] " + desc
		}
		fmt.Fprintf(b, "%s\n", desc)
		line(b, fmt.Sprintf("  %d x %s", li.Quantity, li.UnitPrice.StringFixed(2)), li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))))
		for _, d := range li.Discounts {
			line(b, "  Discount", d.Amount.Neg())
		}
	}
}

func totals(b *strings.Builder, log *domain.TransactionLog) {
	t := log.Totals
	rule(b)
	line(b, "Subtotal", t.SubtotalAmount)
	if !t.CartDiscountAmount.IsZero() {
		line(b, "Discount", t.CartDiscountAmount.Neg())
	}
	for _, tax := range log.Taxes {
		label := tax.TaxName
		if tax.TaxType == domain.TaxTypeInternal {
			label = "(incl.) " + label
		}
		line(b, label, tax.TaxAmount)
	}
	line(b, "Total", t.TotalAmountWithTax)
	for _, p := range log.Payments {
		line(b, p.Description, p.TenderedAmount)
	}
	line(b, "Change", t.ChangeAmount)
}

// RenderReceipt formats the customer receipt.
func RenderReceipt(log *domain.TransactionLog) string {
	var b strings.Builder
	header(&b, log)
	items(&b, log, false)
	totals(&b, log)
	return b.String()
}

// RenderJournal formats the electronic journal entry, which keeps voided lines.
func RenderJournal(log *domain.TransactionLog) string {
	var b strings.Builder
	b.WriteString("*** JOURNAL ***\n")
	header(&b, log)
	items(&b, log, true)
	totals(&b, log)
	fmt.Fprintf(&b, "Items %d\n", log.Totals.TotalQuantity)
	return b.String()
}
