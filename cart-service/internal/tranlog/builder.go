// Package tranlog turns a completed cart into its transaction log, stores it
// once, and hands it to the message bus for downstream consumers.
package tranlog

import (
	"fmt"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/cart-service/internal/shardkey"
	"github.com/google/uuid"
)

const EventTypeTranlog = "tranlog.created"

// eventNamespace scopes the name-based event ids of transaction logs.
var eventNamespace = uuid.MustParse("6f1c8e2a-4b7d-5e90-a3c1-2d8f04b7e615")

// Build snapshots a billed cart. The log shares no slices with the cart.
func Build(c *domain.Cart, now time.Time) *domain.TransactionLog {
	snap := c.Clone()
	log := &domain.TransactionLog{
		TenantID:          snap.TenantID,
		StoreCode:         snap.StoreCode,
		StoreName:         snap.StoreName,
		TerminalNo:        snap.TerminalNo,
		TerminalID:        snap.TerminalID,
		TransactionNo:     snap.TransactionNo,
		TransactionType:   snap.TransactionType,
		BusinessDate:      snap.BusinessDate,
		OpenCounter:       snap.OpenCounter,
		BusinessCounter:   snap.BusinessCounter,
		GenerateDateTime:  now,
		ReceiptNo:         snap.ReceiptNo,
		CartID:            snap.CartID,
		Staff:             snap.Staff,
		LineItems:         snap.LineItems,
		SubtotalDiscounts: snap.SubtotalDiscounts,
		Taxes:             snap.Taxes,
		Payments:          snap.Payments,
		Totals:            snap.Totals,
		ShardKey:          shardkey.Generate(snap.TenantID, snap.StoreCode, snap.TerminalNo, now),
		CreatedAt:         now,
	}
	log.ReceiptText = RenderReceipt(log)
	log.JournalText = RenderJournal(log)
	return log
}

// EventID is stable for a transaction, so every publish of the same log
// carries the same id.
func EventID(log *domain.TransactionLog) string {
	name := fmt.Sprintf("%s/%s/%d/%d", log.TenantID, log.StoreCode, log.TerminalNo, log.TransactionNo)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}
