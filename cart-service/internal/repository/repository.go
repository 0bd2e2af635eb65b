package repository

import (
	"context"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
)

// CartRepository stores carts under optimistic concurrency: Save only
// succeeds when the stored etag still matches the one the cart was read with.
type CartRepository interface {
	Create(ctx context.Context, cart *domain.Cart) error
	Get(ctx context.Context, cartID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
}

type CounterKind string

const (
	CounterTransactionNo CounterKind = "transaction_no"
	CounterReceiptNo     CounterKind = "receipt_no"
)

// CounterRepository hands out per-terminal sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, terminalID string, kind CounterKind) (int, error)
}

// TranlogRepository persists transaction logs at most once per
// (tenant, store, terminal, transaction number).
type TranlogRepository interface {
	// InsertIfAbsent stores log unless one with the same key exists.
	// It returns the stored log and whether this call created it.
	InsertIfAbsent(ctx context.Context, log *domain.TransactionLog) (*domain.TransactionLog, bool, error)
	Get(ctx context.Context, tenantID, storeCode string, terminalNo, transactionNo int) (*domain.TransactionLog, error)
}
