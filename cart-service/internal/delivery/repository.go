// Package delivery persists the per-consumer delivery ledger of published
// transaction logs in PostgreSQL.
package delivery

import (
	"context"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Repository interface {
	// Create stores ds unless a record with the same event id exists; it reports whether it inserted.
	Create(ctx context.Context, ds *domain.DeliveryStatus) (bool, error)
	Get(ctx context.Context, eventID string) (*domain.DeliveryStatus, error)
	// Acknowledge updates one consumer's entry and recomputes the overall status atomically.
	Acknowledge(ctx context.Context, eventID, service string, status domain.DeliveryState, message string, at time.Time) (*domain.DeliveryStatus, error)
	RecordPublishAttempt(ctx context.Context, eventID string, publishErr error, at time.Time) error
	// FindUndelivered returns records not yet delivered, published between since and olderThan, oldest first.
	FindUndelivered(ctx context.Context, olderThan, since time.Time, limit int) ([]*domain.DeliveryStatus, error)
	PruneDelivered(ctx context.Context, before time.Time) (int64, error)
}
