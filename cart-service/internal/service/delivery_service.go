package service

import (
	"context"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/delivery"
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/pkg/logger"
	"github.com/fjod/pos_cart/pkg/metrics"
	"go.uber.org/zap"
)

// DeliveryService exposes the delivery ledger to consumers and operators.
type DeliveryService struct {
	repo    delivery.Repository
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewDeliveryService(repo delivery.Repository, m *metrics.Metrics, l *zap.Logger) *DeliveryService {
	return &DeliveryService{repo: repo, metrics: m, logger: l, now: time.Now}
}

func (s *DeliveryService) Get(ctx context.Context, eventID string) (*domain.DeliveryStatus, error) {
	return s.repo.Get(ctx, eventID)
}

// Acknowledge records the outcome one consumer reports for its own entry.
func (s *DeliveryService) Acknowledge(ctx context.Context, eventID, service, status, message string) (*domain.DeliveryStatus, error) {
	if service == "" {
		return nil, domain.Validationf("service name is required")
	}
	st, err := domain.ParseAckState(status)
	if err != nil {
		return nil, err
	}

	ds, err := s.repo.Acknowledge(ctx, eventID, service, st, message, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.Acknowledgements.WithLabelValues(service, string(st)).Inc()
	logger.FromContext(ctx, s.logger).Info("delivery acknowledged",
		zap.String("event_id", eventID),
		zap.String("service", service),
		zap.String("status", string(st)),
		zap.String("overall_status", string(ds.OverallStatus)))
	return ds, nil
}
