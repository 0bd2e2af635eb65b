package tranlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/delivery"
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/cart-service/internal/repository"
	"github.com/fjod/pos_cart/pkg/circuitbreaker"
	"github.com/fjod/pos_cart/pkg/metrics"
	"go.uber.org/zap"
)

type Config struct {
	// Consumers are the downstream services expected to acknowledge every log.
	Consumers      []string
	PublishTimeout time.Duration
}

type Publisher struct {
	logs       repository.TranlogRepository
	deliveries delivery.Repository
	bus        Bus
	breaker    *circuitbreaker.Breaker
	cfg        Config
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewPublisher(
	logs repository.TranlogRepository,
	deliveries delivery.Repository,
	bus Bus,
	breaker *circuitbreaker.Breaker,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Publisher {
	return &Publisher{
		logs:       logs,
		deliveries: deliveries,
		bus:        bus,
		breaker:    breaker,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

type FinalizeResult struct {
	Log     *domain.TransactionLog
	EventID string
	// Duplicate is set when the log was already stored by an earlier call.
	Duplicate bool
	// DeliveryErr wraps domain.ErrDelivery when the publish did not go through.
	// The log is durable either way; recovery republishes it later.
	DeliveryErr error
}

// Finalize stores log at most once, records it in the delivery ledger and
// publishes it. A failure to store the log or its ledger row is returned as an
// error; a failed publish is reported through DeliveryErr.
func (p *Publisher) Finalize(ctx context.Context, log *domain.TransactionLog) (*FinalizeResult, error) {
	stored, created, err := p.logs.InsertIfAbsent(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("%w: store transaction log: %w", domain.ErrPersistence, err)
	}

	res := &FinalizeResult{Log: stored, EventID: EventID(stored), Duplicate: !created}
	l := p.logger.With(
		zap.String("event_id", res.EventID),
		zap.String("shard_key", stored.ShardKey),
		zap.Int("transaction_no", stored.TransactionNo),
	)
	if res.Duplicate {
		l.Info("transaction log already stored")
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		res.DeliveryErr = fmt.Errorf("%w: encode transaction log: %w", domain.ErrDelivery, err)
		l.Error("encode transaction log failed", zap.Error(err))
		return res, nil
	}

	ds := domain.NewDeliveryStatus(res.EventID, stored, payload, p.cfg.Consumers, p.now())
	inserted, err := p.deliveries.Create(ctx, ds)
	if err != nil {
		// without a ledger row the sweep cannot see the event; the caller retries
		// and the duplicate path creates the row
		l.Error("create delivery record failed", zap.Error(err))
		return nil, fmt.Errorf("%w: create delivery record: %w", domain.ErrPersistence, err)
	}
	if !inserted {
		// already published once; the recovery sweep owns any redelivery
		return res, nil
	}

	res.DeliveryErr = p.publish(ctx, ds)
	return res, nil
}

// Republish sends an already recorded event again through the breaker.
func (p *Publisher) Republish(ctx context.Context, ds *domain.DeliveryStatus) error {
	return p.publish(ctx, ds)
}

func (p *Publisher) publish(ctx context.Context, ds *domain.DeliveryStatus) error {
	l := p.logger.With(zap.String("event_id", ds.EventID))

	value, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("%w: encode event: %w", domain.ErrDelivery, err)
	}
	msg := Message{Key: ds.ShardKey, EventID: ds.EventID, EventType: EventTypeTranlog, Value: value}

	pubErr := p.breaker.Execute(ctx, p.cfg.PublishTimeout, func(ctx context.Context) error {
		return p.bus.Publish(ctx, msg)
	})

	result := "success"
	switch {
	case errors.Is(pubErr, circuitbreaker.ErrOpen):
		result = "circuit_open"
	case pubErr != nil:
		result = "failure"
	}
	p.metrics.Publishes.WithLabelValues(result).Inc()

	// the attempt is recorded even when the caller has gone away
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.deliveries.RecordPublishAttempt(recCtx, ds.EventID, pubErr, p.now()); err != nil {
		l.Warn("record publish attempt failed", zap.Error(err))
	}

	if pubErr != nil {
		l.Warn("publish transaction log failed", zap.String("result", result), zap.Error(pubErr))
		return fmt.Errorf("%w: %w", domain.ErrDelivery, pubErr)
	}
	l.Debug("transaction log published")
	return nil
}

// BreakerOpen reports whether publishing is currently short-circuited.
func (p *Publisher) BreakerOpen() bool {
	return p.breaker.IsOpen()
}
