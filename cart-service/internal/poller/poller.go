// Package poller consumes delivery acknowledgements that downstream
// services publish after handling a transaction log.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AckMessage is what a consumer publishes for one event it handled.
type AckMessage struct {
	EventID     string `json:"event_id"`
	ServiceName string `json:"service_name"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
}

// Acknowledger records one consumer's outcome for an event.
type Acknowledger interface {
	Acknowledge(ctx context.Context, eventID, service, status, message string) (*domain.DeliveryStatus, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Poller struct {
	acks    Acknowledger
	reader  messageReader
	logger  *zap.Logger
	backoff time.Duration
}

func NewPoller(acks Acknowledger, logger *zap.Logger, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(acks, reader, logger)
}

func newPoller(acks Acknowledger, reader messageReader, logger *zap.Logger) *Poller {
	return &Poller{acks: acks, reader: reader, logger: logger, backoff: time.Second}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.processMessage(ctx); err != nil {
			p.logger.Warn("error reading acknowledgement", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing kafka reader", zap.Error(err))
	}
}

// processMessage handles one message and commits its offset once the ack is
// recorded or rejected for good. A transient failure is retried in place, so
// the offset never moves past an ack that was not stored.
func (p *Poller) processMessage(ctx context.Context) error {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil
		}
		return err
	}

	if err := p.handle(ctx, m); err != nil {
		// shutting down; the uncommitted message is redelivered on restart
		return nil
	}
	if err := p.reader.CommitMessages(ctx, m); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}

// handle returns an error only when ctx ends before the ack could be stored.
func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	var ack AckMessage
	if err := json.Unmarshal(m.Value, &ack); err != nil {
		p.logger.Warn("error parsing acknowledgement", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	l := p.logger.With(zap.String("event_id", ack.EventID), zap.String("service", ack.ServiceName))
	for {
		_, err := p.acks.Acknowledge(ctx, ack.EventID, ack.ServiceName, ack.Status, ack.Message)
		switch {
		case err == nil:
			l.Debug("acknowledgement recorded", zap.String("status", ack.Status))
			return nil
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
			l.Warn("acknowledgement rejected", zap.Error(err))
			return nil
		}

		l.Error("failed to record acknowledgement, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff):
		}
	}
}
