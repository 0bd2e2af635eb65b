package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type DeliveryState string

const (
	DeliveryPending            DeliveryState = "pending"
	DeliveryReceived           DeliveryState = "received"
	DeliveryFailed             DeliveryState = "failed"
	DeliveryDelivered          DeliveryState = "delivered"
	DeliveryPartiallyDelivered DeliveryState = "partially_delivered"
)

// ParseAckState accepts the states a consumer may report for itself.
func ParseAckState(v string) (DeliveryState, error) {
	switch s := DeliveryState(v); s {
	case DeliveryReceived, DeliveryFailed:
		return s, nil
	}
	return "", Validationf("acknowledgement status %q must be %q or %q", v, DeliveryReceived, DeliveryFailed)
}

type ServiceStatus struct {
	ServiceName string        `json:"service_name"`
	Status      DeliveryState `json:"status"`
	ReceivedAt  *time.Time    `json:"received_at,omitempty"`
	Message     string        `json:"message,omitempty"`
}

// DeliveryStatus tracks one published transaction-log event across its consumers.
type DeliveryStatus struct {
	EventID          string          `json:"event_id"`
	PublishedAt      time.Time       `json:"published_at"`
	TenantID         string          `json:"tenant_id"`
	StoreCode        string          `json:"store_code"`
	TerminalNo       int             `json:"terminal_no"`
	BusinessDate     string          `json:"business_date"`
	OpenCounter      int             `json:"open_counter"`
	TransactionNo    int             `json:"transaction_no"`
	ShardKey         string          `json:"shard_key"`
	Payload          json.RawMessage `json:"payload"`
	Services         []ServiceStatus `json:"services"`
	OverallStatus    DeliveryState   `json:"overall_status"`
	PublishAttempts  int             `json:"publish_attempts"`
	LastPublishError string          `json:"last_publish_error,omitempty"`
	LastUpdatedAt    time.Time       `json:"last_updated_at"`
}

// NewDeliveryStatus creates a record with one pending entry per consumer.
func NewDeliveryStatus(eventID string, log *TransactionLog, payload []byte, consumers []string, now time.Time) *DeliveryStatus {
	services := make([]ServiceStatus, len(consumers))
	for i, name := range consumers {
		services[i] = ServiceStatus{ServiceName: name, Status: DeliveryPending}
	}
	ds := &DeliveryStatus{
		EventID:       eventID,
		PublishedAt:   now,
		TenantID:      log.TenantID,
		StoreCode:     log.StoreCode,
		TerminalNo:    log.TerminalNo,
		BusinessDate:  log.BusinessDate,
		OpenCounter:   log.OpenCounter,
		TransactionNo: log.TransactionNo,
		ShardKey:      log.ShardKey,
		Payload:       payload,
		Services:      services,
		LastUpdatedAt: now,
	}
	ds.OverallStatus = DeriveOverallStatus(services)
	return ds
}

// Acknowledge records the outcome reported by one consumer and recomputes the overall status.
func (d *DeliveryStatus) Acknowledge(service string, status DeliveryState, message string, at time.Time) error {
	if status != DeliveryReceived && status != DeliveryFailed {
		return Validationf("acknowledgement status %q", status)
	}
	for i := range d.Services {
		if d.Services[i].ServiceName != service {
			continue
		}
		d.Services[i].Status = status
		d.Services[i].Message = message
		received := at
		d.Services[i].ReceivedAt = &received
		d.OverallStatus = DeriveOverallStatus(d.Services)
		d.LastUpdatedAt = at
		return nil
	}
	return fmt.Errorf("%w: service %q is not a consumer of event %s", ErrNotFound, service, d.EventID)
}

// DeriveOverallStatus applies the aggregate precedence:
//  1. every service received (or none expected) -> delivered
//  2. none received, none pending, at least one failed -> failed
//  3. anything else -> partially_delivered
func DeriveOverallStatus(services []ServiceStatus) DeliveryState {
	var received, pending, failed int
	for _, s := range services {
		switch s.Status {
		case DeliveryReceived:
			received++
		case DeliveryFailed:
			failed++
		default:
			pending++
		}
	}
	switch {
	case received == len(services):
		return DeliveryDelivered
	case received == 0 && pending == 0 && failed > 0:
		return DeliveryFailed
	default:
		return DeliveryPartiallyDelivered
	}
}
