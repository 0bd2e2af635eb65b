package tranlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
)

type fakeTranlogRepo struct {
	mu   sync.Mutex
	logs map[string]*domain.TransactionLog
	err  error
}

func newFakeTranlogRepo() *fakeTranlogRepo {
	return &fakeTranlogRepo{logs: make(map[string]*domain.TransactionLog)}
}

func logKey(tenantID, storeCode string, terminalNo, txNo int) string {
	return fmt.Sprintf("%s/%s/%d/%d", tenantID, storeCode, terminalNo, txNo)
}

func (f *fakeTranlogRepo) InsertIfAbsent(_ context.Context, log *domain.TransactionLog) (*domain.TransactionLog, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	k := logKey(log.TenantID, log.StoreCode, log.TerminalNo, log.TransactionNo)
	if existing, ok := f.logs[k]; ok {
		return existing, false, nil
	}
	f.logs[k] = log
	return log, true, nil
}

func (f *fakeTranlogRepo) Get(_ context.Context, tenantID, storeCode string, terminalNo, txNo int) (*domain.TransactionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if log, ok := f.logs[logKey(tenantID, storeCode, terminalNo, txNo)]; ok {
		return log, nil
	}
	return nil, domain.NotFoundf("transaction %d", txNo)
}

type fakeDeliveryRepo struct {
	mu        sync.Mutex
	statuses  map[string]*domain.DeliveryStatus
	createErr error
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{statuses: make(map[string]*domain.DeliveryStatus)}
}

func (f *fakeDeliveryRepo) Create(_ context.Context, ds *domain.DeliveryStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	if _, ok := f.statuses[ds.EventID]; ok {
		return false, nil
	}
	cp := *ds
	cp.Services = append([]domain.ServiceStatus(nil), ds.Services...)
	f.statuses[ds.EventID] = &cp
	return true, nil
}

func (f *fakeDeliveryRepo) Get(_ context.Context, eventID string) (*domain.DeliveryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.statuses[eventID]
	if !ok {
		return nil, domain.NotFoundf("delivery status %s", eventID)
	}
	cp := *ds
	cp.Services = append([]domain.ServiceStatus(nil), ds.Services...)
	return &cp, nil
}

func (f *fakeDeliveryRepo) Acknowledge(_ context.Context, eventID, service string, status domain.DeliveryState, message string, at time.Time) (*domain.DeliveryStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.statuses[eventID]
	if !ok {
		return nil, domain.NotFoundf("delivery status %s", eventID)
	}
	if err := ds.Acknowledge(service, status, message, at); err != nil {
		return nil, err
	}
	return ds, nil
}

func (f *fakeDeliveryRepo) RecordPublishAttempt(_ context.Context, eventID string, publishErr error, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.statuses[eventID]
	if !ok {
		return domain.NotFoundf("delivery status %s", eventID)
	}
	ds.PublishAttempts++
	ds.LastPublishError = ""
	if publishErr != nil {
		ds.LastPublishError = publishErr.Error()
	}
	ds.LastUpdatedAt = at
	return nil
}

func (f *fakeDeliveryRepo) FindUndelivered(context.Context, time.Time, time.Time, int) ([]*domain.DeliveryStatus, error) {
	return nil, nil
}

func (f *fakeDeliveryRepo) PruneDelivered(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeBus struct {
	mu       sync.Mutex
	messages []Message
	err      error
	block    bool
}

func (b *fakeBus) Publish(ctx context.Context, msg Message) error {
	if b.block {
		<-ctx.Done()
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, msg)
	return nil
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}
