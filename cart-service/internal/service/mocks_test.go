package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/cache"
	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/cart-service/internal/repository"
	"github.com/fjod/pos_cart/cart-service/internal/tranlog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type mockCartRepository struct {
	m       sync.Mutex
	carts   map[string]*domain.Cart
	saves   int
	err     error
	saveErr error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (r *mockCartRepository) Create(_ context.Context, c *domain.Cart) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.carts[c.CartID]; ok {
		return fmt.Errorf("%w: cart %s already exists", domain.ErrConflict, c.CartID)
	}
	c.Etag = uuid.NewString()
	r.carts[c.CartID] = c.Clone()
	return nil
}

func (r *mockCartRepository) Get(_ context.Context, cartID string) (*domain.Cart, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.carts[cartID]
	if !ok {
		return nil, domain.NotFoundf("cart %s", cartID)
	}
	return c.Clone(), nil
}

func (r *mockCartRepository) Save(_ context.Context, c *domain.Cart) error {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.saveErr != nil {
		return r.saveErr
	}
	stored, ok := r.carts[c.CartID]
	if !ok {
		return domain.NotFoundf("cart %s", c.CartID)
	}
	if stored.Etag != c.Etag {
		return fmt.Errorf("%w: cart %s", domain.ErrConflict, c.CartID)
	}
	c.Etag = uuid.NewString()
	r.carts[c.CartID] = c.Clone()
	r.saves++
	return nil
}

func (r *mockCartRepository) stored(cartID string) *domain.Cart {
	r.m.Lock()
	defer r.m.Unlock()
	return r.carts[cartID].Clone()
}

type mockCounters struct {
	m      sync.Mutex
	values map[string]int
}

func (c *mockCounters) Next(_ context.Context, terminalID string, kind repository.CounterKind) (int, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.values == nil {
		c.values = make(map[string]int)
	}
	k := terminalID + "/" + string(kind)
	c.values[k]++
	return c.values[k], nil
}

type mockCache struct {
	m       sync.Mutex
	carts   map[string]*domain.Cart
	deletes int
}

func (c *mockCache) Get(_ context.Context, cartID string) (*domain.Cart, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if cart, ok := c.carts[cartID]; ok {
		return cart.Clone(), nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *mockCache) Set(_ context.Context, cart *domain.Cart) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.carts == nil {
		c.carts = make(map[string]*domain.Cart)
	}
	c.carts[cart.CartID] = cart.Clone()
	return nil
}

func (c *mockCache) Delete(_ context.Context, cartID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.carts, cartID)
	c.deletes++
	return nil
}

// mockMaster serves every master-data lookup from in-memory maps.
type mockMaster struct {
	items     map[string]domain.ItemMaster
	payments  map[string]domain.PaymentMaster
	taxes     map[string]domain.TaxMaster
	settings  map[string]string
	terminals map[string]domain.TerminalInfo
}

func newMockMaster() *mockMaster {
	return &mockMaster{
		items: map[string]domain.ItemMaster{
			"ITEM-100": {ItemCode: "ITEM-100", Description: "Coffee beans", UnitPrice: decimal.NewFromInt(100), TaxCode: "TAX-EXT10"},
			"ITEM-110": {ItemCode: "ITEM-110", Description: "Lunch box", UnitPrice: decimal.NewFromInt(110), TaxCode: "TAX-INT10"},
			"ITEM-050": {ItemCode: "ITEM-050", Description: "Stamp", UnitPrice: decimal.NewFromInt(50), TaxCode: "TAX-FREE"},
		},
		payments: map[string]domain.PaymentMaster{
			"01": {PaymentCode: "01", Description: "Cash", CanChange: true, CanDepositOver: true},
			"02": {PaymentCode: "02", Description: "Voucher", CanDepositOver: true},
			"11": {PaymentCode: "11", Description: "Card", LimitAmount: decimal.NewFromInt(100000)},
		},
		taxes: map[string]domain.TaxMaster{
			"TAX-EXT10": {TaxCode: "TAX-EXT10", TaxType: domain.TaxTypeExternal, TaxName: "VAT 10%", Rate: decimal.NewFromInt(10), RoundMethod: "RoundDown"},
			"TAX-INT10": {TaxCode: "TAX-INT10", TaxType: domain.TaxTypeInternal, TaxName: "VAT 10% incl.", Rate: decimal.NewFromInt(10), RoundMethod: "RoundDown"},
			"TAX-FREE":  {TaxCode: "TAX-FREE", TaxType: domain.TaxTypeExempt, TaxName: "Exempt"},
		},
		settings: map[string]string{},
		terminals: map[string]domain.TerminalInfo{
			"T1-S1-1": {TerminalID: "T1-S1-1", TenantID: "T1", StoreCode: "S1", StoreName: "Main Street", TerminalNo: 1, BusinessDate: "20240501", OpenCounter: 1},
		},
	}
}

func (m *mockMaster) Item(_ context.Context, _, _, code string) (*domain.ItemMaster, error) {
	if v, ok := m.items[code]; ok {
		return &v, nil
	}
	return nil, domain.NotFoundf("item %s", code)
}

func (m *mockMaster) Payment(_ context.Context, _, code string) (*domain.PaymentMaster, error) {
	if v, ok := m.payments[code]; ok {
		return &v, nil
	}
	return nil, domain.NotFoundf("payment %s", code)
}

func (m *mockMaster) Tax(_ context.Context, _, code string) (*domain.TaxMaster, error) {
	if v, ok := m.taxes[code]; ok {
		return &v, nil
	}
	return nil, domain.NotFoundf("tax %s", code)
}

func (m *mockMaster) Setting(_ context.Context, _, _ string, _ int, name string) (string, error) {
	if v, ok := m.settings[name]; ok {
		return v, nil
	}
	return "", domain.NotFoundf("setting %s", name)
}

func (m *mockMaster) Terminal(_ context.Context, id string) (*domain.TerminalInfo, error) {
	if v, ok := m.terminals[id]; ok {
		return &v, nil
	}
	return nil, domain.NotFoundf("terminal %s", id)
}

type mockTranlogRepository struct {
	m    sync.Mutex
	logs map[string]*domain.TransactionLog
	err  error
}

func newMockTranlogRepository() *mockTranlogRepository {
	return &mockTranlogRepository{logs: make(map[string]*domain.TransactionLog)}
}

func tranlogKey(tenantID, storeCode string, terminalNo, txNo int) string {
	return fmt.Sprintf("%s/%s/%d/%d", tenantID, storeCode, terminalNo, txNo)
}

func (r *mockTranlogRepository) InsertIfAbsent(_ context.Context, log *domain.TransactionLog) (*domain.TransactionLog, bool, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if r.err != nil {
		return nil, false, r.err
	}
	k := tranlogKey(log.TenantID, log.StoreCode, log.TerminalNo, log.TransactionNo)
	if existing, ok := r.logs[k]; ok {
		return existing, false, nil
	}
	r.logs[k] = log
	return log, true, nil
}

func (r *mockTranlogRepository) Get(_ context.Context, tenantID, storeCode string, terminalNo, txNo int) (*domain.TransactionLog, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if log, ok := r.logs[tranlogKey(tenantID, storeCode, terminalNo, txNo)]; ok {
		return log, nil
	}
	return nil, domain.NotFoundf("transaction %d", txNo)
}

func (r *mockTranlogRepository) count() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.logs)
}

// mockDeliveryRepository keeps the ledger in memory with the same
// semantics as the PostgreSQL repository.
type mockDeliveryRepository struct {
	m        sync.Mutex
	statuses map[string]*domain.DeliveryStatus
}

func newMockDeliveryRepository() *mockDeliveryRepository {
	return &mockDeliveryRepository{statuses: make(map[string]*domain.DeliveryStatus)}
}

func copyStatus(ds *domain.DeliveryStatus) *domain.DeliveryStatus {
	cp := *ds
	cp.Services = append([]domain.ServiceStatus(nil), ds.Services...)
	return &cp
}

func (r *mockDeliveryRepository) Create(_ context.Context, ds *domain.DeliveryStatus) (bool, error) {
	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.statuses[ds.EventID]; ok {
		return false, nil
	}
	r.statuses[ds.EventID] = copyStatus(ds)
	return true, nil
}

func (r *mockDeliveryRepository) Get(_ context.Context, eventID string) (*domain.DeliveryStatus, error) {
	r.m.Lock()
	defer r.m.Unlock()
	ds, ok := r.statuses[eventID]
	if !ok {
		return nil, domain.NotFoundf("delivery status %s", eventID)
	}
	return copyStatus(ds), nil
}

func (r *mockDeliveryRepository) Acknowledge(_ context.Context, eventID, service string, status domain.DeliveryState, message string, at time.Time) (*domain.DeliveryStatus, error) {
	r.m.Lock()
	defer r.m.Unlock()
	ds, ok := r.statuses[eventID]
	if !ok {
		return nil, domain.NotFoundf("delivery status %s", eventID)
	}
	if err := ds.Acknowledge(service, status, message, at); err != nil {
		return nil, err
	}
	return copyStatus(ds), nil
}

func (r *mockDeliveryRepository) RecordPublishAttempt(_ context.Context, eventID string, publishErr error, at time.Time) error {
	r.m.Lock()
	defer r.m.Unlock()
	ds, ok := r.statuses[eventID]
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

func (r *mockDeliveryRepository) FindUndelivered(_ context.Context, olderThan, since time.Time, limit int) ([]*domain.DeliveryStatus, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var out []*domain.DeliveryStatus
	for _, ds := range r.statuses {
		if ds.OverallStatus == domain.DeliveryDelivered || ds.PublishedAt.After(olderThan) || ds.PublishedAt.Before(since) {
			continue
		}
		out = append(out, copyStatus(ds))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *mockDeliveryRepository) PruneDelivered(_ context.Context, before time.Time) (int64, error) {
	r.m.Lock()
	defer r.m.Unlock()
	var n int64
	for id, ds := range r.statuses {
		if ds.OverallStatus == domain.DeliveryDelivered && ds.LastUpdatedAt.Before(before) {
			delete(r.statuses, id)
			n++
		}
	}
	return n, nil
}

type mockBus struct {
	m        sync.Mutex
	messages []tranlog.Message
	err      error
}

func (b *mockBus) Publish(_ context.Context, msg tranlog.Message) error {
	b.m.Lock()
	defer b.m.Unlock()
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, msg)
	return nil
}

func (b *mockBus) setErr(err error) {
	b.m.Lock()
	defer b.m.Unlock()
	b.err = err
}

func (b *mockBus) published(eventID string) bool {
	b.m.Lock()
	defer b.m.Unlock()
	for _, msg := range b.messages {
		if msg.EventID == eventID {
			return true
		}
	}
	return false
}

func (b *mockBus) count() int {
	b.m.Lock()
	defer b.m.Unlock()
	return len(b.messages)
}
