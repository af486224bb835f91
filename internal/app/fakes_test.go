package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/google/uuid"
)

type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	saves    int
	saveErr  error
	loadErr  error
	onLoad   func()
	notified []string
}

func newFakeOrderRepo(orders ...domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: map[string]domain.Order{}}
	for i, o := range orders {
		if o.EntityID == 0 {
			o.EntityID = int64(i + 1)
		}
		r.orders[o.IncrementID] = o.Clone()
	}
	return r
}

func (r *fakeOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *fakeOrderRepo) GetByIncrementID(_ context.Context, incrementID string) (*domain.Order, error) {
	if r.onLoad != nil {
		r.onLoad()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	o, ok := r.orders[incrementID]
	if !ok {
		return nil, nil
	}
	c := o.Clone()
	return &c, nil
}

func (r *fakeOrderRepo) Save(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for i := range o.History {
		if o.History[i].ID == "" {
			o.History[i].ID = uuid.NewString()
		}
	}
	r.saves++
	r.orders[o.IncrementID] = o.Clone()
	return nil
}

func (r *fakeOrderRepo) MarkHistoryNotified(_ context.Context, orderID int64, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, entryID)
	return nil
}

func (r *fakeOrderRepo) get(incrementID string) domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[incrementID].Clone()
}

func (r *fakeOrderRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMailer) SendOrderEmail(_ context.Context, o domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, o.IncrementID)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeVaultStore struct {
	mu     sync.Mutex
	tokens []domain.VaultToken
	err    error
}

func (s *fakeVaultStore) SaveToken(_ context.Context, t domain.VaultToken) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	for _, existing := range s.tokens {
		if existing.PaymentID == t.PaymentID {
			return false, nil
		}
	}
	s.tokens = append(s.tokens, t)
	return true, nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	payments map[string]domain.Payment
	calls    int
	gate     chan struct{}
}

func (f *fakeFetcher) GetPayment(_ context.Context, id string) (domain.Payment, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	p, ok := f.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) set(p domain.Payment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = p
}

var errBoom = errors.New("boom")

var testNow = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
