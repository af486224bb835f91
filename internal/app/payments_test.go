package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymentService(t *testing.T, payments ...domain.Payment) (*PaymentService, *fakeFetcher, *clock.Manual) {
	t.Helper()
	clk := clock.NewFixed(testNow)
	f := &fakeFetcher{payments: map[string]domain.Payment{}}
	for _, p := range payments {
		f.payments[p.ID] = p
	}
	return NewPaymentService(f, NewTTLCache[domain.Payment](clk)), f, clk
}

func TestPaymentService_CachesTerminalPayments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, f, clk := newPaymentService(t, payment("pay_1", "1", domain.StatusSucceeded))

	p, err := svc.Get(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, p.Status)

	clk.Advance(4 * time.Minute)
	_, err = svc.Get(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.callCount(), "second fetch within TTL served from cache")

	clk.Advance(2 * time.Minute)
	_, err = svc.Get(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.callCount(), "expired entry re-fetched")
}

func TestPaymentService_NeverCachesPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, f, _ := newPaymentService(t, payment("pay_1", "1", domain.StatusPending))

	for i := 0; i < 3; i++ {
		_, err := svc.Get(ctx, "pay_1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.callCount())
}

func TestPaymentService_GetFreshBypassesCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, f, _ := newPaymentService(t, payment("pay_1", "1", domain.StatusSucceeded))

	_, err := svc.Get(ctx, "pay_1")
	require.NoError(t, err)

	f.set(payment("pay_1", "1", domain.StatusRefunded))
	p, err := svc.GetFresh(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, p.Status)
	assert.Equal(t, 2, f.callCount())

	p, err = svc.Get(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, p.Status, "fresh result refreshed the cache")
	assert.Equal(t, 2, f.callCount())
}

func TestPaymentService_InvalidateAndErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, f, _ := newPaymentService(t, payment("pay_1", "1", domain.StatusFailed))

	_, err := svc.Get(ctx, "pay_1")
	require.NoError(t, err)
	svc.Invalidate("pay_1")
	_, err = svc.Get(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.callCount())

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)

	_, err = svc.Get(ctx, "")
	assert.ErrorIs(t, err, domain.ErrMissingField)
}

func TestPaymentService_ConcurrentFetchesCollapse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clock.NewFixed(testNow)
	f := &fakeFetcher{
		payments: map[string]domain.Payment{"pay_1": payment("pay_1", "1", domain.StatusPending)},
		gate:     make(chan struct{}),
	}
	svc := NewPaymentService(f, NewTTLCache[domain.Payment](clk))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Get(ctx, "pay_1")
			assert.NoError(t, err)
			assert.Equal(t, "pay_1", p.ID)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.LessOrEqual(t, f.callCount(), 5)
	assert.GreaterOrEqual(t, f.callCount(), 1)
}
