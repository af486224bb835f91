package http

import (
	"context"
	"sync"

	"github.com/cimillas/monei-reconciler/internal/app"
	"github.com/cimillas/monei-reconciler/internal/domain"
)

type fakeReconciler struct {
	mu     sync.Mutex
	res    app.Result
	err    error
	called []domain.Payment
}

func (f *fakeReconciler) Reconcile(_ context.Context, p domain.Payment) (app.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, p)
	res := f.res
	if res.PaymentID == "" {
		res.PaymentID = p.ID
		res.OrderID = p.OrderID
		res.Status = p.Status
	}
	return res, f.err
}

func (f *fakeReconciler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.called)
}

type fakeGetter struct {
	payment domain.Payment
	err     error
}

func (f fakeGetter) GetFresh(context.Context, string) (domain.Payment, error) {
	return f.payment, f.err
}

type fakeWaiter struct {
	done   bool
	waited bool
}

func (f *fakeWaiter) WaitForProcessing(context.Context, string, string) bool {
	f.waited = true
	return f.done
}

type fakeInvalidator struct {
	ids []string
}

func (f *fakeInvalidator) Invalidate(id string) { f.ids = append(f.ids, id) }
