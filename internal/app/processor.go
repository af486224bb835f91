package app

import (
	"context"
	"time"

	"github.com/cimillas/monei-reconciler/internal/lock"
	"go.uber.org/zap"
)

const (
	defaultProcessingWait = 15 * time.Second
	defaultProcessingPoll = 200 * time.Millisecond
	defaultUnlockWait     = 30 * time.Second
	defaultUnlockPoll     = 100 * time.Millisecond
)

// OrderProcessor runs reconciliation callbacks under the order lock and then
// the order/payment lock, always releasing both.
type OrderProcessor struct {
	locks  *lock.Manager
	logger *zap.Logger

	lockTTL        time.Duration
	processingWait time.Duration
	processingPoll time.Duration
	unlockWait     time.Duration
	unlockPoll     time.Duration
}

type ProcessorOption func(*OrderProcessor)

// WithLockTTL sets the lease length for both locks.
func WithLockTTL(d time.Duration) ProcessorOption {
	return func(p *OrderProcessor) {
		if d > 0 {
			p.lockTTL = d
		}
	}
}

// WithProcessingWait bounds WaitForProcessing.
func WithProcessingWait(timeout, poll time.Duration) ProcessorOption {
	return func(p *OrderProcessor) {
		if timeout > 0 {
			p.processingWait = timeout
		}
		if poll > 0 {
			p.processingPoll = poll
		}
	}
}

// WithUnlockWait bounds WaitForPaymentUnlock.
func WithUnlockWait(timeout, poll time.Duration) ProcessorOption {
	return func(p *OrderProcessor) {
		if timeout > 0 {
			p.unlockWait = timeout
		}
		if poll > 0 {
			p.unlockPoll = poll
		}
	}
}

func WithProcessorLogger(l *zap.Logger) ProcessorOption {
	return func(p *OrderProcessor) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewOrderProcessor(locks *lock.Manager, opts ...ProcessorOption) *OrderProcessor {
	p := &OrderProcessor{
		locks:          locks,
		logger:         zap.NewNop(),
		lockTTL:        lock.DefaultTTL,
		processingWait: defaultProcessingWait,
		processingPoll: defaultProcessingPoll,
		unlockWait:     defaultUnlockWait,
		unlockPoll:     defaultUnlockPoll,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsProcessing reports whether another worker holds the order or the
// payment lock. The answer is stale as soon as it is returned.
func (p *OrderProcessor) IsProcessing(ctx context.Context, orderID, paymentID string) bool {
	if p.locks.IsLocked(ctx, lock.OrderLockName(orderID)) {
		return true
	}
	return paymentID != "" && p.locks.IsLocked(ctx, lock.PaymentLockName(orderID, paymentID))
}

// Process runs fn holding the order lock, then the payment lock. A busy
// order is reported as OutcomeLocked without trying to acquire anything.
func (p *OrderProcessor) Process(ctx context.Context, orderID, paymentID string, fn func(ctx context.Context) (Result, error)) (Result, error) {
	locked := Result{
		Outcome:   OutcomeLocked,
		Reason:    ReasonAlreadyProcessing,
		OrderID:   orderID,
		PaymentID: paymentID,
	}
	if p.IsProcessing(ctx, orderID, paymentID) {
		p.logger.Info("order already processing",
			zap.String("order_id", orderID), zap.String("payment_id", paymentID))
		return locked, nil
	}

	res, err := lock.ExecuteWithLock(ctx, p.locks, lock.OrderLockName(orderID), p.lockTTL, func(ctx context.Context) (Result, error) {
		return lock.ExecuteWithLock(ctx, p.locks, lock.PaymentLockName(orderID, paymentID), p.lockTTL, fn)
	})
	if lock.IsContention(err) {
		p.logger.Warn("order lock contention",
			zap.String("order_id", orderID), zap.String("payment_id", paymentID))
		return locked, nil
	}
	return res, err
}

// WaitForProcessing blocks until neither lock is held or the processing wait
// elapses. It returns true when the order is free.
func (p *OrderProcessor) WaitForProcessing(ctx context.Context, orderID, paymentID string) bool {
	if !p.locks.WaitForUnlock(ctx, lock.OrderLockName(orderID), p.processingWait, p.processingPoll) {
		return false
	}
	if paymentID == "" {
		return true
	}
	return p.locks.WaitForUnlock(ctx, lock.PaymentLockName(orderID, paymentID), p.processingWait, p.processingPoll)
}

// WaitForPaymentUnlock blocks until the order/payment lock is free or the
// unlock wait elapses.
func (p *OrderProcessor) WaitForPaymentUnlock(ctx context.Context, orderID, paymentID string) bool {
	return p.locks.WaitForUnlock(ctx, lock.PaymentLockName(orderID, paymentID), p.unlockWait, p.unlockPoll)
}
