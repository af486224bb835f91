// Package lock provides named mutual exclusion over a pluggable backend.
//
// Acquisition is fail-fast: Lock returns false when another holder owns the
// name. Release is retried a bounded number of times because some backends
// report a lock as still held right after it was released.
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	orderPrefix   = "order_"
	paymentPrefix = "payment_"

	DefaultTTL             = 300 * time.Second
	DefaultReleaseAttempts = 3
	DefaultPollInterval    = 100 * time.Millisecond
)

// Backend is the locking capability. owner identifies one acquisition so a
// backend never releases a lock taken by someone else.
type Backend interface {
	Lock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name, owner string) (bool, error)
	IsLocked(ctx context.Context, name string) (bool, error)
}

// OrderLockName is the per-order lock.
func OrderLockName(incrementID string) string {
	return orderPrefix + incrementID
}

// PaymentLockName is the per order/payment pair lock.
func PaymentLockName(orderID, paymentID string) string {
	return paymentPrefix + orderID + "_" + paymentID
}

type Manager struct {
	backend         Backend
	clock           clock.Clock
	logger          *zap.Logger
	ttl             time.Duration
	releaseAttempts int

	mu     sync.Mutex
	tokens map[string]string
}

type Option func(*Manager)

// WithTTL overrides the default lease length used when Lock gets no timeout.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithReleaseAttempts bounds the unlock retry loop.
func WithReleaseAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.releaseAttempts = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewManager(backend Backend, clk clock.Clock, opts ...Option) *Manager {
	m := &Manager{
		backend:         backend,
		clock:           clk,
		logger:          zap.NewNop(),
		ttl:             DefaultTTL,
		releaseAttempts: DefaultReleaseAttempts,
		tokens:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lock tries once to acquire name for timeout (the default TTL when zero).
// It returns false on contention and on backend failure.
func (m *Manager) Lock(ctx context.Context, name string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = m.ttl
	}
	m.mu.Lock()
	if _, held := m.tokens[name]; held {
		m.mu.Unlock()
		return false
	}
	token := uuid.NewString()
	m.tokens[name] = token
	m.mu.Unlock()

	ok, err := m.backend.Lock(ctx, name, token, timeout)
	if err != nil {
		m.logger.Warn("lock backend failure", zap.String("lock", name), zap.Error(err))
	}
	if err != nil || !ok {
		m.forget(name, token)
		return false
	}
	return true
}

// Unlock releases a lock taken through this manager. It returns false when
// the name is not held here or is still held after the retry bound.
func (m *Manager) Unlock(ctx context.Context, name string) bool {
	m.mu.Lock()
	token, held := m.tokens[name]
	m.mu.Unlock()
	if !held {
		return false
	}

	released := false
	for attempt := 1; attempt <= m.releaseAttempts; attempt++ {
		ok, err := m.backend.Unlock(ctx, name, token)
		if err != nil {
			m.logger.Warn("unlock backend failure",
				zap.String("lock", name), zap.Int("attempt", attempt), zap.Error(err))
		}
		released = released || ok

		locked, err := m.backend.IsLocked(ctx, name)
		if err == nil && !locked {
			m.forget(name, token)
			return released
		}
		if m.takenOver(ctx, name, token) {
			m.forget(name, token)
			return released
		}
	}

	m.logger.Warn("lock still held after release attempts",
		zap.String("lock", name), zap.Int("attempts", m.releaseAttempts))
	m.forget(name, token)
	return false
}

// OwnerReader is implemented by backends that can report the current holder.
type OwnerReader interface {
	Owner(ctx context.Context, name string) (string, error)
}

// takenOver reports whether our lease expired and another owner holds name.
func (m *Manager) takenOver(ctx context.Context, name, token string) bool {
	or, ok := m.backend.(OwnerReader)
	if !ok {
		return false
	}
	owner, err := or.Owner(ctx, name)
	if err != nil {
		return false
	}
	return owner != "" && owner != token
}

// IsLocked is a point-in-time check. A false result does not guarantee that
// a following Lock succeeds.
func (m *Manager) IsLocked(ctx context.Context, name string) bool {
	locked, err := m.backend.IsLocked(ctx, name)
	if err != nil {
		m.logger.Warn("is-locked backend failure", zap.String("lock", name), zap.Error(err))
		return false
	}
	return locked
}

// WaitForUnlock polls until name is free or timeout elapses on the manager's
// clock. Backend errors count as still locked.
func (m *Manager) WaitForUnlock(ctx context.Context, name string, timeout, poll time.Duration) bool {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	deadline := m.clock.Now().Add(timeout)
	for {
		locked, err := m.backend.IsLocked(ctx, name)
		if err == nil && !locked {
			return true
		}
		if !m.clock.Now().Before(deadline) {
			return false
		}
		if err := m.clock.Sleep(ctx, poll); err != nil {
			return false
		}
	}
}

func (m *Manager) forget(name, token string) {
	m.mu.Lock()
	if m.tokens[name] == token {
		delete(m.tokens, name)
	}
	m.mu.Unlock()
}

type heldKey struct{}

func heldFromContext(ctx context.Context) []string {
	held, _ := ctx.Value(heldKey{}).([]string)
	return held
}

// Held returns the lock names acquired by ExecuteWithLock along ctx.
func Held(ctx context.Context) []string {
	return append([]string(nil), heldFromContext(ctx)...)
}

func checkOrdering(ctx context.Context, name string) error {
	if !strings.HasPrefix(name, orderPrefix) {
		return nil
	}
	for _, h := range heldFromContext(ctx) {
		if strings.HasPrefix(h, paymentPrefix) {
			return domain.ErrLockOrder
		}
	}
	return nil
}

// ExecuteWithLock runs fn while holding name and always releases it, also
// when fn panics. An order lock may not be taken inside a payment lock.
// Re-entering a lock already held along ctx runs fn directly.
func ExecuteWithLock[T any](ctx context.Context, m *Manager, name string, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	held := heldFromContext(ctx)
	for _, h := range held {
		if h == name {
			return fn(ctx)
		}
	}
	if err := checkOrdering(ctx, name); err != nil {
		return zero, err
	}
	if !m.Lock(ctx, name, timeout) {
		return zero, domain.E(domain.KindContention, name, domain.ErrLockNotAcquired)
	}
	defer func() {
		if !m.Unlock(context.WithoutCancel(ctx), name) {
			m.logger.Warn("lock release failed", zap.String("lock", name))
		}
	}()

	next := append(append([]string(nil), held...), name)
	return fn(context.WithValue(ctx, heldKey{}, next))
}

// IsContention reports whether err means a lock was busy.
func IsContention(err error) bool {
	return errors.Is(err, domain.ErrLockNotAcquired)
}
