package lock

import (
	"context"
	"sync"
	"time"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/domain"
)

// MemoryBackend keeps leases in process memory. Managers sharing one
// MemoryBackend behave like separate workers sharing a lock service.
type MemoryBackend struct {
	clock clock.Clock

	mu     sync.Mutex
	leases map[string]domain.Lease
}

func NewMemoryBackend(clk clock.Clock) *MemoryBackend {
	return &MemoryBackend{
		clock:  clk,
		leases: make(map[string]domain.Lease),
	}
}

func (b *MemoryBackend) Lock(_ context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.leases[name]; ok && l.Live(now) {
		return false, nil
	}
	b.leases[name] = domain.Lease{
		Name:      name,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return true, nil
}

func (b *MemoryBackend) Unlock(_ context.Context, name, owner string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.leases[name]
	if !ok || l.Owner != owner {
		return false, nil
	}
	delete(b.leases, name)
	return true, nil
}

func (b *MemoryBackend) IsLocked(_ context.Context, name string) (bool, error) {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.leases[name]
	return ok && l.Live(now), nil
}

func (b *MemoryBackend) Owner(_ context.Context, name string) (string, error) {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	if l, ok := b.leases[name]; ok && l.Live(now) {
		return l.Owner, nil
	}
	return "", nil
}
