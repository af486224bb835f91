package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/lock"
	"github.com/cimillas/monei-reconciler/internal/testutil"
)

func TestLockBackend(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("lease excludes other owners until released", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		b := NewLockBackend(pool, clock.NewSystem())

		ok, err := b.Lock(ctx, "order_1", "a", time.Minute)
		if err != nil || !ok {
			t.Fatalf("expected lock acquired, got %v %v", ok, err)
		}
		ok, err = b.Lock(ctx, "order_1", "b", time.Minute)
		if err != nil || ok {
			t.Fatalf("expected contention, got %v %v", ok, err)
		}
		if owner, _ := b.Owner(ctx, "order_1"); owner != "a" {
			t.Fatalf("expected owner a, got %q", owner)
		}
		if ok, _ := b.Unlock(ctx, "order_1", "b"); ok {
			t.Fatalf("expected foreign unlock to fail")
		}
		if ok, _ := b.Unlock(ctx, "order_1", "a"); !ok {
			t.Fatalf("expected unlock to succeed")
		}
		if locked, _ := b.IsLocked(ctx, "order_1"); locked {
			t.Fatalf("expected lock released")
		}
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clk := clock.NewFixed(time.Now())
		b := NewLockBackend(pool, clk)

		if ok, _ := b.Lock(ctx, "order_2", "a", time.Second); !ok {
			t.Fatalf("expected lock acquired")
		}
		clk.Advance(2 * time.Second)
		if locked, _ := b.IsLocked(ctx, "order_2"); locked {
			t.Fatalf("expected lease expired")
		}
		if ok, _ := b.Lock(ctx, "order_2", "b", time.Minute); !ok {
			t.Fatalf("expected takeover")
		}
		n, err := b.PurgeExpired(ctx)
		if err != nil {
			t.Fatalf("purge: %v", err)
		}
		if n != 0 {
			t.Fatalf("expected nothing to purge, got %d", n)
		}
	})

	t.Run("manager on postgres backend", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clk := clock.NewSystem()
		backend := NewLockBackend(pool, clk)
		a := lock.NewManager(backend, clk)
		b := lock.NewManager(backend, clk)

		_, err := lock.ExecuteWithLock(ctx, a, "order_3", time.Minute, func(ctx context.Context) (int, error) {
			if b.Lock(ctx, "order_3", time.Minute) {
				t.Fatalf("expected second worker to be excluded")
			}
			return 0, nil
		})
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if a.IsLocked(ctx, "order_3") {
			t.Fatalf("expected lock released")
		}
	})
}
