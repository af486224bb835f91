package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LockBackend keeps named leases in the lock_leases table. An expired lease
// can be taken over by the next caller. Leases never join the caller's
// transaction.
type LockBackend struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

func NewLockBackend(pool *pgxpool.Pool, clk clock.Clock) *LockBackend {
	return &LockBackend{pool: pool, clock: clk}
}

func (b *LockBackend) Lock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	now := b.clock.Now()
	tag, err := b.pool.Exec(ctx, `
INSERT INTO lock_leases (name, owner, expires_at, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE
SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at
WHERE lock_leases.expires_at <= $4`,
		name, owner, now.Add(ttl), now,
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (b *LockBackend) Unlock(ctx context.Context, name, owner string) (bool, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM lock_leases WHERE name = $1 AND owner = $2`, name, owner)
	if err != nil {
		return false, fmt.Errorf("release lease %s: %w", name, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (b *LockBackend) IsLocked(ctx context.Context, name string) (bool, error) {
	var locked bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lock_leases WHERE name = $1 AND expires_at > $2)`,
		name, b.clock.Now(),
	).Scan(&locked)
	if err != nil {
		return false, fmt.Errorf("check lease %s: %w", name, err)
	}
	return locked, nil
}

// Owner returns the holder of a live lease, or "" when there is none.
func (b *LockBackend) Owner(ctx context.Context, name string) (string, error) {
	var owner string
	err := b.pool.QueryRow(ctx,
		`SELECT owner FROM lock_leases WHERE name = $1 AND expires_at > $2`,
		name, b.clock.Now(),
	).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("lease owner %s: %w", name, err)
	}
	return owner, nil
}

// PurgeExpired deletes lapsed leases and returns how many were removed.
func (b *LockBackend) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM lock_leases WHERE expires_at <= $1`, b.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge leases: %w", err)
	}
	return tag.RowsAffected(), nil
}
