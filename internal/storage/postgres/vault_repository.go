package postgres

import (
	"context"
	"fmt"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VaultRepository struct {
	db
}

func NewVaultRepository(pool *pgxpool.Pool) *VaultRepository {
	return &VaultRepository{db{pool: pool}}
}

// SaveToken stores t once per payment. It returns false when the payment
// already has a token.
func (r *VaultRepository) SaveToken(ctx context.Context, t domain.VaultToken) (bool, error) {
	tag, err := r.exec(ctx, `
INSERT INTO vault_tokens (id, order_id, payment_id, token, method, card_brand, card_last4, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (payment_id) DO NOTHING`,
		t.ID, t.OrderID, t.PaymentID, t.Token, t.Method, t.CardBrand, t.CardLast4, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("save vault token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByOrder returns the tokens stored for an order.
func (r *VaultRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.VaultToken, error) {
	rows, err := r.query(ctx, `
SELECT id::text, order_id, payment_id, token, method, card_brand, card_last4, expires_at, created_at
FROM vault_tokens
WHERE order_id = $1
ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list vault tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.VaultToken
	for rows.Next() {
		var t domain.VaultToken
		if err := rows.Scan(&t.ID, &t.OrderID, &t.PaymentID, &t.Token, &t.Method, &t.CardBrand, &t.CardLast4, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vault token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vault tokens: %w", err)
	}
	return out, nil
}
