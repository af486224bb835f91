package app

import (
	"context"
	"time"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/google/uuid"
)

// VaultStore persists card tokens. SaveToken reports false when a token for
// the payment already exists.
type VaultStore interface {
	SaveToken(ctx context.Context, token domain.VaultToken) (bool, error)
}

// TokenVault turns a tokenized payment into a stored vault token.
type TokenVault struct {
	store VaultStore
	clock clock.Clock
}

func NewTokenVault(store VaultStore, clk clock.Clock) *TokenVault {
	return &TokenVault{store: store, clock: clk}
}

func (v *TokenVault) CreateVaultToken(ctx context.Context, paymentID string, o *domain.Order, p domain.Payment) (bool, error) {
	if p.PaymentToken == "" {
		return false, nil
	}
	t := domain.VaultToken{
		ID:        uuid.NewString(),
		OrderID:   o.EntityID,
		PaymentID: paymentID,
		Token:     p.PaymentToken,
		Method:    p.Method.Method,
		CardBrand: p.Method.CardBrand,
		CardLast4: p.Method.CardLast4,
		CreatedAt: v.clock.Now(),
	}
	if p.Method.Expiration > 0 {
		exp := time.Unix(p.Method.Expiration, 0).UTC()
		t.ExpiresAt = &exp
	}
	return v.store.SaveToken(ctx, t)
}
