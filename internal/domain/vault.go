package domain

import "time"

// VaultToken is a stored card token that lets the customer pay again
// without re-entering card details.
type VaultToken struct {
	ID        string
	OrderID   int64
	PaymentID string
	Token     string
	Method    string
	CardBrand string
	CardLast4 string
	ExpiresAt *time.Time
	CreatedAt time.Time
}
