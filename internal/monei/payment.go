package monei

import (
	"strings"
	"time"

	"github.com/cimillas/monei-reconciler/internal/domain"
)

// Payment is the MONEI API payment object.
type Payment struct {
	ID            string         `json:"id"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	OrderID       string         `json:"orderId"`
	Status        string         `json:"status"`
	StatusCode    string         `json:"statusCode"`
	StatusMessage string         `json:"statusMessage"`
	PaymentToken  string         `json:"paymentToken"`
	PaymentMethod *PaymentMethod `json:"paymentMethod,omitempty"`
	CreatedAt     int64          `json:"createdAt"`
	UpdatedAt     int64          `json:"updatedAt"`
}

type PaymentMethod struct {
	Method string `json:"method"`
	Card   *Card  `json:"card,omitempty"`
}

type Card struct {
	Brand      string `json:"brand"`
	Last4      string `json:"last4"`
	Expiration int64  `json:"expiration"`
}

// GetStatusCode lets an API payment sit in raw data as the original payment.
func (p Payment) GetStatusCode() string { return p.StatusCode }

// ToDomain projects the API object onto a domain.Payment carrying raw as
// its audit payload.
func (p Payment) ToDomain(raw map[string]any) domain.Payment {
	out := domain.Payment{
		ID:            p.ID,
		OrderID:       p.OrderID,
		Status:        domain.ParseStatus(p.Status),
		Amount:        p.Amount,
		Currency:      strings.ToUpper(p.Currency),
		StatusCode:    p.StatusCode,
		StatusMessage: p.StatusMessage,
		PaymentToken:  p.PaymentToken,
		CreatedAt:     unix(p.CreatedAt),
		UpdatedAt:     unix(p.UpdatedAt),
	}
	if p.PaymentMethod != nil {
		out.Method.Method = p.PaymentMethod.Method
		if c := p.PaymentMethod.Card; c != nil {
			out.Method.CardBrand = c.Brand
			out.Method.CardLast4 = c.Last4
			out.Method.Expiration = c.Expiration
		}
	}
	return out.WithRaw(raw)
}

func unix(s int64) time.Time {
	if s <= 0 {
		return time.Time{}
	}
	return time.Unix(s, 0).UTC()
}
