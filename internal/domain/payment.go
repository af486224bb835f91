package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Payment is a read-only snapshot of a MONEI payment.
// Construct it with NewPaymentFromMap or monei.Payment.ToDomain; never mutate it.
type Payment struct {
	ID            string
	OrderID       string
	Status        PaymentStatus
	Amount        int64
	Currency      string
	StatusCode    string
	StatusMessage string
	PaymentToken  string
	Method        PaymentMethod
	CreatedAt     time.Time
	UpdatedAt     time.Time

	raw map[string]any
}

// PaymentMethod describes how the customer paid.
type PaymentMethod struct {
	Method     string
	CardBrand  string
	CardLast4  string
	Expiration int64
}

// GetStatusCode lets a Payment act as an embedded original payment in raw data.
func (p Payment) GetStatusCode() string { return p.StatusCode }

// RawData returns a copy of the payload the payment was built from.
func (p Payment) RawData() map[string]any {
	return copyMap(p.raw)
}

// WithRaw returns a copy of p carrying raw as its audit payload.
func (p Payment) WithRaw(raw map[string]any) Payment {
	p.raw = copyMap(raw)
	return p
}

// NewPaymentFromMap builds a Payment from a decoded webhook or API payload.
// statusCode is resolved by extract, which implements the key fallback chain.
func NewPaymentFromMap(data map[string]any, extract func(map[string]any) string) (Payment, error) {
	var missing []string
	id := stringField(data, "id")
	if id == "" {
		missing = append(missing, "id")
	}
	status := stringField(data, "status")
	if status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return Payment{}, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ","))
	}

	amount, err := int64Field(data, "amount")
	if err != nil {
		return Payment{}, err
	}

	p := Payment{
		ID:            id,
		OrderID:       stringField(data, "orderId"),
		Status:        ParseStatus(status),
		Amount:        amount,
		Currency:      strings.ToUpper(stringField(data, "currency")),
		StatusMessage: stringField(data, "statusMessage"),
		PaymentToken:  stringField(data, "paymentToken"),
		CreatedAt:     timeField(data, "createdAt"),
		UpdatedAt:     timeField(data, "updatedAt"),
		raw:           copyMap(data),
	}
	if extract != nil {
		p.StatusCode = extract(data)
	} else {
		p.StatusCode = stringField(data, "statusCode")
	}
	if pm, ok := data["paymentMethod"].(map[string]any); ok {
		p.Method.Method = stringField(pm, "method")
		if card, ok := pm["card"].(map[string]any); ok {
			p.Method.CardBrand = stringField(card, "brand")
			p.Method.CardLast4 = stringField(card, "last4")
			p.Method.Expiration, _ = int64Field(card, "expiration")
		}
	}
	return p, nil
}

// PayloadKeys lists the top-level keys of data for logging without values.
func PayloadKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return keys
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

func int64Field(m map[string]any, key string) (int64, error) {
	switch v := m[key].(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidAmount, key)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, key)
		}
		return n, nil
	case string:
		if v == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, key)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, key)
}

// timeField accepts unix seconds or RFC 3339.
func timeField(m map[string]any, key string) time.Time {
	if s, ok := m[key].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
	}
	if n, err := int64Field(m, key); err == nil && n > 0 {
		return time.Unix(n, 0).UTC()
	}
	return time.Time{}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = copyMap(nested)
		}
		out[k] = v
	}
	return out
}
