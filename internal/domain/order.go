package domain

import (
	"sort"
	"time"
)

// OrderState is the coarse order lifecycle.
type OrderState string

const (
	OrderStateNew            OrderState = "new"
	OrderStatePendingPayment OrderState = "pending_payment"
	OrderStateProcessing     OrderState = "processing"
	OrderStateCanceled       OrderState = "canceled"
	OrderStateClosed         OrderState = "closed"
	OrderStateComplete       OrderState = "complete"
)

// Order is the commerce order as seen by the reconciler.
// Amounts are minor currency units.
type Order struct {
	EntityID    int64
	IncrementID string
	State       OrderState
	Status      string
	GrandTotal  int64
	TotalPaid   int64
	Currency    string
	EmailSent   bool

	MoneiPaymentID        string
	MoneiSaveTokenization bool

	Payment  OrderPayment
	History  []HistoryEntry
	Invoices []Invoice

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderPayment holds the payment method data attached to an order.
type OrderPayment struct {
	Method            string
	LastTransactionID string
	AdditionalInfo    map[string]string
}

// HistoryEntry is one status-history comment on an order.
// ID is empty until the entry is persisted.
type HistoryEntry struct {
	ID                 string
	Comment            string
	Status             string
	IsCustomerNotified bool
	CreatedAt          time.Time
}

// Invoice records a captured amount.
type Invoice struct {
	ID            string
	OrderID       int64
	Amount        int64
	Currency      string
	TransactionID string
	CreatedAt     time.Time
}

// AmountDue is what is left to pay.
func (o *Order) AmountDue() int64 {
	due := o.GrandTotal - o.TotalPaid
	if due < 0 {
		return 0
	}
	return due
}

// AddHistory appends a comment tagged with the order's current status.
func (o *Order) AddHistory(comment string, notified bool, at time.Time) {
	o.History = append(o.History, HistoryEntry{
		Comment:            comment,
		Status:             o.Status,
		IsCustomerNotified: notified,
		CreatedAt:          at,
	})
}

// HistoryNewestFirst returns indexes into History sorted by CreatedAt descending.
// Entries with equal timestamps keep insertion order reversed.
func (o *Order) HistoryNewestFirst() []int {
	idx := make([]int, len(o.History))
	for i := range idx {
		idx[i] = len(o.History) - 1 - i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return o.History[idx[a]].CreatedAt.After(o.History[idx[b]].CreatedAt)
	})
	return idx
}

// Clone returns a deep copy so callers can compare before/after.
func (o Order) Clone() Order {
	c := o
	if o.Payment.AdditionalInfo != nil {
		c.Payment.AdditionalInfo = make(map[string]string, len(o.Payment.AdditionalInfo))
		for k, v := range o.Payment.AdditionalInfo {
			c.Payment.AdditionalInfo[k] = v
		}
	}
	c.History = append([]HistoryEntry(nil), o.History...)
	c.Invoices = append([]Invoice(nil), o.Invoices...)
	return c
}
