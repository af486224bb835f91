package app

import (
	"context"
	"fmt"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/money"
	"github.com/google/uuid"
)

// OrderInvoicer captures a payment as an invoice on the order aggregate.
// The invoice is persisted with the order when it is saved.
type OrderInvoicer struct {
	clock clock.Clock
}

func NewOrderInvoicer(clk clock.Clock) *OrderInvoicer {
	return &OrderInvoicer{clock: clk}
}

func (i *OrderInvoicer) GenerateInvoice(_ context.Context, o *domain.Order, p domain.Payment) (*domain.Invoice, error) {
	for _, inv := range o.Invoices {
		if inv.TransactionID == p.ID {
			return nil, nil
		}
	}

	amount := p.Amount
	if due := o.AmountDue(); o.GrandTotal > 0 && amount > due {
		amount = due
	}
	if amount <= 0 && o.GrandTotal > 0 {
		return nil, fmt.Errorf("%w: nothing to capture", domain.ErrInvalidAmount)
	}
	currency := p.Currency
	if currency == "" {
		currency = o.Currency
	}

	now := i.clock.Now()
	inv := domain.Invoice{
		ID:            uuid.NewString(),
		OrderID:       o.EntityID,
		Amount:        amount,
		Currency:      currency,
		TransactionID: p.ID,
		CreatedAt:     now,
	}
	o.Invoices = append(o.Invoices, inv)
	o.TotalPaid += amount

	o.AddHistory(fmt.Sprintf("Captured amount of %s online. Transaction ID: %q", money.Format(amount, currency), p.ID), false, now)
	return &inv, nil
}
