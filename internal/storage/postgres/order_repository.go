package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository stores orders with their status history and invoices.
type OrderRepository struct {
	db
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const orderColumns = `
entity_id, increment_id, state, status, grand_total, total_paid, currency, email_sent,
monei_payment_id, monei_save_tokenization, payment_method, last_transaction_id, payment_info,
created_at, updated_at`

// GetByIncrementID loads the order, locking its row when called inside a
// transaction. It returns nil, nil when the order does not exist.
func (r *OrderRepository) GetByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE increment_id = $1`
	if txFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}
	return r.load(ctx, query, incrementID)
}

// Get loads an order by entity id. It returns nil, nil when missing.
func (r *OrderRepository) Get(ctx context.Context, entityID int64) (*domain.Order, error) {
	return r.load(ctx, `SELECT `+orderColumns+` FROM orders WHERE entity_id = $1`, entityID)
}

func (r *OrderRepository) load(ctx context.Context, query string, arg any) (*domain.Order, error) {
	var o domain.Order
	err := r.queryRow(ctx, query, arg).Scan(
		&o.EntityID, &o.IncrementID, &o.State, &o.Status, &o.GrandTotal, &o.TotalPaid, &o.Currency, &o.EmailSent,
		&o.MoneiPaymentID, &o.MoneiSaveTokenization, &o.Payment.Method, &o.Payment.LastTransactionID, &o.Payment.AdditionalInfo,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if o.History, err = r.history(ctx, o.EntityID); err != nil {
		return nil, err
	}
	if o.Invoices, err = r.invoices(ctx, o.EntityID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) history(ctx context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	rows, err := r.query(ctx, `
SELECT id::text, comment, status, is_customer_notified, created_at
FROM order_status_history
WHERE order_id = $1
ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HistoryEntry, error) {
		var h domain.HistoryEntry
		err := row.Scan(&h.ID, &h.Comment, &h.Status, &h.IsCustomerNotified, &h.CreatedAt)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return entries, nil
}

func (r *OrderRepository) invoices(ctx context.Context, orderID int64) ([]domain.Invoice, error) {
	rows, err := r.query(ctx, `
SELECT id::text, order_id, amount, currency, transaction_id, created_at
FROM invoices
WHERE order_id = $1
ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	invoices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Invoice, error) {
		var inv domain.Invoice
		err := row.Scan(&inv.ID, &inv.OrderID, &inv.Amount, &inv.Currency, &inv.TransactionID, &inv.CreatedAt)
		return inv, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan invoices: %w", err)
	}
	return invoices, nil
}

// Save writes the order row and upserts its history and invoices in one
// transaction. New history entries get their ids assigned here.
func (r *OrderRepository) Save(ctx context.Context, o *domain.Order) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		info := o.Payment.AdditionalInfo
		if info == nil {
			info = map[string]string{}
		}
		tag, err := r.exec(ctx, `
UPDATE orders SET
	state = $2,
	status = $3,
	total_paid = $4,
	email_sent = $5,
	monei_payment_id = $6,
	monei_save_tokenization = $7,
	payment_method = $8,
	last_transaction_id = $9,
	payment_info = $10,
	updated_at = NOW()
WHERE entity_id = $1`,
			o.EntityID, o.State, o.Status, o.TotalPaid, o.EmailSent,
			o.MoneiPaymentID, o.MoneiSaveTokenization, o.Payment.Method, o.Payment.LastTransactionID, info,
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrOrderNotFound
		}

		for i := range o.History {
			h := &o.History[i]
			if h.ID == "" {
				h.ID = uuid.NewString()
			}
			if _, err := r.exec(ctx, `
INSERT INTO order_status_history (id, order_id, comment, status, is_customer_notified, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET is_customer_notified = EXCLUDED.is_customer_notified`,
				h.ID, o.EntityID, h.Comment, h.Status, h.IsCustomerNotified, h.CreatedAt,
			); err != nil {
				if isInvalidUUID(err) {
					return domain.ErrInvalidID
				}
				return fmt.Errorf("save history: %w", err)
			}
		}

		for _, inv := range o.Invoices {
			if _, err := r.exec(ctx, `
INSERT INTO invoices (id, order_id, amount, currency, transaction_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`,
				inv.ID, o.EntityID, inv.Amount, inv.Currency, inv.TransactionID, inv.CreatedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("save invoice: duplicate transaction %s: %w", inv.TransactionID, err)
				}
				return fmt.Errorf("save invoice: %w", err)
			}
		}
		return nil
	})
}

func (r *OrderRepository) MarkHistoryNotified(ctx context.Context, orderID int64, entryID string) error {
	if _, err := uuid.Parse(entryID); err != nil {
		return domain.ErrInvalidID
	}
	tag, err := r.exec(ctx,
		`UPDATE order_status_history SET is_customer_notified = TRUE WHERE order_id = $1 AND id = $2`,
		orderID, entryID,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("mark history notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark history notified: entry %s not found", entryID)
	}
	return nil
}
