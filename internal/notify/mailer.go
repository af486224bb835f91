// Package notify delivers customer notifications for reconciled orders.
package notify

import (
	"context"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/money"
	"go.uber.org/zap"
)

// LogMailer records order confirmation emails in the log instead of sending
// them. It stands in for the store's mail transport.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOrderEmail(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("order email sent",
		zap.String("order_id", order.IncrementID),
		zap.String("status", order.Status),
		zap.String("total", money.Format(order.GrandTotal, order.Currency)),
	)
	return nil
}
