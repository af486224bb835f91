package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/cimillas/monei-reconciler/internal/app"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"go.uber.org/zap"
)

// PaymentGetter reads the current payment from MONEI.
type PaymentGetter interface {
	GetFresh(ctx context.Context, id string) (domain.Payment, error)
}

// ProcessingWaiter blocks until in-flight reconciliation of a payment ends.
type ProcessingWaiter interface {
	WaitForProcessing(ctx context.Context, orderID, paymentID string) bool
}

// HandleComplete returns an HTTP handler for the customer's return from the
// MONEI payment page. It waits for a racing callback before reconciling so
// the customer sees the settled order.
func HandleComplete(payments PaymentGetter, waiter ProcessingWaiter, svc PaymentReconciler, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		paymentID := strings.TrimSpace(q.Get("id"))
		if paymentID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "id is required")
			return
		}
		orderID := strings.TrimSpace(q.Get("orderId"))

		p, err := payments.GetFresh(r.Context(), paymentID)
		if err != nil {
			logger.Error("fetch payment failed", zap.String("payment_id", paymentID), zap.Error(err))
			writeAPIError(w, err)
			return
		}
		if orderID != "" && orderID != p.OrderID {
			logger.Warn("payment does not match order",
				zap.String("payment_id", paymentID),
				zap.String("order_id", orderID),
				zap.String("payment_order_id", p.OrderID),
			)
			writeError(w, http.StatusBadRequest, codeOrderMismatch, domain.ErrOrderMismatch.Error())
			return
		}

		if !waiter.WaitForProcessing(r.Context(), p.OrderID, p.ID) {
			logger.Warn("payment still processing after wait",
				zap.String("order_id", p.OrderID),
				zap.String("payment_id", p.ID),
			)
		}

		res, err := svc.Reconcile(r.Context(), p)
		if err != nil {
			writeReconcileError(w, err)
			return
		}

		status := http.StatusOK
		switch res.Outcome {
		case app.OutcomeLocked:
			status = http.StatusAccepted
		case app.OutcomeNotFound:
			writeError(w, http.StatusNotFound, codeOrderNotFound, res.Reason)
			return
		}
		writeJSON(w, status, newReconcileResponse(res))
	}
}
