package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/statuscode"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PaymentLookup reads a payment, serving settled payments from cache.
type PaymentLookup interface {
	Get(ctx context.Context, id string) (domain.Payment, error)
}

type paymentStatusResponse struct {
	PaymentID     string `json:"payment_id"`
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	Final         bool   `json:"final"`
	StatusCode    string `json:"status_code,omitempty"`
	StatusMessage string `json:"status_message,omitempty"`
}

// HandlePaymentStatus returns a read-only handler the checkout page polls
// while a payment settles. It never touches the order.
func HandlePaymentStatus(payments PaymentLookup, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		if id == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "id is required")
			return
		}

		p, err := payments.Get(r.Context(), id)
		if err != nil {
			logger.Warn("payment lookup failed", zap.String("payment_id", id), zap.Error(err))
			writeAPIError(w, err)
			return
		}

		resp := paymentStatusResponse{
			PaymentID:  p.ID,
			OrderID:    p.OrderID,
			Status:     string(p.Status),
			Final:      domain.IsFinalStatus(p.Status),
			StatusCode: p.StatusCode,
		}
		if p.StatusCode != "" {
			resp.StatusMessage = statuscode.Message(p.StatusCode)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
