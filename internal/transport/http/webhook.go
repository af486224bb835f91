package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cimillas/monei-reconciler/internal/app"
	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/monei"
	"go.uber.org/zap"
)

const maxCallbackBody = 1 << 20

// PaymentReconciler is the minimal interface needed to apply a payment.
type PaymentReconciler interface {
	Reconcile(ctx context.Context, p domain.Payment) (app.Result, error)
}

// PaymentInvalidator drops a cached payment after a state change.
type PaymentInvalidator interface {
	Invalidate(id string)
}

type CallbackConfig struct {
	// Secret enables MONEI-Signature verification when non-empty.
	Secret    string
	Tolerance time.Duration
	Clock     clock.Clock
	Cache     PaymentInvalidator
	Logger    *zap.Logger
}

type reconcileResponse struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	Success     bool   `json:"success"`
	OrderState  string `json:"order_state,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
}

func newReconcileResponse(res app.Result) reconcileResponse {
	return reconcileResponse{
		PaymentID:   res.PaymentID,
		OrderID:     res.OrderID,
		Status:      string(res.Status),
		Outcome:     string(res.Outcome),
		Reason:      res.Reason,
		Success:     res.Success(),
		OrderState:  string(res.OrderState),
		OrderStatus: res.OrderStatus,
	}
}

// HandleCallback returns an HTTP handler for MONEI payment callbacks. Every
// business outcome, including a contended lock, answers 200 so MONEI only
// retries deliveries that failed to persist.
func HandleCallback(svc PaymentReconciler, cfg CallbackConfig) http.HandlerFunc {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = monei.DefaultSignatureTolerance
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		if cfg.Secret != "" {
			if err := monei.VerifySignature(body, r.Header.Get(monei.SignatureHeader), cfg.Secret, cfg.Clock.Now(), cfg.Tolerance); err != nil {
				logger.Warn("rejected unsigned callback", zap.Error(err))
				writeError(w, http.StatusBadRequest, codeInvalidSignature, "invalid signature")
				return
			}
		}

		p, keys, err := monei.ParseCallback(body)
		if err != nil {
			logger.Error("invalid callback payload", zap.Error(err), zap.Strings("keys", keys))
			writeError(w, http.StatusBadRequest, codeInvalidPayload, err.Error())
			return
		}

		if cfg.Cache != nil {
			cfg.Cache.Invalidate(p.ID)
		}

		res, err := svc.Reconcile(r.Context(), p)
		if err != nil {
			writeReconcileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newReconcileResponse(res))
	}
}
