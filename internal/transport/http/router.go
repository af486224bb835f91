package http

import (
	"net/http"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Reconciler    PaymentReconciler
	Payments      PaymentGetter
	Lookup        PaymentLookup
	Cache         PaymentInvalidator
	Waiter        ProcessingWaiter
	DB            Pinger
	WebhookSecret string
	Clock         clock.Clock
	Logger        *zap.Logger
}

// NewRouter wires the MONEI endpoints behind request id, panic recovery and
// request logging.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return RequestLogger(next, logger)
	})

	r.NotFound(notFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", HandleHealth(cfg.DB))
	r.Route("/monei", func(r chi.Router) {
		r.Post("/callback", HandleCallback(cfg.Reconciler, CallbackConfig{
			Secret: cfg.WebhookSecret,
			Clock:  cfg.Clock,
			Cache:  cfg.Cache,
			Logger: logger.Named("callback"),
		}))
		r.Get("/complete", HandleComplete(cfg.Payments, cfg.Waiter, cfg.Reconciler, logger.Named("complete")))
		if cfg.Lookup != nil {
			r.Get("/payments/{id}", HandlePaymentStatus(cfg.Lookup, logger.Named("payments")))
		}
	})
	return r
}
