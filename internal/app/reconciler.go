package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"go.uber.org/zap"
)

// OrderRepository is the order persistence the reconciler needs.
// GetByIncrementID returns nil, nil when the order does not exist.
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetByIncrementID(ctx context.Context, incrementID string) (*domain.Order, error)
	Save(ctx context.Context, order *domain.Order) error
}

// Invoicer captures the payment into an invoice on the order.
type Invoicer interface {
	GenerateInvoice(ctx context.Context, order *domain.Order, p domain.Payment) (*domain.Invoice, error)
}

// Mailer sends the order confirmation email.
type Mailer interface {
	SendOrderEmail(ctx context.Context, order domain.Order) error
}

// Vault stores a reusable card token for the customer.
type Vault interface {
	CreateVaultToken(ctx context.Context, paymentID string, order *domain.Order, p domain.Payment) (bool, error)
}

type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeLocked           Outcome = "locked"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeFailed           Outcome = "failed"
)

const (
	ReasonAlreadyProcessing  = "already processing"
	ReasonAlreadyApplied     = "payment state already applied"
	ReasonOrderNotFound      = "order not found"
	ReasonUnknownStatus      = "unrecognized payment status"
	ReasonRefundStatus       = "refunds are handled by credit memos"
	ReasonAlreadyCanceled    = "order already canceled"
	ReasonOrderClosed        = "order is closed"
	ReasonPaidByOtherPayment = "order already paid"
	ReasonWouldRegress       = "order is ahead of this payment status"
	ReasonSupersededPayment  = "order is carried by another payment attempt"
	ReasonNothingToCapture   = "payment amount leaves nothing to capture"
	ReasonPersistence        = "order could not be saved"
)

// Result is what a reconciliation pass did. Business conditions are reported
// here; only validation and persistence failures come back as errors.
type Result struct {
	Outcome     Outcome
	Reason      string
	OrderID     string
	PaymentID   string
	Status      domain.PaymentStatus
	OrderState  domain.OrderState
	OrderStatus string
	InvoiceID   string
	EmailSent   bool
}

// Success is true when the order reflects the payment, now or from before.
func (r Result) Success() bool {
	return r.Outcome == OutcomeApplied || r.Outcome == OutcomeAlreadyProcessed
}

// Reconciler applies MONEI payment states to orders.
type Reconciler struct {
	orders    OrderRepository
	invoicer  Invoicer
	mailer    Mailer
	vault     Vault
	history   *HistoryReconciler
	processor *OrderProcessor
	clock     clock.Clock
	logger    *zap.Logger
	cfg       PaymentConfig
}

type ReconcilerOption func(*Reconciler)

func WithPaymentConfig(cfg PaymentConfig) ReconcilerOption {
	return func(r *Reconciler) {
		r.cfg = cfg.withDefaults()
	}
}

func WithMailer(m Mailer) ReconcilerOption {
	return func(r *Reconciler) { r.mailer = m }
}

func WithVault(v Vault) ReconcilerOption {
	return func(r *Reconciler) { r.vault = v }
}

func WithHistoryReconciler(h *HistoryReconciler) ReconcilerOption {
	return func(r *Reconciler) {
		if h != nil {
			r.history = h
		}
	}
}

func WithReconcilerLogger(l *zap.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewReconciler(orders OrderRepository, invoicer Invoicer, processor *OrderProcessor, clk clock.Clock, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		orders:    orders,
		invoicer:  invoicer,
		processor: processor,
		clock:     clk,
		logger:    zap.NewNop(),
		cfg:       DefaultPaymentConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.history == nil {
		r.history = NewHistoryReconciler(nil, r.logger)
	}
	return r
}

// Reconcile brings the order named by p.OrderID in line with payment p.
func (r *Reconciler) Reconcile(ctx context.Context, p domain.Payment) (Result, error) {
	if err := validatePayment(p); err != nil {
		r.logger.Error("rejected payment notification", zap.Error(err))
		return Result{Outcome: OutcomeFailed, Reason: err.Error(), OrderID: p.OrderID, PaymentID: p.ID}, domain.E(domain.KindValidation, "reconcile", err)
	}

	log := r.logger.With(
		zap.String("order_id", p.OrderID),
		zap.String("payment_id", p.ID),
		zap.String("status", string(p.Status)),
	)

	res, err := r.processor.Process(ctx, p.OrderID, p.ID, func(ctx context.Context) (Result, error) {
		return r.apply(ctx, p, log)
	})
	if err != nil {
		log.Error("reconciliation failed", zap.Error(err))
		return res, err
	}
	log.Info("reconciliation finished", zap.String("outcome", string(res.Outcome)), zap.String("reason", res.Reason))
	return res, nil
}

// Processor exposes the lock wrapper so callers can wait on in-flight work.
func (r *Reconciler) Processor() *OrderProcessor { return r.processor }

func validatePayment(p domain.Payment) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id", domain.ErrMissingField)
	case p.OrderID == "":
		return fmt.Errorf("%w: orderId", domain.ErrMissingField)
	case p.Status == "":
		return fmt.Errorf("%w: status", domain.ErrMissingField)
	case p.Amount < 0:
		return fmt.Errorf("%w: negative amount", domain.ErrInvalidAmount)
	}
	return nil
}

func (r *Reconciler) classify(p domain.Payment, log *zap.Logger) domain.StatusFlags {
	f := domain.Classify(p.Status)
	if !f.Known() {
		log.Warn("unrecognized payment status")
	}
	return f
}

func (r *Reconciler) apply(ctx context.Context, p domain.Payment, log *zap.Logger) (Result, error) {
	res := Result{OrderID: p.OrderID, PaymentID: p.ID, Status: p.Status}

	var (
		saved *domain.Order
		tr    transition
	)
	err := r.orders.WithTx(ctx, func(txCtx context.Context) error {
		order, err := r.orders.GetByIncrementID(txCtx, p.OrderID)
		if err != nil {
			return domain.E(domain.KindPersistence, "load order", err)
		}
		if order == nil {
			res.Outcome, res.Reason = OutcomeNotFound, ReasonOrderNotFound
			return nil
		}
		res.OrderState, res.OrderStatus = order.State, order.Status

		flags := r.classify(p, log)
		var ok bool
		tr, ok = transitionFor(flags)
		if !ok {
			res.Outcome = OutcomeIgnored
			res.Reason = ReasonUnknownStatus
			if flags.Refunded {
				res.Reason = ReasonRefundStatus
			}
			return nil
		}

		state, status := tr.target(r.cfg)
		if order.MoneiPaymentID == p.ID && order.State == state && order.Status == status {
			res.Outcome, res.Reason = OutcomeAlreadyProcessed, ReasonAlreadyApplied
			return nil
		}
		if reason := tr.guard(order, p, r.cfg); reason != "" {
			res.Outcome, res.Reason = OutcomeIgnored, reason
			return nil
		}

		r.writeMetadata(order, p)

		if tr.invoice {
			inv, err := r.invoice(txCtx, order, p, log)
			if err != nil {
				return err
			}
			if inv != nil {
				res.InvoiceID = inv.ID
			}
		}
		if tr.kind == kindSucceeded && order.GrandTotal > 0 && p.Amount != order.GrandTotal {
			log.Warn("payment amount differs from order total",
				zap.Int64("amount", p.Amount), zap.Int64("grand_total", order.GrandTotal))
		}

		order.State, order.Status = state, status
		order.AddHistory(tr.comment(p), false, r.clock.Now())
		order.UpdatedAt = r.clock.Now()

		// The transition comment is the newest entry and carries the new
		// status, so it is the one flagged; the capture entry written by the
		// invoicer keeps the previous status and stays unflagged.
		r.history.MarkLatestNotified(order)
		if err := r.orders.Save(txCtx, order); err != nil {
			return domain.E(domain.KindPersistence, "save order", err)
		}

		res.Outcome, res.Reason = OutcomeApplied, ""
		res.OrderState, res.OrderStatus = order.State, order.Status
		saved = order
		return nil
	})
	if err != nil {
		res.Outcome, res.Reason = OutcomeFailed, ReasonPersistence
		if domain.KindOf(err) == domain.KindValidation {
			res.Reason = ReasonNothingToCapture
		}
		return res, err
	}
	if saved == nil {
		return res, nil
	}

	res.EmailSent = r.afterCommit(ctx, saved, p, tr, log)
	return res, nil
}

func (r *Reconciler) writeMetadata(o *domain.Order, p domain.Payment) {
	o.MoneiPaymentID = p.ID
	o.Payment.LastTransactionID = p.ID
	if o.Payment.AdditionalInfo == nil {
		o.Payment.AdditionalInfo = map[string]string{}
	}
	info := o.Payment.AdditionalInfo
	info["monei_payment_id"] = p.ID
	info["monei_status"] = string(p.Status)
	setIfNotEmpty(info, "monei_status_code", p.StatusCode)
	setIfNotEmpty(info, "monei_status_message", p.StatusMessage)
	setIfNotEmpty(info, "method", p.Method.Method)
	setIfNotEmpty(info, "card_brand", p.Method.CardBrand)
	setIfNotEmpty(info, "card_last4", p.Method.CardLast4)
	if o.Payment.Method == "" && p.Method.Method != "" {
		o.Payment.Method = "monei_" + p.Method.Method
	}
}

func setIfNotEmpty(m map[string]string, k, v string) {
	if v != "" {
		m[k] = v
	}
}

func (r *Reconciler) invoice(ctx context.Context, o *domain.Order, p domain.Payment, log *zap.Logger) (*domain.Invoice, error) {
	if len(o.Invoices) > 0 && o.AmountDue() == 0 {
		log.Info("invoice already exists, skipping")
		return nil, nil
	}
	inv, err := r.invoicer.GenerateInvoice(ctx, o, p)
	if err != nil {
		// An amount the order cannot absorb is the payload's fault, never storage's.
		if errors.Is(err, domain.ErrInvalidAmount) {
			return nil, domain.E(domain.KindValidation, "generate invoice", err)
		}
		return nil, domain.E(domain.KindPersistence, "generate invoice", err)
	}
	return inv, nil
}

// afterCommit runs the best-effort side effects while the locks are still
// held. It reports whether the order email was sent.
func (r *Reconciler) afterCommit(ctx context.Context, o *domain.Order, p domain.Payment, tr transition, log *zap.Logger) bool {
	sent := false
	if tr.email && r.cfg.SendOrderEmail && !o.EmailSent && r.mailer != nil {
		if err := r.mailer.SendOrderEmail(ctx, *o); err != nil {
			log.Warn("order email failed", zap.Error(err))
		} else {
			o.EmailSent = true
			sent = true
		}
	}

	if tr.vault && o.MoneiSaveTokenization && r.vault != nil {
		ok, err := r.vault.CreateVaultToken(ctx, p.ID, o, p)
		switch {
		case err != nil:
			log.Warn("vault token creation failed", zap.Error(err))
		case !ok:
			log.Info("vault token not created")
		}
	}

	r.history.Reconcile(ctx, o)
	if sent {
		if err := r.orders.Save(ctx, o); err != nil {
			log.Warn("saving email flag failed", zap.Error(err))
		}
	}
	return sent
}
