package app

import (
	"fmt"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/money"
	"github.com/cimillas/monei-reconciler/internal/statuscode"
)

type transitionKind string

const (
	kindSucceeded  transitionKind = "succeeded"
	kindAuthorized transitionKind = "authorized"
	kindPending    transitionKind = "pending"
	kindTerminated transitionKind = "terminated"
)

// transition is one row of the status → action table.
type transition struct {
	kind    transitionKind
	invoice bool
	email   bool
	vault   bool
	// target returns the order state and status the payment drives to.
	target func(cfg PaymentConfig) (domain.OrderState, string)
	// guard returns a non-empty reason when the order must not move.
	guard func(o *domain.Order, p domain.Payment, cfg PaymentConfig) string
	// comment is the history comment written with the transition.
	comment func(p domain.Payment) string
}

var transitions = map[transitionKind]transition{
	kindSucceeded: {
		kind:    kindSucceeded,
		invoice: true,
		email:   true,
		vault:   true,
		target: func(cfg PaymentConfig) (domain.OrderState, string) {
			return domain.OrderStateProcessing, cfg.ConfirmedStatus
		},
		guard: func(o *domain.Order, p domain.Payment, cfg PaymentConfig) string {
			if closedForPayments(o) {
				return ReasonOrderClosed
			}
			if o.State == domain.OrderStateProcessing && o.Status == cfg.ConfirmedStatus {
				return ReasonPaidByOtherPayment
			}
			return ""
		},
		comment: func(p domain.Payment) string {
			return fmt.Sprintf("MONEI payment %s succeeded. Amount: %s", p.ID, money.Format(p.Amount, p.Currency))
		},
	},
	kindAuthorized: {
		kind:  kindAuthorized,
		email: true,
		vault: true,
		target: func(cfg PaymentConfig) (domain.OrderState, string) {
			return domain.OrderStateProcessing, cfg.PreAuthorizedStatus
		},
		guard: func(o *domain.Order, p domain.Payment, cfg PaymentConfig) string {
			return progressGuard(o, cfg, cfg.PreAuthorizedStatus)
		},
		comment: func(p domain.Payment) string {
			return fmt.Sprintf("MONEI payment %s authorized. Amount: %s", p.ID, money.Format(p.Amount, p.Currency))
		},
	},
	kindPending: {
		kind:  kindPending,
		email: true,
		target: func(cfg PaymentConfig) (domain.OrderState, string) {
			return domain.OrderStateProcessing, cfg.PendingStatus
		},
		guard: func(o *domain.Order, p domain.Payment, cfg PaymentConfig) string {
			return progressGuard(o, cfg, cfg.PendingStatus)
		},
		comment: func(p domain.Payment) string {
			return fmt.Sprintf("MONEI payment %s is pending confirmation", p.ID)
		},
	},
	kindTerminated: {
		kind: kindTerminated,
		target: func(cfg PaymentConfig) (domain.OrderState, string) {
			return domain.OrderStateCanceled, cfg.CanceledStatus
		},
		guard: func(o *domain.Order, p domain.Payment, cfg PaymentConfig) string {
			switch o.State {
			case domain.OrderStateNew, domain.OrderStatePendingPayment, domain.OrderStateProcessing:
			case domain.OrderStateCanceled:
				return ReasonAlreadyCanceled
			default:
				return ReasonOrderClosed
			}
			if o.TotalPaid > 0 || o.Status == cfg.ConfirmedStatus {
				return ReasonPaidByOtherPayment
			}
			// A failed retry must not cancel an order another attempt is carrying.
			if o.MoneiPaymentID != "" && o.MoneiPaymentID != p.ID &&
				(o.Status == cfg.PendingStatus || o.Status == cfg.PreAuthorizedStatus) {
				return ReasonSupersededPayment
			}
			return ""
		},
		comment: func(p domain.Payment) string {
			return statuscode.FailureComment(string(p.Status), p.StatusCode, p.StatusMessage, p.Amount, p.Currency)
		},
	},
}

// transitionFor picks the table row for a classified status.
// Refunds and unknown statuses have no row.
func transitionFor(f domain.StatusFlags) (transition, bool) {
	switch {
	case f.Succeeded:
		return transitions[kindSucceeded], true
	case f.Authorized:
		return transitions[kindAuthorized], true
	case f.Pending:
		return transitions[kindPending], true
	case f.Terminated():
		return transitions[kindTerminated], true
	}
	return transition{}, false
}

func closedForPayments(o *domain.Order) bool {
	return o.State == domain.OrderStateClosed || o.State == domain.OrderStateComplete
}

// progressGuard stops non-final payments from moving an order backwards,
// e.g. a late PENDING after AUTHORIZED or SUCCEEDED.
func progressGuard(o *domain.Order, cfg PaymentConfig, target string) string {
	switch o.State {
	case domain.OrderStateNew, domain.OrderStatePendingPayment:
		return ""
	case domain.OrderStateProcessing:
		if statusRank(cfg, o.Status) > statusRank(cfg, target) {
			return ReasonWouldRegress
		}
		return ""
	case domain.OrderStateCanceled:
		return ReasonAlreadyCanceled
	default:
		return ReasonOrderClosed
	}
}

func statusRank(cfg PaymentConfig, status string) int {
	switch status {
	case cfg.PendingStatus:
		return 1
	case cfg.PreAuthorizedStatus:
		return 2
	case cfg.ConfirmedStatus:
		return 3
	}
	return 0
}
