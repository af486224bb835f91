package domain

import "strings"

// PaymentStatus is the MONEI payment lifecycle status.
type PaymentStatus string

const (
	StatusSucceeded         PaymentStatus = "SUCCEEDED"
	StatusAuthorized        PaymentStatus = "AUTHORIZED"
	StatusPending           PaymentStatus = "PENDING"
	StatusFailed            PaymentStatus = "FAILED"
	StatusCanceled          PaymentStatus = "CANCELED"
	StatusExpired           PaymentStatus = "EXPIRED"
	StatusRefunded          PaymentStatus = "REFUNDED"
	StatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// KnownStatuses lists every status the classifier recognises.
var KnownStatuses = []PaymentStatus{
	StatusSucceeded,
	StatusAuthorized,
	StatusPending,
	StatusFailed,
	StatusCanceled,
	StatusExpired,
	StatusRefunded,
	StatusPartiallyRefunded,
}

// ParseStatus normalises a raw status string. Unknown values are kept verbatim.
func ParseStatus(raw string) PaymentStatus {
	return PaymentStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

// StatusFlags holds the classification predicates.
// For a known status exactly one flag is set; for an unknown one none is.
type StatusFlags struct {
	Succeeded  bool
	Authorized bool
	Pending    bool
	Failed     bool
	Canceled   bool
	Expired    bool
	Refunded   bool
}

// Known reports whether any predicate matched.
func (f StatusFlags) Known() bool {
	return f.Succeeded || f.Authorized || f.Pending || f.Failed || f.Canceled || f.Expired || f.Refunded
}

// Terminated is true for the failure family that cancels an order.
func (f StatusFlags) Terminated() bool {
	return f.Failed || f.Canceled || f.Expired
}

// Classify maps a status onto its predicates.
func Classify(s PaymentStatus) StatusFlags {
	switch s {
	case StatusSucceeded:
		return StatusFlags{Succeeded: true}
	case StatusAuthorized:
		return StatusFlags{Authorized: true}
	case StatusPending:
		return StatusFlags{Pending: true}
	case StatusFailed:
		return StatusFlags{Failed: true}
	case StatusCanceled:
		return StatusFlags{Canceled: true}
	case StatusExpired:
		return StatusFlags{Expired: true}
	case StatusRefunded, StatusPartiallyRefunded:
		return StatusFlags{Refunded: true}
	}
	return StatusFlags{}
}

// IsFinalStatus reports whether MONEI will never change a payment in this status again.
func IsFinalStatus(s PaymentStatus) bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled, StatusExpired, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}
