package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrLockNotAcquired    = errors.New("lock not acquired")
	ErrLockOrder          = errors.New("order lock requested while holding a payment lock")
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrOrderMismatch      = errors.New("payment does not belong to order")
	ErrInvalidID          = errors.New("invalid id")
	ErrPersistenceFailure = errors.New("persistence failure")
)

// ErrorKind is the closed set of failure categories surfaced by reconciliation.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindContention
	KindValidation
	KindAPI
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindContention:
		return "contention"
	case KindValidation:
		return "validation"
	case KindAPI:
		return "api_error"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error tags an underlying error with its kind and the operation that failed.
// HTTPStatus is only set for KindAPI.
type Error struct {
	Kind       ErrorKind
	Op         string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a tagged error.
func E(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err. Untagged sentinels map to their natural kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrPaymentNotFound):
		return KindNotFound
	case errors.Is(err, ErrLockNotAcquired):
		return KindContention
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrOrderMismatch):
		return KindValidation
	case errors.Is(err, ErrPersistenceFailure):
		return KindPersistence
	}
	return KindUnknown
}
