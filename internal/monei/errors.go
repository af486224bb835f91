package monei

import (
	"fmt"
	"net/http"

	"github.com/cimillas/monei-reconciler/internal/domain"
)

// ErrorClass groups API failures by what the caller can do about them.
type ErrorClass string

const (
	ClassBadRequest      ErrorClass = "bad_request"
	ClassAuth            ErrorClass = "auth"
	ClassPaymentRequired ErrorClass = "payment_required"
	ClassNotFound        ErrorClass = "not_found"
	ClassConflict        ErrorClass = "conflict"
	ClassUnprocessable   ErrorClass = "unprocessable"
	ClassRateLimited     ErrorClass = "rate_limited"
	ClassUnavailable     ErrorClass = "unavailable"
	ClassUnknown         ErrorClass = "unknown"
)

// APIError is a non-2xx answer (or no answer) from the MONEI API.
// StatusCode is 0 when the request never got a response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("monei api unreachable: %s", e.Message)
	}
	return fmt.Sprintf("monei api %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match domain sentinels for well-known statuses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (e *APIError) Class() ErrorClass {
	switch {
	case e.StatusCode == http.StatusBadRequest:
		return ClassBadRequest
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ClassAuth
	case e.StatusCode == http.StatusPaymentRequired:
		return ClassPaymentRequired
	case e.StatusCode == http.StatusNotFound:
		return ClassNotFound
	case e.StatusCode == http.StatusConflict:
		return ClassConflict
	case e.StatusCode == http.StatusUnprocessableEntity:
		return ClassUnprocessable
	case e.StatusCode == http.StatusTooManyRequests:
		return ClassRateLimited
	case e.StatusCode == 0, e.StatusCode >= 500:
		return ClassUnavailable
	}
	return ClassUnknown
}

var userMessages = map[ErrorClass]string{
	ClassBadRequest:      "The payment request was invalid. Please review your details and try again.",
	ClassAuth:            "The payment service rejected our credentials. Please contact the store.",
	ClassPaymentRequired: "The payment could not be completed. Please try another payment method.",
	ClassNotFound:        "We could not find this payment. Please start the checkout again.",
	ClassConflict:        "This payment is already being processed.",
	ClassUnprocessable:   "The payment details could not be processed. Please check them and try again.",
	ClassRateLimited:     "Too many requests. Please wait a moment and try again.",
	ClassUnavailable:     "The payment service is temporarily unavailable. Please try again later.",
	ClassUnknown:         "An error occurred while processing your payment. Please try again.",
}

// UserMessage is the customer-facing text for the error's class.
func (e *APIError) UserMessage() string {
	return userMessages[e.Class()]
}

// UserMessage returns the customer-facing text for any error class.
func UserMessage(c ErrorClass) string {
	if m, ok := userMessages[c]; ok {
		return m
	}
	return userMessages[ClassUnknown]
}

func wrapAPIError(op string, e *APIError) error {
	return &domain.Error{Kind: domain.KindAPI, Op: op, HTTPStatus: e.StatusCode, Err: e}
}
