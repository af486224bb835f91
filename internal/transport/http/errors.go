package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/monei"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidSignature     = "invalid_signature"
	codeInvalidPayload       = "invalid_payload"
	codeOrderMismatch        = "order_mismatch"
	codeOrderNotFound        = "order_not_found"
	codePaymentAPIError      = "payment_api_error"
	codePersistenceFailure   = "persistence_failure"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeReconcileError maps a reconciliation error to a response. Validation
// failures are the sender's fault; everything else asks for a retry.
func writeReconcileError(w http.ResponseWriter, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		writeError(w, http.StatusBadRequest, codeInvalidPayload, err.Error())
	case domain.KindPersistence:
		writeError(w, http.StatusInternalServerError, codePersistenceFailure, "order could not be saved")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

// writeAPIError answers with the customer-facing message for a MONEI API
// failure; raw provider messages are never echoed.
func writeAPIError(w http.ResponseWriter, err error) {
	var apiErr *monei.APIError
	if !errors.As(err, &apiErr) {
		writeError(w, http.StatusBadGateway, codePaymentAPIError, monei.UserMessage(monei.ClassUnknown))
		return
	}
	status := http.StatusBadGateway
	switch apiErr.Class() {
	case monei.ClassNotFound:
		status = http.StatusNotFound
	case monei.ClassRateLimited:
		status = http.StatusTooManyRequests
	case monei.ClassUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, codePaymentAPIError+"_"+string(apiErr.Class()), apiErr.UserMessage())
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, codeNotFound, "not found")
}
