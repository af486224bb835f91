package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cimillas/monei-reconciler/internal/app"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/monei"
)

func TestHandleComplete(t *testing.T) {
	t.Parallel()

	payment := domain.Payment{ID: "pay_1", OrderID: "000000001", Status: domain.StatusSucceeded, Amount: 1000, Currency: "EUR"}
	apiNotFound := &domain.Error{Kind: domain.KindAPI, Op: "get payment", HTTPStatus: 404, Err: &monei.APIError{StatusCode: 404, Message: "not found"}}
	apiDown := &domain.Error{Kind: domain.KindAPI, Op: "get payment", Err: &monei.APIError{Message: "dial tcp: refused"}}

	tests := []struct {
		name           string
		query          string
		getErr         error
		result         app.Result
		serviceErr     error
		expectedStatus int
		expectedSubstr string
		expectWait     bool
	}{
		{
			name:           "applied",
			query:          "?id=pay_1&orderId=000000001",
			result:         app.Result{Outcome: app.OutcomeApplied},
			expectedStatus: http.StatusOK,
			expectedSubstr: `"success":true`,
			expectWait:     true,
		},
		{
			name:           "order id optional",
			query:          "?id=pay_1",
			result:         app.Result{Outcome: app.OutcomeAlreadyProcessed},
			expectedStatus: http.StatusOK,
			expectedSubstr: `"outcome":"already_processed"`,
			expectWait:     true,
		},
		{
			name:           "missing id",
			query:          "",
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeMissingRequiredField,
		},
		{
			name:           "order mismatch",
			query:          "?id=pay_1&orderId=000000002",
			expectedStatus: http.StatusBadRequest,
			expectedSubstr: codeOrderMismatch,
		},
		{
			name:           "payment not found at monei",
			query:          "?id=pay_1",
			getErr:         apiNotFound,
			expectedStatus: http.StatusNotFound,
			expectedSubstr: monei.UserMessage(monei.ClassNotFound),
		},
		{
			name:           "monei unreachable",
			query:          "?id=pay_1",
			getErr:         apiDown,
			expectedStatus: http.StatusServiceUnavailable,
			expectedSubstr: monei.UserMessage(monei.ClassUnavailable),
		},
		{
			name:           "untyped fetch error",
			query:          "?id=pay_1",
			getErr:         errors.New("boom"),
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "still locked",
			query:          "?id=pay_1",
			result:         app.Result{Outcome: app.OutcomeLocked},
			expectedStatus: http.StatusAccepted,
			expectWait:     true,
		},
		{
			name:           "order not found",
			query:          "?id=pay_1",
			result:         app.Result{Outcome: app.OutcomeNotFound, Reason: app.ReasonOrderNotFound},
			expectedStatus: http.StatusNotFound,
			expectedSubstr: codeOrderNotFound,
			expectWait:     true,
		},
		{
			name:           "persistence failure",
			query:          "?id=pay_1",
			serviceErr:     domain.E(domain.KindPersistence, "save order", errors.New("db down")),
			expectedStatus: http.StatusInternalServerError,
			expectWait:     true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeReconciler{res: tt.result, err: tt.serviceErr}
			waiter := &fakeWaiter{done: true}
			handler := HandleComplete(fakeGetter{payment: payment, err: tt.getErr}, waiter, svc, nil)

			req := httptest.NewRequest(http.MethodGet, "/monei/complete"+tt.query, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected body to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
			if waiter.waited != tt.expectWait {
				t.Fatalf("expected waited=%v, got %v", tt.expectWait, waiter.waited)
			}
		})
	}
}

func TestHandleComplete_ReconcilesAfterWaitTimeout(t *testing.T) {
	t.Parallel()

	svc := &fakeReconciler{res: app.Result{Outcome: app.OutcomeApplied}}
	payment := domain.Payment{ID: "pay_1", OrderID: "000000001", Status: domain.StatusSucceeded}
	handler := HandleComplete(fakeGetter{payment: payment}, &fakeWaiter{done: false}, svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/monei/complete?id=pay_1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.calls() != 1 {
		t.Fatalf("expected reconcile after wait timeout")
	}
}
