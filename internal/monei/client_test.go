package monei

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetPayment(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_1", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "pay_1",
			"amount": 10000,
			"currency": "EUR",
			"orderId": "000000123",
			"status": "SUCCEEDED",
			"statusCode": "E000",
			"statusMessage": "Transaction approved",
			"paymentToken": "tok_1",
			"paymentMethod": {"method": "card", "card": {"brand": "visa", "last4": "4242"}},
			"createdAt": 1735819200,
			"updatedAt": 1735819260
		}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "secret-key", BaseURL: srv.URL}, nil)
	p, err := c.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)

	assert.Equal(t, "pay_1", p.ID)
	assert.Equal(t, "000000123", p.OrderID)
	assert.Equal(t, domain.StatusSucceeded, p.Status)
	assert.Equal(t, int64(10000), p.Amount)
	assert.Equal(t, "E000", p.StatusCode)
	assert.Equal(t, "visa", p.Method.CardBrand)
	assert.Equal(t, int64(1735819260), p.UpdatedAt.Unix())
	assert.Equal(t, "pay_1", p.RawData()["id"])
}

func TestClient_GetPaymentNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"ERROR","statusCode":404,"message":"Payment not found","requestId":"req_1"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.GetPayment(context.Background(), "pay_x")
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
	assert.Equal(t, domain.KindAPI, domain.KindOf(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, ClassNotFound, apiErr.Class())
	assert.Equal(t, "Payment not found", apiErr.Message)
	assert.Equal(t, "req_1", apiErr.RequestID)

	var de *domain.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"message":"try later"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"pay_1","status":"PENDING","amount":100,"currency":"EUR"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	p, err := c.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, p.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_EmptyID(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:0"}, nil)
	_, err := c.GetPayment(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingField)
}

func TestAPIError_Class(t *testing.T) {
	t.Parallel()

	tests := map[int]ErrorClass{
		0:   ClassUnavailable,
		400: ClassBadRequest,
		401: ClassAuth,
		402: ClassPaymentRequired,
		403: ClassAuth,
		404: ClassNotFound,
		409: ClassConflict,
		418: ClassUnknown,
		422: ClassUnprocessable,
		429: ClassRateLimited,
		500: ClassUnavailable,
		503: ClassUnavailable,
	}
	for status, want := range tests {
		e := &APIError{StatusCode: status}
		assert.Equal(t, want, e.Class(), "status %d", status)
		assert.NotEmpty(t, e.UserMessage())
	}

	assert.NotEqual(t, (&APIError{StatusCode: 401}).UserMessage(), (&APIError{StatusCode: 429}).UserMessage())
	assert.Equal(t, UserMessage(ClassUnknown), UserMessage(ErrorClass("weird")))
}
