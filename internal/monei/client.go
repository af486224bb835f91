package monei

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.monei.com/v1"
	defaultTimeout   = 10 * time.Second
	defaultRateLimit = 10
	userAgent        = "monei-reconciler/1.0"
)

// Config configures the API client.
type Config struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second
}

// Client reads payments from the MONEI API.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type errorBody struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"requestId"`
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)+1),
		logger:  logger,
	}
}

// GetPayment fetches one payment. API failures come back as a KindAPI
// domain.Error wrapping *APIError.
func (c *Client) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	if id == "" {
		return domain.Payment{}, fmt.Errorf("%w: payment id", domain.ErrMissingField)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Payment{}, fmt.Errorf("rate limit wait: %w", err)
	}

	var body Payment
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&apiErr).
		Get("/payments/" + url.PathEscape(id))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Payment{}, err
		}
		c.logger.Warn("monei request failed", zap.String("payment_id", id), zap.Error(err))
		return domain.Payment{}, wrapAPIError("get payment", &APIError{Message: err.Error()})
	}
	if resp.IsError() {
		e := &APIError{
			StatusCode: resp.StatusCode(),
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RequestID:  apiErr.RequestID,
		}
		if e.Message == "" {
			e.Message = resp.Status()
		}
		c.logger.Warn("monei api error",
			zap.String("payment_id", id),
			zap.Int("http_status", e.StatusCode),
			zap.String("class", string(e.Class())),
			zap.String("request_id", e.RequestID),
		)
		return domain.Payment{}, wrapAPIError("get payment", e)
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return domain.Payment{}, fmt.Errorf("decode payment: %w", err)
	}
	return body.ToDomain(raw), nil
}
