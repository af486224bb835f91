package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/monei-reconciler/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const defaultPaymentCacheTTL = 5 * time.Minute

// PaymentFetcher loads a payment from MONEI.
type PaymentFetcher interface {
	GetPayment(ctx context.Context, id string) (domain.Payment, error)
}

// PaymentService looks payments up, caching terminal ones. Non-final
// payments are always fetched because MONEI may still change them.
type PaymentService struct {
	fetcher PaymentFetcher
	cache   Cache[domain.Payment]
	ttl     time.Duration
	logger  *zap.Logger
	group   singleflight.Group
}

type PaymentServiceOption func(*PaymentService)

// WithPaymentCacheTTL overrides how long terminal payments stay cached.
func WithPaymentCacheTTL(d time.Duration) PaymentServiceOption {
	return func(s *PaymentService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithPaymentLogger(l *zap.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewPaymentService(fetcher PaymentFetcher, cache Cache[domain.Payment], opts ...PaymentServiceOption) *PaymentService {
	s := &PaymentService{
		fetcher: fetcher,
		cache:   cache,
		ttl:     defaultPaymentCacheTTL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a cached terminal payment or fetches it.
func (s *PaymentService) Get(ctx context.Context, id string) (domain.Payment, error) {
	if id == "" {
		return domain.Payment{}, fmt.Errorf("%w: payment id", domain.ErrMissingField)
	}
	if p, ok := s.cache.Get(id); ok {
		s.logger.Debug("payment served from cache", zap.String("payment_id", id))
		return p, nil
	}
	return s.fetch(ctx, id)
}

// GetFresh bypasses the cache. Use it whenever the result drives a mutation.
func (s *PaymentService) GetFresh(ctx context.Context, id string) (domain.Payment, error) {
	if id == "" {
		return domain.Payment{}, fmt.Errorf("%w: payment id", domain.ErrMissingField)
	}
	return s.fetch(ctx, id)
}

// Invalidate drops id from the cache.
func (s *PaymentService) Invalidate(id string) {
	s.cache.Delete(id)
}

func (s *PaymentService) fetch(ctx context.Context, id string) (domain.Payment, error) {
	v, err, shared := s.group.Do(id, func() (any, error) {
		p, err := s.fetcher.GetPayment(ctx, id)
		if err != nil {
			return domain.Payment{}, err
		}
		if domain.IsFinalStatus(p.Status) {
			s.cache.Set(id, p, s.ttl)
		} else {
			s.cache.Delete(id)
		}
		return p, nil
	})
	if err != nil {
		s.logger.Warn("payment fetch failed", zap.String("payment_id", id), zap.Error(err))
		return domain.Payment{}, err
	}
	if shared {
		s.logger.Debug("payment fetch shared", zap.String("payment_id", id))
	}
	return v.(domain.Payment), nil
}
