package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/monei-reconciler/internal/app"
	"github.com/cimillas/monei-reconciler/internal/clock"
	"github.com/cimillas/monei-reconciler/internal/config"
	"github.com/cimillas/monei-reconciler/internal/domain"
	"github.com/cimillas/monei-reconciler/internal/lock"
	"github.com/cimillas/monei-reconciler/internal/monei"
	"github.com/cimillas/monei-reconciler/internal/notify"
	"github.com/cimillas/monei-reconciler/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type services struct {
	pool       *pgxpool.Pool
	leases     *postgres.LockBackend
	reconciler *app.Reconciler
	payments   *app.PaymentService
	clock      clock.Clock
}

func connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(startupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

func paymentConfig(c config.PaymentConfig) app.PaymentConfig {
	return app.PaymentConfig{
		ConfirmedStatus:     c.ConfirmedStatus,
		PreAuthorizedStatus: c.PreAuthorizedStatus,
		PendingStatus:       c.PendingStatus,
		CanceledStatus:      c.CanceledStatus,
		SendOrderEmail:      c.SendOrderEmail,
	}
}

func buildServices(pool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) *services {
	clk := clock.NewSystem()

	leases := postgres.NewLockBackend(pool, clk)
	locks := lock.NewManager(leases, clk,
		lock.WithTTL(cfg.Lock.TTL),
		lock.WithReleaseAttempts(cfg.Lock.ReleaseAttempts),
		lock.WithLogger(logger.Named("lock")),
	)
	processor := app.NewOrderProcessor(locks,
		app.WithLockTTL(cfg.Lock.TTL),
		app.WithProcessingWait(cfg.Lock.ProcessingWait, 0),
		app.WithUnlockWait(cfg.Lock.UnlockWait, 0),
		app.WithProcessorLogger(logger.Named("processor")),
	)

	orders := postgres.NewOrderRepository(pool)
	reconciler := app.NewReconciler(orders, app.NewOrderInvoicer(clk), processor, clk,
		app.WithPaymentConfig(paymentConfig(cfg.Payment)),
		app.WithMailer(notify.NewLogMailer(logger.Named("mail"))),
		app.WithVault(app.NewTokenVault(postgres.NewVaultRepository(pool), clk)),
		app.WithHistoryReconciler(app.NewHistoryReconciler(orders, logger.Named("history"))),
		app.WithReconcilerLogger(logger.Named("reconciler")),
	)

	client := monei.NewClient(monei.Config{
		APIKey:    cfg.Monei.APIKey,
		BaseURL:   cfg.Monei.BaseURL,
		Timeout:   cfg.Monei.Timeout,
		RateLimit: cfg.Monei.RateLimit,
	}, logger.Named("monei"))
	payments := app.NewPaymentService(client, app.NewTTLCache[domain.Payment](clk),
		app.WithPaymentCacheTTL(cfg.Cache.PaymentTTL),
		app.WithPaymentLogger(logger.Named("payments")),
	)

	return &services{
		pool:       pool,
		leases:     leases,
		reconciler: reconciler,
		payments:   payments,
		clock:      clk,
	}
}
