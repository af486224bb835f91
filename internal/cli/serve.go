package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/monei-reconciler/internal/config"
	transporthttp "github.com/cimillas/monei-reconciler/internal/transport/http"
	"github.com/cimillas/monei-reconciler/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const leasePurgeInterval = time.Minute

func serveCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MONEI callback and completion endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, !skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) error {
	pool, err := connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if migrate {
		if err := migrations.Apply(ctx, pool, logger.Named("migrations")); err != nil {
			return err
		}
	}

	if cfg.Monei.WebhookSecret == "" {
		logger.Warn("monei.webhook_secret not set, callbacks are accepted unsigned")
	}

	svc := buildServices(pool, cfg, logger)
	server := &http.Server{
		Addr: ":" + cfg.HTTP.Port,
		Handler: transporthttp.NewRouter(transporthttp.RouterConfig{
			Reconciler:    svc.reconciler,
			Payments:      svc.payments,
			Lookup:        svc.payments,
			Cache:         svc.payments,
			Waiter:        svc.reconciler.Processor(),
			DB:            pool,
			WebhookSecret: cfg.Monei.WebhookSecret,
			Clock:         svc.clock,
			Logger:        logger.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(leasePurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := svc.leases.PurgeExpired(gctx)
				if err != nil {
					logger.Warn("purge expired leases failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Debug("purged expired leases", zap.Int64("count", n))
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
