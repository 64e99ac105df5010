// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"premium-order-sync/internal/config"
	"premium-order-sync/internal/domain/ports/adapter"
	"premium-order-sync/internal/domain/ports/repository"
	payAdapters "premium-order-sync/internal/infra/adapters/payment"
	tele "premium-order-sync/internal/infra/adapters/telegram"
	"premium-order-sync/internal/infra/api"
	pg "premium-order-sync/internal/infra/db/postgres"
	"premium-order-sync/internal/infra/logging"
	"premium-order-sync/internal/infra/metrics"
	red "premium-order-sync/internal/infra/redis"
	"premium-order-sync/internal/infra/sched"
	"premium-order-sync/internal/usecase"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console logs, unredacted phones)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Payment.Provider)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewPostgresUserRepo(pool)

	// ---- Redis (optional) ----
	var (
		cache   repository.CacheInvalidator
		locker  repository.Locker = red.NewMemoryLocker()
		limiter api.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		cache = red.NewCacheInvalidator(redisClient)
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set: cache invalidation and rate limiting disabled, sync lock is process-local")
	}

	// ---- Payment gateway ----
	gateway, err := newGateway(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	logger.Info().Str("provider", gateway.Name()).Msg("payment gateway ready")

	// ---- Notifier ----
	var notifier adapter.Notifier = tele.NewNoopNotifier(logger)
	notifierConfigured := false
	if cfg.Notify.Telegram.Token != "" {
		tn, err := tele.NewTelegramNotifier(cfg.Notify.Telegram, cfg.Runtime.Dev, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
		notifier = tn
		notifierConfigured = true
	}

	// ---- Use cases ----
	rc := cfg.Reconcile
	activationUC := usecase.NewActivationUseCase(userRepo, tm, cache, notifier, rc.ActivationTimeout, logger)
	runner := usecase.NewBatchRunner(gateway, activationUC, usecase.BatchConfig{ChunkSize: rc.ChunkSize, ChunkDelay: rc.ChunkDelay}, logger)
	reconcileUC := usecase.NewReconcileUseCase(userRepo, gateway, runner, locker, usecase.ReconcileConfig{
		MaxOrders:           rc.MaxOrders,
		SyncLimit:           rc.SyncLimit,
		SyncLockTTL:         cfg.Redis.TTL,
		ExcludeNamePatterns: rc.ExcludeNamePatterns,
	}, logger)

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	srv := api.NewServer(reconcileUC, auth, limiter, api.ServerOptions{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		SyncPerWindow:  cfg.RateLimit.SyncPerWindow,
		Window:         cfg.RateLimit.Window,
		Health: api.HealthInfo{
			Provider:           gateway.Name(),
			GatewayConfigured:  true,
			NotifierConfigured: notifierConfigured,
			CacheConfigured:    cache != nil,
			Version:            version,
		},
	}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second, logger)
		return nil
	})
	g.Go(func() error {
		// a run may not outlive the lock that guards it
		sched.NewSyncWorker(reconcileUC, rc.Interval, cfg.Redis.TTL, logger).Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("bye")
}

func newGateway(cfg *config.Config) (adapter.PaymentGateway, error) {
	switch cfg.Payment.Provider {
	case "noop":
		return payAdapters.NewNoopPaymentGateway(), nil
	default:
		r := cfg.Payment.Razorpay
		return payAdapters.NewRazorpayGateway(r.KeyID, r.KeySecret, r.BaseURL, r.Timeout)
	}
}
