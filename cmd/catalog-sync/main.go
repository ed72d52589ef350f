// cmd/catalog-sync/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marketplace-sync/internal/actions"
	"marketplace-sync/internal/api"
	"marketplace-sync/internal/catalog"
	"marketplace-sync/internal/common/config"
	"marketplace-sync/internal/common/database"
	"marketplace-sync/internal/common/logger"
	"marketplace-sync/internal/common/observability"
	"marketplace-sync/internal/ledger"
	"marketplace-sync/internal/metadata"
	"marketplace-sync/internal/pinning"
	syncer "marketplace-sync/internal/sync"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting catalog sync",
		zap.String("name", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Ledger gateway client ---
	ledgerClient := ledger.NewGatewayClient(
		cfg.Ledger.GatewayURL,
		time.Duration(cfg.Ledger.RequestTimeout)*time.Millisecond,
		ledger.WithConfirmPolling(
			time.Duration(cfg.Ledger.ConfirmPollMs)*time.Millisecond,
			time.Duration(cfg.Ledger.ConfirmTimeoutMs)*time.Millisecond,
		),
	)

	// --- Resolution pipeline ---
	resolver := metadata.NewResolver(log,
		time.Duration(cfg.Metadata.FetchTimeoutMs)*time.Millisecond,
		metadata.WithMaxAttempts(cfg.Metadata.MaxAttempts),
		metadata.WithBackoffBase(time.Duration(cfg.Metadata.BackoffBaseMs)*time.Millisecond),
	)
	pacer := metadata.NewPacer(time.Duration(cfg.Metadata.PaceIntervalMs) * time.Millisecond)
	aggregator := catalog.NewAggregator(ledgerClient, resolver, pacer, log)

	// --- Snapshot publication ---
	store := catalog.NewStore()
	var publisher catalog.Publisher = store
	if cfg.Redis.Enabled {
		var redisClient *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redisClient, err = database.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return redisClient.Ping(pingCtx)
		}, 5, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis unavailable", zap.Error(err))
		}
		defer redisClient.Close()
		publisher = catalog.NewFanoutPublisher(
			store,
			catalog.NewRedisPublisher(redisClient.GetClient(), "catalog"),
		)
	}

	// --- Sync loop ---
	sync := syncer.NewSyncer(
		aggregator,
		publisher,
		cfg.Ledger.Account,
		time.Duration(cfg.Sync.IntervalSeconds)*time.Second,
		log,
		obs,
	)

	// --- Actions & API ---
	dispatcher := actions.NewDispatcher(
		ledgerClient,
		log,
		cfg.Ledger.MarketplaceAddress,
		cfg.Ledger.NFTAddress,
		func(context.Context) { sync.RequestRefresh() },
	)
	pinner := pinning.NewClient(
		cfg.Pinning.BaseURL,
		cfg.Pinning.APIKey,
		cfg.Pinning.APISecret,
		cfg.Pinning.GatewayBaseURL,
		time.Duration(cfg.Pinning.RequestTimeout)*time.Millisecond,
	)
	server := api.NewServer(store, dispatcher, pinner, sync.RequestRefresh, log)

	go sync.Run(ctx)

	zapLog.Info("api listening", zap.String("address", cfg.API.ListenAddress))
	if err := api.Serve(ctx, cfg.API.ListenAddress, server.Handler(), log); err != nil {
		zapLog.Fatal("api server failed", zap.Error(err))
	}

	zapLog.Info("shutdown complete")
}
