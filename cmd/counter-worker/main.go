package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/booking"
	"github.com/hackgods/service-provider-scheduling/internal/config"
	"github.com/hackgods/service-provider-scheduling/internal/db"
	"github.com/hackgods/service-provider-scheduling/pkg/logger"
)

// counter-worker zeroes each provider's daily order counter once the
// provider's local date has moved past the date the counter belongs to.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}
	if cfg.StoreDriver != config.StorePostgres {
		panic("counter-worker needs STORE_DRIVER=postgres")
	}

	log := logger.Must(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	log.Info("counter-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Resets run in one UPDATE, so no slot lock is needed here.
	svc := booking.NewService(booking.NewPgRepository(pgPool), nil, cfg, booking.WithLogger(log.Named("booking")))

	// Run once at startup
	runOnce(rootCtx, log, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping counter worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, log, svc)
		}
	}
}

func runOnce(ctx context.Context, log *zap.Logger, svc *booking.Service) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	reset, err := svc.ResetDailyCounters(runCtx)
	if err != nil {
		log.Error("counter reset failed", zap.Error(err))
		return
	}
	log.Info("counter reset complete",
		zap.Int64("providers_reset", reset),
		zap.Duration("took", time.Since(start)),
	)
}
