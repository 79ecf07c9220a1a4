package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/api"
	"github.com/hackgods/service-provider-scheduling/internal/booking"
	"github.com/hackgods/service-provider-scheduling/internal/catalog"
	"github.com/hackgods/service-provider-scheduling/internal/config"
	"github.com/hackgods/service-provider-scheduling/internal/db"
	"github.com/hackgods/service-provider-scheduling/internal/metrics"
	redisclient "github.com/hackgods/service-provider-scheduling/internal/redis"
	"github.com/hackgods/service-provider-scheduling/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.Must(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store", cfg.StoreDriver),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var (
		bookingRepo booking.Repository
		catalogRepo catalog.Repository
		locker      redisclient.Locker
		pgPool      *pgxpool.Pool
		rdb         *redis.Client
	)

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			log.Fatal("postgres connection error", zap.Error(err))
		}
		defer pgPool.Close()
		log.Info("connected to Postgres")

		redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err = redisclient.NewRedisClient(redisCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		cancelRedis()
		if err != nil {
			log.Fatal("redis connection error", zap.Error(err))
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", zap.Error(err))
			}
		}()
		log.Info("connected to Redis")

		bookingRepo = booking.NewPgRepository(pgPool)
		catalogRepo = catalog.NewPgRepository(pgPool)
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	case config.StoreMemory:
		log.Warn("using in-memory store, data is lost on restart")
		bookingRepo = booking.NewMemoryRepository()
		catalogRepo = catalog.NewMemoryRepository()
		locker = redisclient.NewLocalSlotLocker()
	}

	scheduling := booking.NewService(bookingRepo, locker, cfg,
		booking.WithLogger(log.Named("booking")),
		booking.WithMetrics(metrics.NewSchedulingMetrics(reg)),
	)
	cat := catalog.NewCatalog(catalogRepo, scheduling, log.Named("catalog"))

	routerCfg := api.RouterConfig{
		Scheduling:     scheduling,
		Catalog:        cat,
		Logger:         log.Named("http"),
		Gatherer:       reg,
		Redis:          rdb,
		Env:            cfg.Env,
		Version:        version,
		AdminJWTSecret: cfg.AdminJWTSecret,
		RequestTimeout: cfg.RequestTimeout,
	}
	if pgPool != nil {
		routerCfg.PgPool = pgPool
	}
	if cfg.AdminJWTSecret == "" {
		log.Warn("ADMIN_JWT_SECRET is empty, admin routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
