package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"procurement-service/internal/handler"
	mid "procurement-service/internal/middleware"
	"procurement-service/internal/procurement"
	"procurement-service/internal/repository"
	"procurement-service/pkg/config"
	"procurement-service/pkg/database"
	"procurement-service/pkg/jwtutil"
	"procurement-service/pkg/lock"
	"procurement-service/pkg/logger"
	"procurement-service/pkg/tracing"
	"procurement-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "procurement-service"

func main() {
	// Load configuration
	appConfig, err := config.Load(serviceName)
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting procurement-service", appConfig.LogConfig()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(appConfig, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Initialize Prometheus metrics
	metrics := prometheus.NewMetrics(promclient.DefaultRegisterer, appConfig.Metrics.Prefix)
	log.Info("Prometheus metrics initialized", zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	db, err := database.InitDB(&appConfig.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database migrations completed")

	// Redis is optional: it backs the distributed lock and the outbound transport
	var (
		locker lock.Locker = lock.NewLocal()
		sender procurement.Sender = procurement.NewLogSender(log)
	)
	if appConfig.Redis.Enabled() {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:        appConfig.Redis.Addr,
			Password:    appConfig.Redis.Password,
			DB:          appConfig.Redis.DB,
			DialTimeout: 5 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", appConfig.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()

		locker = lock.NewRedis(rdb, log, 10*time.Second)
		sender = procurement.NewRedisSender(rdb, appConfig.Redis.Channel)
		log.Info("Redis connected", zap.String("addr", appConfig.Redis.Addr), zap.String("channel", appConfig.Redis.Channel))
	} else {
		log.Warn("REDIS_ADDR not set; using in-process locks and log-only message delivery")
	}

	svc, err := procurement.NewService(procurement.Options{
		Store:    repository.NewStore(db, metrics),
		Locker:   locker,
		Logger:   log,
		Metrics:  metrics,
		Defaults: appConfig.Procurement,
	})
	if err != nil {
		log.Fatal("Failed to create procurement service", zap.Error(err))
	}

	if appConfig.Backfill.Interval > 0 {
		go svc.RunBackfillSweep(ctx, appConfig.Backfill.Interval, appConfig.Backfill.Actor, appConfig.Backfill.Concurrency)
		log.Info("Backfill sweep scheduled", zap.Duration("interval", appConfig.Backfill.Interval))
	}
	if appConfig.Dispatch.Interval > 0 {
		go svc.RunDispatcher(ctx, sender, appConfig.Dispatch.Interval, appConfig.Dispatch.BatchSize)
		log.Info("Message dispatcher scheduled", zap.Duration("interval", appConfig.Dispatch.Interval))
	}

	jwtUtil := jwtutil.NewJWTUtil(&appConfig.JWT)
	h := handler.NewHandler(svc, db)

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(mid.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(mid.MetricsMiddleware(metrics))

	// Routes
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", h.HealthCheck)

	// Procurement API routes - auth middleware validates the JWT and extracts the tenant
	h.Register(e.Group("/api/procurement", mid.AuthMiddleware(jwtUtil, metrics)))

	// Start server
	go func() {
		port := appConfig.Server.Port
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Tracing shutdown failed", zap.Error(err))
	}
}
