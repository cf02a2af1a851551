package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alimkdd/retry-engine/internal/breaker"
	"github.com/alimkdd/retry-engine/internal/config"
	"github.com/alimkdd/retry-engine/internal/gateway"
	"github.com/alimkdd/retry-engine/internal/handler"
	"github.com/alimkdd/retry-engine/internal/infra/postgresql"
	"github.com/alimkdd/retry-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/alimkdd/retry-engine/internal/infra/redis"
	"github.com/alimkdd/retry-engine/internal/observability"
	"github.com/alimkdd/retry-engine/internal/queue"
	"github.com/alimkdd/retry-engine/internal/repository"
	"github.com/alimkdd/retry-engine/internal/retrypolicy"
	"github.com/alimkdd/retry-engine/internal/service"
	"github.com/alimkdd/retry-engine/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	policyTable, breakerConfig, err := config.LoadRetryConfig(cfg.RetryConfigPath)
	if err != nil {
		logger.Fatal("retry config load failed", zap.Error(err))
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewFailureLimiter(rdb)
	if err != nil {
		logger.Fatal("failure limiter initialization failed", zap.Error(err))
	}

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()

	publisher := queue.NewRabbitMQPublisher(mq)
	consumer := queue.NewRabbitMQConsumer(mq, cfg.WorkerConcurrency, logger)

	transactionRepo := repository.NewGormTransactionRepo(db)
	retryQueueRepo := repository.NewGormRetryQueueRepo(db)
	breakerStateRepo := repository.NewGormBreakerStateRepo(db)

	metrics := observability.NewMetrics()

	breakers := breaker.NewRegistry(breakerConfig, breakerStateRepo, logger)
	breakers.SetTransitionHook(func(gw string, from, to breaker.State) {
		metrics.IncBreakerTransition(gw, to.String())
	})
	breakers.SetFailureHook(metrics.IncGatewayFailure)

	rehydrateCtx, cancelRehydrate := context.WithTimeout(context.Background(), 5*time.Second)
	if err := breakers.Rehydrate(rehydrateCtx); err != nil {
		logger.Warn("circuit breaker rehydration failed", zap.Error(err))
	}
	cancelRehydrate()

	var gw gateway.Gateway
	if cfg.GatewayBaseURL != "" {
		gw, err = gateway.NewHTTPGateway(cfg.GatewayBaseURL)
		if err != nil {
			logger.Fatal("gateway initialization failed", zap.Error(err))
		}
	} else {
		gw = gateway.NewSimulator()
	}

	resolver := retrypolicy.NewResolver(policyTable, time.Now)

	orchestrator := service.NewRetryOrchestrator(
		transactionRepo,
		retryQueueRepo,
		publisher,
		gw,
		breakers,
		resolver,
		limiter,
		logger,
	)
	orchestrator.SetMetrics(metrics)

	transactionService := service.NewTransactionService(
		transactionRepo,
		retryQueueRepo,
		publisher,
		limiter,
		logger,
	)

	consumerService, err := service.NewConsumerService(consumer, orchestrator, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("consumer service initialization failed", zap.Error(err))
	}
	consumerService.SetMetrics(metrics)

	sweeper, err := service.NewRetrySweeper(
		transactionRepo,
		retryQueueRepo,
		publisher,
		time.Duration(cfg.SweepIntervalSec)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatal("sweeper initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb, mq)
	if err := handler.RegisterTransactionRoutes(app, transactionService); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("retry-engine api started",
			zap.Int("port", cfg.APIPort),
			zap.String("gateway", cfg.GatewayName),
		)
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	g.Go(func() error {
		return consumerService.Start(groupCtx)
	})

	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("retry-engine stopped with error", zap.Error(err))
	}

	logger.Info("retry-engine shut down")
}
