package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/auth"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
)

func main() {
	cfg := config.Load()
	logging.SetLevel(cfg.LogLevel)
	defer logging.Sync()

	logger := logging.NewLoggerV2("storefront-service")
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", logging.Fields{"error": err.Error()})
	}
	logging.Infof("Starting storefront-service on port %d", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to migrate database", logging.Fields{"error": err.Error()})
	}
	logging.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	redisClient := repository.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	m := metrics.NewDefault()

	orderRepo := repository.NewPostgresOrderRepository(db, logger)
	paymentRepo := repository.NewPostgresPaymentRepository(db, logger)

	var orderCache repository.OrderCache = repository.NopOrderCache{}
	if cfg.Features.EnableOrderCaching {
		orderCache = repository.NewRedisOrderCache(redisClient, cfg.Redis.TTL, logger)
	}

	var locker repository.OrderLocker = repository.NewLocalOrderLocker()
	if cfg.Features.EnableRedisLock {
		locker = repository.NewRedisOrderLocker(redisClient, cfg.OrderLockTTL, logger)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Features.EnableOrderEvents {
		publisher = events.NewKafkaPublisher(cfg.Kafka, logger)
	}
	defer publisher.Close()

	gateway, err := clients.NewCieloGatewayClient(cfg.Gateway, logger, m)
	if err != nil {
		logger.Fatal("Failed to configure payment gateway", logging.Fields{"error": err.Error()})
	}

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to configure authentication", logging.Fields{"error": err.Error()})
	}

	stateMachine := service.NewOrderStateMachine(orderRepo, orderCache, publisher, m, logger)
	orderService := service.NewOrderService(orderRepo, paymentRepo, locker, orderCache, stateMachine, publisher, logger)
	paymentService := service.NewPaymentService(
		orderRepo,
		paymentRepo,
		gateway,
		stateMachine,
		locker,
		publisher,
		m,
		logger,
	)

	h := handlers.NewHandlers(orderService, paymentService, cfg, readinessChecks(db, redisClient))
	srv := server.New(cfg, h, verifier, m, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", logging.Fields{
			"port":                 cfg.Server.Port,
			"sandbox":              cfg.Gateway.Sandbox,
			"enable_order_events":  cfg.Features.EnableOrderEvents,
			"enable_order_caching": cfg.Features.EnableOrderCaching,
			"enable_redis_lock":    cfg.Features.EnableRedisLock,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.Features.EnableNotificationConsumer {
		consumer := events.NewNotificationConsumer(cfg.Kafka, paymentService, logger)
		g.Go(func() error {
			defer consumer.Close()
			if err := consumer.Start(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", logging.Fields{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info("Server exited")
}

func readinessChecks(db *sql.DB, rdb *redis.Client) map[string]handlers.ReadinessCheck {
	return map[string]handlers.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
}
