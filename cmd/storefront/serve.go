package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront-system/config"
	"storefront-system/internal/database"
	"storefront-system/internal/events"
	"storefront-system/internal/gateway"
	"storefront-system/internal/health"
	cartsvc "storefront-system/internal/services/cart/handler"
	catalogsvc "storefront-system/internal/services/catalog/handler"
	ordersvc "storefront-system/internal/services/orders/handler"
	txnsvc "storefront-system/internal/services/transactions/handler"
	usersvc "storefront-system/internal/services/user/handler"
	"storefront-system/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// newPublisher picks the event sink. A redis sink without a redis connection degrades to no-op.
func newPublisher(cfg config.EventConfig, redisClient *redis.Client, logger *zap.Logger) events.Publisher {
	switch cfg.Sink {
	case config.EventSinkKafka:
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case config.EventSinkRedis:
		if redisClient != nil {
			logger.Info("publishing events to redis", zap.String("prefix", cfg.ChannelPrefix))
			return events.NewRedisPublisher(redisClient, cfg.ChannelPrefix)
		}
		logger.Warn("redis unavailable, events are dropped")
	}
	return events.NewNopPublisher()
}

func serveAction(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	redisClient, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	publisher := newPublisher(cfg.Event, redisClient, logger)
	defer publisher.Close()

	jwt := utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)

	checks := map[string]gateway.HealthCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router, err := gateway.NewRouter(gateway.RouterConfig{
		RateLimit: cfg.RateLimit,
		JWT:       jwt,
		Logger:    logger,
		Checks:    checks,
	}, gateway.Services{
		Catalog:      catalogsvc.NewCatalogHandler(db, redisClient, logger),
		Carts:        cartsvc.NewCartHandler(db, publisher, logger),
		Orders:       ordersvc.NewOrderHandler(db, publisher, logger, cfg.Order.Transitions()),
		Transactions: txnsvc.NewTransactionHandler(db, publisher, logger, nil),
		Users:        usersvc.NewUserHandler(db, redisClient, jwt, logger),
	})
	if err != nil {
		return err
	}

	return run(ctx, cfg, db, router, logger)
}

// run serves HTTP and gRPC health until ctx is cancelled or either server fails.
func run(ctx context.Context, cfg config.Config, db *gorm.DB, router http.Handler, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitor := health.NewMonitor(func(ctx context.Context) error {
		return database.Ping(ctx, db)
	}, health.DefaultInterval, logger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- monitor.Serve(ctx, cfg.GRPCHealthAddr)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server started", zap.String("addr", cfg.HTTPAddr), zap.String("flavor", cfg.StoreFlavor))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "serve http")
			return
		}
		errCh <- nil
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	logger.Info("storefront stopped")
	return runErr
}
