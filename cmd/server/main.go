// @title Storefront API
// @version 1.0
// @description 商品目录、购物车与结算下单 API
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/storefront/config"
	"github.com/d60-Lab/storefront/internal/api"
	"github.com/d60-Lab/storefront/internal/api/handler"
	"github.com/d60-Lab/storefront/internal/api/middleware"
	"github.com/d60-Lab/storefront/internal/auth"
	"github.com/d60-Lab/storefront/internal/cache"
	"github.com/d60-Lab/storefront/internal/observability"
	"github.com/d60-Lab/storefront/internal/outbox"
	"github.com/d60-Lab/storefront/internal/payment"
	"github.com/d60-Lab/storefront/internal/repository"
	"github.com/d60-Lab/storefront/internal/service"
	"github.com/d60-Lab/storefront/pkg/database"
	"github.com/d60-Lab/storefront/pkg/logger"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.L()
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, cfg.Log.Service, cfg.Log.Env)
	if err != nil {
		return err
	}
	sentryOn, err := observability.InitSentry(cfg.Sentry, version)
	if err != nil {
		return err
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	metrics := observability.NewMetrics("storefront")

	users := repository.NewUserRepository(db)
	var categories repository.CategoryRepository = repository.NewCategoryRepository(db)
	products := repository.NewProductRepository(db)
	carts := repository.NewCartRepository(db)
	orders := repository.NewOrderRepository(db)
	events := repository.NewOutboxRepository(db)

	gateway, err := newGateway(cfg.Payment, log)
	if err != nil {
		return err
	}
	var locker service.CheckoutLocker = service.NewLocalCheckoutLocker()
	if cfg.Redis.Enabled {
		client, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		locker = service.NewRedisCheckoutLocker(client, cfg.Redis.LockTTL)
		if cfg.Redis.CacheTTL > 0 {
			categories = cache.NewCategoryCache(categories, client, cfg.Redis.CacheTTL)
		}
	}

	checkout := service.NewCheckoutService(service.CheckoutDeps{
		DB:             db,
		Carts:          carts,
		Products:       products,
		Orders:         orders,
		Outbox:         events,
		Gateway:        payment.Instrument(gateway, metrics),
		Locker:         locker,
		Metrics:        metrics,
		Currency:       cfg.Payment.Currency,
		PaymentTimeout: cfg.Payment.Timeout,
	})
	h := handler.NewHandler(
		service.NewCatalogService(categories, products),
		service.NewCartService(db, carts, products),
		checkout,
		service.NewOrderService(db, orders, products, events, metrics),
	)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	router := api.NewRouter(api.RouterDeps{
		Handler:      h,
		Tokens:       auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer),
		Users:        users,
		Logger:       log,
		Metrics:      metrics,
		RateLimiter:  limiter,
		AllowOrigins: cfg.CORS.AllowOrigins,
		Tracing:      cfg.Tracing.Enabled,
		Sentry:       sentryOn,
		ServiceName:  cfg.Log.Service,
	})

	stopRelay := func(context.Context) error { return nil }
	if cfg.Outbox.Enabled {
		publisher, closePublisher, err := newPublisher(cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer closePublisher()
		relay := outbox.NewRelay(events, publisher, outbox.Options{
			BatchSize:    cfg.Outbox.BatchSize,
			PollInterval: cfg.Outbox.PollInterval,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			ClaimTimeout: cfg.Outbox.ClaimTimeout,
			Metrics:      metrics,
			Logger:       log,
		})
		stopRelay = relay.Start()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", version),
			zap.String("payment_driver", cfg.Payment.Driver),
			zap.Bool("redis_lock", cfg.Redis.Enabled),
			zap.Bool("kafka", cfg.Kafka.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := stopRelay(shutdownCtx); err != nil {
		log.Error("outbox relay shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown", zap.Error(err))
	}
	if sentryOn {
		observability.FlushSentry(2 * time.Second)
	}
	log.Info("server stopped")
	return nil
}

func newGateway(cfg config.PaymentConfig, log *zap.Logger) (payment.Gateway, error) {
	switch cfg.Driver {
	case "stripe":
		if cfg.StripePaymentMethod == "" {
			log.Warn("payment.stripe_payment_method not set: checkout only succeeds with a payment_intent_id confirmed by the client")
		}
		return payment.NewStripeGateway(cfg.StripeSecretKey, payment.StripeOptions{
			PaymentMethod: cfg.StripePaymentMethod,
			APIURL:        cfg.StripeAPIURL,
			HTTPClient:    &http.Client{Timeout: cfg.Timeout},
			Logger:        log.Named("stripe"),
		}), nil
	case "simulated", "":
		log.Warn("using simulated payment gateway")
		return payment.NewSimulatedGateway(), nil
	default:
		return nil, fmt.Errorf("unknown payment driver %q", cfg.Driver)
	}
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func newPublisher(cfg config.KafkaConfig, log *zap.Logger) (outbox.Publisher, func(), error) {
	if !cfg.Enabled {
		return outbox.NewLogPublisher(log), func() {}, nil
	}
	p, err := outbox.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Close(ctx); err != nil {
			log.Error("kafka close", zap.Error(err))
		}
	}, nil
}
