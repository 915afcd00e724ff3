package main

import (
	"context"
	"fmt"
	"time"

	"pos-backend/config"
	"pos-backend/internal/broker"
	"pos-backend/internal/models"
	"pos-backend/internal/provider"
	"pos-backend/internal/redisclient"
	"pos-backend/internal/service"
	"pos-backend/internal/store"
	"pos-backend/internal/util"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// deps holds the connections and services shared by serve and reconcile
type deps struct {
	store      *store.Store
	redis      *redisclient.Client
	producer   *broker.Producer
	orders     *service.OrderService
	payments   *service.PaymentService
	reconciler *service.Reconciler
}

func newDeps(cfg *config.Config) (*deps, error) {
	logger := util.GetLogger()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicOrder))

	orders := service.NewOrderService(db, db, broker.NewEventPublisher(producer))
	payments := service.NewPaymentService(db, orders)

	registry := provider.NewHTTPRegistry(providerEndpoints(cfg.Providers), cfg.Reconcile.Timeout)
	reconciler := service.NewReconciler(db, payments, registry,
		service.WithLocker(redisClient, cfg.Reconcile.LockTTL),
		service.WithConcurrency(cfg.Reconcile.Concurrency))

	return &deps{
		store:      db,
		redis:      redisClient,
		producer:   producer,
		orders:     orders,
		payments:   payments,
		reconciler: reconciler,
	}, nil
}

// Close releases connections in reverse order of creation
func (d *deps) Close() {
	logger := util.GetLogger()
	if err := d.producer.Close(); err != nil {
		logger.Warn("Kafka producer close failed", zap.Error(err))
	}
	if err := d.redis.Close(); err != nil {
		logger.Warn("Redis close failed", zap.Error(err))
	}
	if err := d.store.Close(); err != nil {
		logger.Warn("Database close failed", zap.Error(err))
	}
}

func providerEndpoints(p config.ProvidersConfig) map[models.PaymentProvider]provider.Endpoint {
	return map[models.PaymentProvider]provider.Endpoint{
		models.ProviderXendit:    {URL: p.XenditURL, APIKey: p.XenditKey},
		models.ProviderStripe:    {URL: p.StripeURL, APIKey: p.StripeKey},
		models.ProviderAdyen:     {URL: p.AdyenURL, APIKey: p.AdyenKey},
		models.ProviderGoPay:     {URL: p.GoPayURL, APIKey: p.GoPayKey},
		models.ProviderShopeePay: {URL: p.ShopeePayURL, APIKey: p.ShopeePayKey},
	}
}

func shutdownTracer(tp *sdktrace.TracerProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		util.GetLogger().Warn("Error shutting down tracer", zap.Error(err))
	}
}
