package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/journeygate/api"
	"github.com/Domenick1991/journeygate/config"
	"github.com/Domenick1991/journeygate/internal/auth"
	"github.com/Domenick1991/journeygate/internal/bootstrap"
	"github.com/Domenick1991/journeygate/internal/cache"
	"github.com/Domenick1991/journeygate/internal/domain"
	"github.com/Domenick1991/journeygate/internal/flowstore"
	"github.com/Domenick1991/journeygate/internal/kafka"
	"github.com/Domenick1991/journeygate/internal/logging"
	"github.com/Domenick1991/journeygate/internal/pricing"
	"github.com/Domenick1991/journeygate/internal/proxy"
	"github.com/Domenick1991/journeygate/internal/registry"
	"github.com/Domenick1991/journeygate/internal/repository"
	"github.com/Domenick1991/journeygate/internal/service/booking"
	"github.com/Domenick1991/journeygate/internal/service/checkout"
	"github.com/Domenick1991/journeygate/internal/upstream"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// sessionStorage is what the flow store, the receipts and the submit/payment
// locks need from the session backend.
type sessionStorage interface {
	flowstore.SessionStorage
	flowstore.ReceiptStorage
	booking.Locker
}

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logging.New("info").WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services := registry.New(cfg.Services, registry.FromEnv(os.LookupEnv))
	router := proxy.NewRouter(services, &http.Client{Timeout: cfg.Upstream.Timeout()}, logger)
	backends := upstream.New(router, logger)

	var sessions sessionStorage
	if cfg.Redis.Addr != "" {
		redisStorage := cache.NewRedisStorage(cfg.Redis, cfg.Flow.SessionTTL())
		defer redisStorage.Close()
		if err := redisStorage.Ping(ctx); err != nil {
			logger.WithError(err).Fatal("connect redis")
		}
		sessions = redisStorage
	} else {
		logger.Warn("redis not configured, keeping booking flows in memory")
		sessions = cache.NewMemoryStorage(cfg.Flow.SessionTTL())
	}
	store := flowstore.New(sessions, logger)
	receipts := flowstore.NewReceipts(sessions, logger)

	pricer := pricing.New(decimal.NewFromFloat(cfg.Flow.TaxRate), domain.ExtraPrices(domain.DefaultExtras()))

	var emitter *kafka.Emitter
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			logger.WithError(err).Warn("kafka unreachable at startup, flow events may be dropped")
		}
		emitter = kafka.NewEmitter(producer, cfg.Kafka.FlowEventsTopic, cfg.Kafka.NotificationsTopic, logger)
	} else {
		logger.Warn("kafka not configured, flow events are disabled")
	}

	flowService := booking.NewFlowService(
		store,
		sessions,
		backends,
		backends,
		pricer,
		emitter,
		logger,
		booking.WithClassType(cfg.Flow.ClassType),
		booking.WithCurrency(cfg.Flow.Currency),
		booking.WithLockTTL(cfg.Flow.LockTTL()),
	)

	checkoutService := checkout.NewCheckoutService(
		[]checkout.Resolver{
			checkout.NewSnapshotResolver(store, receipts),
			checkout.NewFlowResolver(store, pricer, cfg.Flow.Currency),
			checkout.NewBookingServiceResolver(backends, backends, pricer, cfg.Flow.Currency),
		},
		store,
		receipts,
		sessions,
		backends,
		emitter,
		logger,
		checkout.WithCurrency(cfg.Flow.Currency),
		checkout.WithLockTTL(cfg.Flow.LockTTL()),
	)

	handlers := bootstrap.Handlers{
		Proxy:    api.NewProxyHandler(router),
		Flow:     api.NewFlowHandler(flowService, auth.NewTokenReader(cfg.Auth.JWTSecret)),
		Catalog:  api.NewCatalogHandler(domain.DefaultExtras()),
		Checkout: api.NewCheckoutHandler(checkoutService),
	}

	if cfg.Database.Enabled() {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.WithError(err).Fatal("connect postgres")
		}
		defer pool.Close()
		ledger, err := repository.OpenOrderLedger(ctx, pool)
		if err != nil {
			logger.WithError(err).Fatal("prepare order ledger")
		}
		handlers.Audit = api.NewAuditHandler(ledger)
	}

	if err := bootstrap.Run(ctx, cfg, logger, handlers); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}
