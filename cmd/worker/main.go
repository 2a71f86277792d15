package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/journeygate/config"
	"github.com/Domenick1991/journeygate/internal/kafka"
	"github.com/Domenick1991/journeygate/internal/logging"
	"github.com/Domenick1991/journeygate/internal/notify"
	"github.com/Domenick1991/journeygate/internal/repository"
	"github.com/Domenick1991/journeygate/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

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

	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.FlowEventsTopic == "" {
		logger.Fatal("kafka brokers and flow_events_topic are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ledger worker.Ledger
	if cfg.Database.Enabled() {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.WithError(err).Fatal("connect postgres")
		}
		defer pool.Close()

		orders, err := repository.OpenOrderLedger(ctx, pool)
		if err != nil {
			logger.WithError(err).Fatal("prepare order ledger")
		}
		ledger = orders
	} else {
		logger.Warn("database not configured, flow events are not audited")
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.FlowEventsTopic, logger)
	defer consumer.Close()

	handler := worker.NewEventHandler(ledger, notify.NewSender(logger), logger)

	logger.WithField("topic", cfg.Kafka.FlowEventsTopic).Info("worker started")
	if err := consumer.ConsumeEvents(ctx, handler.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("consumer stopped")
		return
	}
	logger.Info("worker stopped")
}
