package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/example/technest/internal/config"
	"github.com/example/technest/internal/email"
	"github.com/example/technest/internal/infrastructure/kafka"
	"github.com/example/technest/internal/infrastructure/store"
	"github.com/example/technest/internal/logging"
	"github.com/example/technest/internal/notification"
)

// consumerGroup is dedicated to order confirmation mail.
const consumerGroup = "technest-order-notifier"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.FromEnv()
	log := logging.New(cfg.LogLevel)
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	log.WithFields(logrus.Fields{
		"kafka": cfg.KafkaBrokers,
		"topic": cfg.KafkaTopic,
		"group": consumerGroup,
		"smtp":  cfg.SMTPHost + ":" + cfg.SMTPPort,
		"from":  cfg.SMTPFrom,
	}).Info("starting TechNest order notifier")

	// Billing forms are only visible here when the storefront persists
	// them to a shared store.
	var state store.StateStore
	switch cfg.StateStore {
	case config.StateRedis:
		client, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		defer client.Close()
		state = store.NewRedisStateStore(client, cfg.StateTTL)
	case config.StatePostgres:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to PostgreSQL")
		}
		defer db.Close()
		state = store.NewPostgresStateStore(db)
	}

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, state, logging.Component(log, "notifier"))

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup, logging.Component(log, "kafka"))
	defer consumer.Close()

	log.Info("consuming events")
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("consumer stopped")
	}
	log.Info("shutting down")
}
