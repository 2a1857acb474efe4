package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/example/technest/internal/api"
	"github.com/example/technest/internal/auth"
	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/backend/docstore"
	"github.com/example/technest/internal/backend/rest"
	"github.com/example/technest/internal/command"
	"github.com/example/technest/internal/config"
	"github.com/example/technest/internal/infrastructure/kafka"
	"github.com/example/technest/internal/infrastructure/store"
	"github.com/example/technest/internal/logging"
	"github.com/example/technest/internal/metrics"
	"github.com/example/technest/internal/query"
	"github.com/example/technest/internal/session"
	"github.com/example/technest/internal/validation"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.FromEnv()
	log := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	log.WithFields(logrus.Fields{
		"addr":          cfg.Addr,
		"backend":       cfg.BackendURL,
		"cart_strategy": cfg.CartStrategy,
		"cart_sync":     cfg.CartSync,
		"state_store":   cfg.StateStore,
		"kafka":         cfg.KafkaBrokers,
	}).Info("starting TechNest storefront")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	be, err := buildBackend(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to set up backend")
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to PostgreSQL")
		}
		defer db.Close()
		if err := store.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("failed to migrate PostgreSQL schema")
		}
		log.Info("connected to PostgreSQL")
	}

	state, closeState, err := buildStateStore(ctx, cfg, db)
	if err != nil {
		log.WithError(err).Fatal("failed to set up state store")
	}
	defer closeState()

	var publisher store.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	}

	var events store.EventLog
	if db != nil {
		events = store.NewPostgresEventStore(db, publisher)
	} else {
		events = store.NewEventStore(publisher)
	}

	registry := session.NewRegistry(session.Dependencies{
		Backend:               be,
		State:                 state,
		Events:                events,
		Log:                   log,
		Metrics:               m,
		RemoteCart:            cfg.CartSync == config.SyncRemote,
		RollbackOnSyncFailure: cfg.RollbackOnSyncFailure,
		ConfirmationDelay:     cfg.ConfirmationDelay,
		IdleTTL:               cfg.StateTTL,
	})
	go registry.Run(ctx)

	queryHandler := query.NewHandler(be.Catalog, validation.NewPriceFormatter(cfg.PriceLocale), query.DefaultCatalogTTL)
	cmdHandler := command.NewHandler(be.Catalog, queryHandler, logging.Component(log, "command"))
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	router := api.NewRouter(api.RouterConfig{
		Handlers:        api.NewHandlers(cmdHandler, queryHandler, registry, logging.Component(log, "api")),
		SessionHandlers: api.NewSessionHandlers(jwtService, registry),
		JWTService:      jwtService,
		Registry:        registry,
		Log:             logging.Component(log, "http"),
		Gatherer:        reg,
		RequestTimeout:  cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	log.Info("server stopped")
}

// buildBackend serves checkout and catalog over REST. The cart and wishlist
// move to DynamoDB when the docstore strategy is selected.
func buildBackend(ctx context.Context, cfg config.Config, log *logrus.Logger) (backend.Backend, error) {
	client := rest.NewClient(cfg.BackendURL, cfg.BackendTimeout, logging.Component(log, "backend"))
	be := client.Backend()
	if cfg.CartStrategy != config.StrategyDocstore {
		return be, nil
	}

	dynamo, err := docstore.NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
	if err != nil {
		return backend.Backend{}, err
	}
	docs := docstore.NewStore(dynamo, cfg.DynamoTable)
	be.Cart = docs
	be.Wishlist = docs
	log.WithField("table", cfg.DynamoTable).Info("cart and wishlist stored in DynamoDB")
	return be, nil
}

func buildStateStore(ctx context.Context, cfg config.Config, db *sql.DB) (store.StateStore, func(), error) {
	switch cfg.StateStore {
	case config.StateRedis:
		client, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStateStore(client, cfg.StateTTL), func() { _ = client.Close() }, nil
	case config.StatePostgres:
		return store.NewPostgresStateStore(db), func() {}, nil
	default:
		return store.NewMemoryStateStore(), func() {}, nil
	}
}
