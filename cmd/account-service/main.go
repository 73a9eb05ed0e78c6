// account-service: Event Sourced сервис банковских счетов.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/mayorajesus182/vaultstream-banking/application"
	"github.com/mayorajesus182/vaultstream-banking/config"
	"github.com/mayorajesus182/vaultstream-banking/eventsourcing"
	"github.com/mayorajesus182/vaultstream-banking/messagebus"
	"github.com/mayorajesus182/vaultstream-banking/messaging"
	"github.com/mayorajesus182/vaultstream-banking/metrics"
	"github.com/mayorajesus182/vaultstream-banking/migrations"
	"github.com/mayorajesus182/vaultstream-banking/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Service.LogLevel)
	slog.SetDefault(logger)
	logger.Info("starting account service",
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("bus_backend", cfg.Bus.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meterProvider, err := metrics.Setup(metrics.Config{ServiceName: cfg.Service.Name})
	if err != nil {
		return fmt.Errorf("failed to setup metrics: %w", err)
	}
	defer func() {
		_ = metrics.Shutdown(context.Background(), meterProvider)
	}()

	serviceMetrics, err := metrics.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	registry := application.NewAccountEventRegistry()

	store, storeHealth, closeStore, err := newEventStore(ctx, cfg, registry)
	if err != nil {
		return err
	}
	defer closeStore()

	bus, err := newMessageBus(cfg)
	if err != nil {
		return err
	}
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start message bus: %w", err)
	}
	defer func() {
		_ = bus.Stop(context.Background())
	}()

	publisher, err := messaging.NewPublisher(bus, messaging.DefaultPublisherConfig())
	if err != nil {
		return err
	}
	publisher.WithMetrics(serviceMetrics).WithLogger(logger)

	commands, err := application.NewCommandHandlerBuilder(store).
		WithPublisher(publisher).
		WithMetrics(serviceMetrics).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	queries := application.NewQueryHandler(store).
		WithMetrics(serviceMetrics).
		WithLogger(logger)

	if cfg.Consumer.Enabled {
		idempotency, err := newIdempotencyStore(ctx, cfg)
		if err != nil {
			return err
		}
		consumer, err := messaging.NewCustomerEventConsumer(commands, idempotency, messaging.CustomerEventConsumerConfig{
			Subject:         cfg.Consumer.Subject,
			DefaultCurrency: cfg.Consumer.DefaultCurrency,
		})
		if err != nil {
			return err
		}
		consumer.WithLogger(logger)
		if err := consumer.Start(ctx, bus); err != nil {
			return fmt.Errorf("failed to start customer event consumer: %w", err)
		}
	}

	rest, err := transport.NewRESTAdapter(transport.RESTConfig{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, commands, queries)
	if err != nil {
		return err
	}
	rest.WithLogger(logger)
	if storeHealth != nil {
		rest.WithHealthCheck(storeHealth)
	}
	if err := rest.Start(ctx); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := rest.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop http server: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newEventStore(ctx context.Context, cfg *config.Config, registry *eventsourcing.EventRegistry) (eventsourcing.IndexedEventStore, transport.HealthChecker, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		if cfg.Store.Migrate {
			if err := migratePostgres(cfg.Store.PostgresDSN); err != nil {
				return nil, nil, nil, err
			}
		}
		storeConfig := eventsourcing.DefaultPostgresEventStoreConfig()
		storeConfig.DSN = cfg.Store.PostgresDSN
		store, err := eventsourcing.NewPostgresEventStore(ctx, storeConfig, registry)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create postgres event store: %w", err)
		}
		return store, store.HealthCheck, store.Close, nil

	case config.StoreBackendMongoDB:
		storeConfig := eventsourcing.DefaultMongoDBEventStoreConfig()
		storeConfig.URI = cfg.Store.MongoURI
		storeConfig.Database = cfg.Store.MongoDatabase
		store, err := eventsourcing.NewMongoDBEventStore(ctx, storeConfig, registry)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create mongodb event store: %w", err)
		}
		closeStore := func() {
			_ = store.Close(context.Background())
		}
		return store, store.HealthCheck, closeStore, nil

	default:
		store := eventsourcing.NewInMemoryEventStore(eventsourcing.DefaultInMemoryEventStoreConfig())
		return store, nil, func() {}, nil
	}
}

func migratePostgres(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return err
	}
	return nil
}

type lifecycleBus interface {
	messagebus.MessageBus
	messagebus.Lifecycle
}

func newMessageBus(cfg *config.Config) (lifecycleBus, error) {
	switch cfg.Bus.Backend {
	case config.BusBackendNATS:
		return messagebus.NewNATSAdapter(cfg.Bus.NATSURL)
	case config.BusBackendKafka:
		kafkaConfig := messagebus.DefaultKafkaConfig()
		kafkaConfig.Brokers = cfg.Bus.KafkaBrokers
		kafkaConfig.GroupID = cfg.Bus.KafkaGroupID
		return messagebus.NewKafkaAdapter(kafkaConfig)
	default:
		return messagebus.NewInMemoryAdapter(messagebus.DefaultInMemoryConfig()), nil
	}
}

func newIdempotencyStore(ctx context.Context, cfg *config.Config) (messaging.IdempotencyStore, error) {
	if !cfg.Redis.Enabled {
		return messaging.NewInMemoryIdempotencyStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return messaging.NewRedisIdempotencyStore(client, messaging.DefaultRedisIdempotencyStoreConfig())
}
