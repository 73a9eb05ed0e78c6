// Package config загружает конфигурацию сервиса из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Бэкенды хранилища событий
const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
	StoreBackendMongoDB  = "mongodb"
)

// Бэкенды message bus
const (
	BusBackendMemory = "memory"
	BusBackendNATS   = "nats"
	BusBackendKafka  = "kafka"
)

// Config конфигурация сервиса счетов
type Config struct {
	Service  ServiceConfig  `envPrefix:"SERVICE_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Bus      BusConfig      `envPrefix:"BUS_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Consumer ConsumerConfig `envPrefix:"CONSUMER_"`
}

// ServiceConfig общие настройки сервиса
type ServiceConfig struct {
	Name     string `env:"NAME" envDefault:"account-service"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// HTTPConfig настройки HTTP сервера
type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// StoreConfig настройки хранилища событий
type StoreConfig struct {
	Backend       string `env:"BACKEND" envDefault:"memory"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"vaultstream"`
	Migrate       bool   `env:"MIGRATE" envDefault:"true"`
}

// BusConfig настройки message bus
type BusConfig struct {
	Backend      string   `env:"BACKEND" envDefault:"memory"`
	NATSURL      string   `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"account-service"`
}

// RedisConfig настройки Redis для идемпотентности консьюмера
type RedisConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// ConsumerConfig настройки консьюмера клиентских событий
type ConsumerConfig struct {
	Enabled         bool   `env:"ENABLED" envDefault:"true"`
	Subject         string `env:"SUBJECT" envDefault:"vaultstream.customer.events"`
	DefaultCurrency string `env:"DEFAULT_CURRENCY" envDefault:"USD"`
}

// Load читает конфигурацию из переменных окружения
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("STORE_POSTGRES_DSN is required for postgres backend")
		}
	case StoreBackendMongoDB:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("STORE_MONGO_URI is required for mongodb backend")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}

	switch c.Bus.Backend {
	case BusBackendMemory, BusBackendNATS:
	case BusBackendKafka:
		if len(c.Bus.KafkaBrokers) == 0 {
			return fmt.Errorf("BUS_KAFKA_BROKERS is required for kafka backend")
		}
	default:
		return fmt.Errorf("unknown bus backend: %s", c.Bus.Backend)
	}
	return nil
}
