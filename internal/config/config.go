package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	HTTPPort           string
	Store              string
	MongoURI           string
	MongoDBName        string
	MigrationsPath     string
	RunMigrations      bool
	RedisAddr          string
	RedisPassword      string
	KafkaBrokers       []string
	OutboxTopic        string
	ExpressShippingFee float64
	RequestTimeout     time.Duration
	TxTimeout          time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		Store:          strings.ToLower(getEnv("STORE", StoreMongo)),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "storefront"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "internal/repository/migrations"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:   splitList(getEnv("KAFKA_BROKERS", "")),
		OutboxTopic:    getEnv("OUTBOX_TOPIC", "checkout-orders"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RunMigrations, err = strconv.ParseBool(getEnv("RUN_MIGRATIONS", "true")); err != nil {
		return nil, fmt.Errorf("invalid RUN_MIGRATIONS: %w", err)
	}
	if cfg.ExpressShippingFee, err = strconv.ParseFloat(getEnv("EXPRESS_SHIPPING_FEE", "10.00"), 64); err != nil {
		return nil, fmt.Errorf("invalid EXPRESS_SHIPPING_FEE: %w", err)
	}
	if cfg.MaxRequestBodySize, err = strconv.ParseInt(getEnv("MAX_REQUEST_BODY_SIZE", "1048576"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid MAX_REQUEST_BODY_SIZE: %w", err)
	}
	if cfg.RequestTimeout, err = time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}
	if cfg.TxTimeout, err = time.ParseDuration(getEnv("TX_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid TX_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	if cfg.Store != StoreMongo && cfg.Store != StoreMemory {
		return nil, fmt.Errorf("invalid STORE %q: must be %q or %q", cfg.Store, StoreMongo, StoreMemory)
	}
	if cfg.ExpressShippingFee < 0 {
		return nil, fmt.Errorf("invalid EXPRESS_SHIPPING_FEE: must not be negative")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
