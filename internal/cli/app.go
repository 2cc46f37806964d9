package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fjod/storefront-checkout/internal/cache"
	"github.com/fjod/storefront-checkout/internal/config"
	"github.com/fjod/storefront-checkout/internal/repository"
	"github.com/fjod/storefront-checkout/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)
	return cfg, log, nil
}

func openMongo(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool) (*repository.MongoRepository, error) {
	db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := repository.RunMigrations(db, cfg.MigrationsPath); err != nil {
			_ = db.Client().Disconnect(ctx)
			return nil, err
		}
		log.Info("migrations applied", "path", cfg.MigrationsPath)
	}
	return repository.NewMongoRepository(db), nil
}

// newReplayCache returns a Redis replay cache, or a no-op one when Redis is not
// configured or not reachable.
func newReplayCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (cache.ReplayCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.Noop{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, replay cache disabled", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return cache.Noop{}, func() {}
	}
	return cache.NewRedisCache(client), func() {
		if err := client.Close(); err != nil {
			log.Error("failed to close redis client", "error", err)
		}
	}
}

func requireMongo(cfg *config.Config) error {
	if cfg.Store != config.StoreMongo {
		return fmt.Errorf("this command needs STORE=%s", config.StoreMongo)
	}
	return nil
}
