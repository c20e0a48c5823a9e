package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"almaconnector/internal/config"
	"almaconnector/internal/logger"
	"almaconnector/internal/store"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// InitRedis connects the scheduler lock store. Redis is optional.
func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if dc.Config.Database.Redis.Host == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, dc.Config.Database.Redis.Port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

// InitStore opens the run store. The store is optional.
func (dc *DatabaseConnector) InitStore(ctx context.Context) (*store.Store, error) {
	if !dc.Config.Database.StoreEnabled() {
		return nil, nil
	}

	s, err := store.Open(ctx, dc.Config.Database)
	if err != nil {
		return nil, err
	}

	dc.Logger.Infow("Run store connected successfully", "driver", s.Driver())
	return s, nil
}

func (dc *DatabaseConnector) ShutdownDatabases(redis *redis.Client, runs *store.Store) error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if runs != nil {
		if err := runs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close error: %w", err))
		}
	}

	return errors.Join(errs...)
}
