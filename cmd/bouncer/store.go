package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wso2/open-auth-bouncer/internal/config"
	logger "github.com/wso2/open-auth-bouncer/internal/logging"
	"github.com/wso2/open-auth-bouncer/internal/session"
)

// MakeSessionStore builds the configured session store. The returned func
// releases its connections.
func MakeSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	switch cfg.Store {
	case config.RedisStore:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		logger.Info("Using redis session store at %s", cfg.Redis.Addr)
		return session.NewRedisStore(rdb, cfg.Redis.Prefix), func() { rdb.Close() }, nil

	default:
		logger.Info("Using in-memory session store")
		return session.NewMemoryStore(), func() {}, nil
	}
}
