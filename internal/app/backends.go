package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hackstats/hackboard/internal/config"
	"github.com/hackstats/hackboard/internal/snapshot"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// newStoreBackend selects the snapshot store. An unreachable Redis degrades
// to the in-memory store instead of failing startup.
func newStoreBackend(cfg *config.Config, logger *zap.Logger) snapshot.Store {
	if cfg == nil || !strings.EqualFold(strings.TrimSpace(cfg.Store.Backend), "redis") {
		return snapshot.NewMemoryStore()
	}

	redisStore, err := newRedisStoreFromConfig(cfg)
	if err != nil {
		logger.Warn("failed to initialize redis store; falling back to in-memory store", zap.Error(err))
		return snapshot.NewMemoryStore()
	}
	return redisStore
}

func newRedisStoreFromConfig(cfg *config.Config) (*snapshot.RedisStore, error) {
	var redisClient redis.UniversalClient
	if strings.EqualFold(cfg.Store.RedisMode, "sentinel") {
		redisClient = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.Store.RedisMasterSet,
			SentinelAddrs: cfg.Store.RedisSentinelAddrs,
			Password:      cfg.Store.RedisPassword,
			DB:            cfg.Store.RedisDB,
		})
	} else {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return snapshot.NewRedisStore(redisClient, snapshot.RedisStoreConfig{
		Namespace: cfg.Store.Namespace,
		Retention: cfg.Store.Retention,
	}), nil
}
