package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
}

// RedisStoreConfig configures the Redis-backed snapshot store.
type RedisStoreConfig struct {
	Namespace string
	// Retention expires snapshot payloads; zero keeps them indefinitely.
	Retention time.Duration
}

// RedisStore persists snapshots in Redis so multiple instances can serve the
// same aggregation output.
type RedisStore struct {
	client    redisCommander
	closeFn   func() error
	namespace string
	retention time.Duration
}

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	closeFn := func() error { return nil }
	if client != nil {
		closeFn = client.Close
	}
	return newRedisStoreFromCommander(client, closeFn, cfg)
}

func newRedisStoreFromCommander(client redisCommander, closeFn func() error, cfg RedisStoreConfig) *RedisStore {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "hackboard"
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return &RedisStore{
		client:    client,
		closeFn:   closeFn,
		namespace: namespace,
		retention: cfg.Retention,
	}
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Put stores a snapshot as JSON and indexes its event name.
func (s *RedisStore) Put(ctx context.Context, snap Snapshot) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis store is not initialized")
	}
	if snap.Event == "" {
		return errors.New("snapshot event name is required")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", snap.Event, err)
	}
	if err := s.client.Set(ctx, s.eventKey(snap.Event), payload, s.retention).Err(); err != nil {
		return fmt.Errorf("write snapshot for %s: %w", snap.Event, err)
	}
	if err := s.client.SAdd(ctx, s.indexKey(), snap.Event).Err(); err != nil {
		return fmt.Errorf("index snapshot for %s: %w", snap.Event, err)
	}
	return nil
}

// Get returns the snapshot for an event. A payload that expired while still
// indexed is reported as not found and dropped from the index.
func (s *RedisStore) Get(ctx context.Context, event string) (Snapshot, error) {
	if s == nil || s.client == nil {
		return Snapshot{}, fmt.Errorf("redis store is not initialized")
	}

	payload, err := s.client.Get(ctx, s.eventKey(event)).Result()
	if errors.Is(err, redis.Nil) {
		_ = s.client.SRem(ctx, s.indexKey(), event).Err()
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot for %s: %w", event, err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot for %s: %w", event, err)
	}
	return snap, nil
}

// List returns the indexed event names in lexical order.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("redis store is not initialized")
	}

	events, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	sort.Strings(events)
	return events, nil
}

func (s *RedisStore) eventKey(event string) string {
	return s.namespace + ":snapshot:" + event
}

func (s *RedisStore) indexKey() string {
	return s.namespace + ":snapshots:index"
}
