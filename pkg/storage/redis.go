package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/pfcatalog/pkg/config"
)

// KeyPrefix namespaces every snapshot key
const KeyPrefix = "pfcatalog:refcache"

// RedisSnapshotStore keeps snapshots as JSON values with a TTL
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ SnapshotStore = (*RedisSnapshotStore)(nil)

// NewRedisSnapshotStore connects to Redis and verifies the connection
func NewRedisSnapshotStore(cfg config.SnapshotConfig) (*RedisSnapshotStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB >= 0 {
		opts.DB = cfg.RedisDB
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSnapshotStore{client: client, ttl: cfg.TTL}, nil
}

func snapshotKey(env, kind string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, env, kind)
}

// GetSnapshot retrieves a snapshot; a miss returns nil, nil
func (s *RedisSnapshotStore) GetSnapshot(ctx context.Context, env, kind string) (*Snapshot, error) {
	key := snapshotKey(env, kind)

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Drop corrupt data so the next populate rewrites it
		s.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Entries == nil {
		snap.Entries = map[string]string{}
	}

	return &snap, nil
}

// PutSnapshot stores a snapshot with the configured TTL
func (s *RedisSnapshotStore) PutSnapshot(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey(snap.Environment, snap.Kind), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity
func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for health checks
func (s *RedisSnapshotStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
