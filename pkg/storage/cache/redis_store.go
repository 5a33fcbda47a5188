package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"docvault/pkg/core"
	"docvault/pkg/storage"
	"docvault/pkg/types"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStore decorates a storage.Store with a Redis existence cache.
// Only existence is cached, never object bytes.
type CachedStore struct {
	backend storage.Store
	client  *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
}

type Config struct {
	RedisURL string        // redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // key expiry
	Logger   *zap.Logger
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail fast on a dead Redis.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
		logger:  logger,
	}, nil
}

func (s *CachedStore) cacheKey(hash types.Hash) string {
	return "docvault:obj:" + string(hash)
}

// Has asks Redis first and falls back to the backend on a miss or Redis failure.
func (s *CachedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	key := s.cacheKey(hash)

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// Degrade to uncached mode instead of failing the deploy.
		s.logger.Warn("redis exists failed", zap.String("key", key), zap.Error(err))
	} else if val > 0 {
		return true, nil
	}

	found, err := s.backend.Has(ctx, hash)
	if err != nil {
		return false, err
	}

	if found {
		// Fill asynchronously with its own context so the caller's cancellation does not drop it.
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, key, "1", s.ttl)
		}()
	}

	return found, nil
}

func (s *CachedStore) Put(ctx context.Context, obj core.Object) error {
	exists, err := s.Has(ctx, obj.ID())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.backend.Put(ctx, obj); err != nil {
		return err
	}

	// Cache only after the backend accepted the write.
	if err := s.client.Set(ctx, s.cacheKey(obj.ID()), "1", s.ttl).Err(); err != nil {
		s.logger.Warn("redis set failed", zap.Error(err))
	}
	return nil
}

// Get passes through.
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	return s.backend.Get(ctx, hash)
}

func (s *CachedStore) Close() error {
	return s.client.Close()
}
