package brands

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/portalpay/backend/internal/domain/split"
)

// ConfigCache caches fetched brand configurations. A nil result with a nil
// error is a cache miss.
type ConfigCache interface {
	Get(ctx context.Context, brandKey string) (*split.BrandConfig, error)
	Set(ctx context.Context, brandKey string, cfg split.BrandConfig, ttl time.Duration) error
}

// RedisConfigCache implements ConfigCache using Redis
type RedisConfigCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisConfigCache creates a cache with an existing Redis client.
// The caller retains ownership of the client and is responsible for closing it.
func NewRedisConfigCache(client *redis.Client, logger *zap.Logger) *RedisConfigCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisConfigCache{client: client, logger: logger}
}

func (c *RedisConfigCache) cacheKey(brandKey string) string {
	return fmt.Sprintf("brand_config:%s", brandKey)
}

// Get retrieves a brand config from cache
func (c *RedisConfigCache) Get(ctx context.Context, brandKey string) (*split.BrandConfig, error) {
	key := c.cacheKey(brandKey)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.logger.Debug("cache miss for brand config", zap.String("brand_key", brandKey))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("failed to get brand config from cache",
			zap.String("brand_key", brandKey),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get brand config from cache: %w", err)
	}

	var cfg split.BrandConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		c.logger.Error("failed to unmarshal cached brand config",
			zap.String("brand_key", brandKey),
			zap.Error(err))
		// Delete corrupted cache entry
		_ = c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal brand config: %w", err)
	}

	return &cfg, nil
}

// Set stores a brand config in cache
func (c *RedisConfigCache) Set(ctx context.Context, brandKey string, cfg split.BrandConfig, ttl time.Duration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal brand config: %w", err)
	}

	if err := c.client.Set(ctx, c.cacheKey(brandKey), data, ttl).Err(); err != nil {
		c.logger.Error("failed to set brand config in cache",
			zap.String("brand_key", brandKey),
			zap.Error(err))
		return fmt.Errorf("failed to set brand config in cache: %w", err)
	}
	return nil
}

var _ ConfigCache = (*RedisConfigCache)(nil)

// InMemoryConfigCache provides an in-memory implementation for testing and
// single-instance deployments.
type InMemoryConfigCache struct {
	mu      sync.RWMutex
	entries map[string]inMemoryEntry
}

type inMemoryEntry struct {
	cfg       split.BrandConfig
	expiresAt time.Time
}

// NewInMemoryConfigCache creates a new in-memory brand config cache
func NewInMemoryConfigCache() *InMemoryConfigCache {
	return &InMemoryConfigCache{entries: make(map[string]inMemoryEntry)}
}

// Get retrieves a brand config from the in-memory cache
func (c *InMemoryConfigCache) Get(_ context.Context, brandKey string) (*split.BrandConfig, error) {
	c.mu.RLock()
	entry, ok := c.entries[brandKey]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, brandKey)
		c.mu.Unlock()
		return nil, nil
	}
	cfg := entry.cfg
	return &cfg, nil
}

// Set stores a brand config in the in-memory cache
func (c *InMemoryConfigCache) Set(_ context.Context, brandKey string, cfg split.BrandConfig, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[brandKey] = inMemoryEntry{cfg: cfg, expiresAt: time.Now().Add(ttl)}
	return nil
}

var _ ConfigCache = (*InMemoryConfigCache)(nil)

// CachedPolicySource wraps a split.PolicySource with a cache. Fetch errors
// are not cached; a stale-free miss always goes to the origin.
type CachedPolicySource struct {
	source split.PolicySource
	cache  ConfigCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedPolicySource creates a caching wrapper around a policy source
func NewCachedPolicySource(source split.PolicySource, cache ConfigCache, ttl time.Duration, logger *zap.Logger) *CachedPolicySource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl == 0 {
		ttl = time.Minute
	}
	return &CachedPolicySource{source: source, cache: cache, ttl: ttl, logger: logger}
}

// Fetch returns the cached brand config when fresh, otherwise fetches from
// the origin and caches the result. Cache failures degrade to origin fetches.
func (s *CachedPolicySource) Fetch(ctx context.Context, brandKey string) (split.BrandConfig, error) {
	if cached, err := s.cache.Get(ctx, brandKey); err == nil && cached != nil {
		return *cached, nil
	} else if err != nil {
		s.logger.Warn("brand config cache read failed",
			zap.String("brand_key", brandKey),
			zap.Error(err))
	}

	cfg, err := s.source.Fetch(ctx, brandKey)
	if err != nil {
		return split.BrandConfig{}, err
	}

	if err := s.cache.Set(ctx, brandKey, cfg, s.ttl); err != nil {
		s.logger.Warn("brand config cache write failed",
			zap.String("brand_key", brandKey),
			zap.Error(err))
	}
	return cfg, nil
}

var _ split.PolicySource = (*CachedPolicySource)(nil)
