// Package cache adds Redis caching in front of fund snapshot reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/holdings"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultNamespace = "holdings"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "cache: ping redis %s", cfg.RedisAddr)
	}
	zap.L().Info("redis connected", zap.String("addr", cfg.RedisAddr))
	return rdb, nil
}

// SnapshotLoader decorates a holdings.SnapshotLoader with Redis caching.
// A nil client bypasses the cache.
type SnapshotLoader struct {
	inner     holdings.SnapshotLoader
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewSnapshotLoader wraps inner. A ttl <= 0 means five minutes; an empty
// namespace means "holdings".
func NewSnapshotLoader(rdb *redis.Client, ttl time.Duration, inner holdings.SnapshotLoader, namespace string) *SnapshotLoader {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &SnapshotLoader{inner: inner, rdb: rdb, ttl: ttl, namespace: namespace}
}

// LoadSnapshot returns the cached snapshot for cik, falling back to the inner
// loader on a miss. Errors from the inner loader are never cached.
func (c *SnapshotLoader) LoadSnapshot(ctx context.Context, cik string) (*holdings.Snapshot, error) {
	if c.rdb == nil {
		return c.inner.LoadSnapshot(ctx, cik)
	}

	key := c.key(cik)
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var snap holdings.Snapshot
		if err := json.Unmarshal(b, &snap); err == nil {
			return &snap, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	snap, err := c.inner.LoadSnapshot(ctx, cik)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(snap); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			zap.L().Debug("cache: set snapshot failed", zap.String("key", key), zap.Error(err))
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot for cik, then invalidates the inner loader.
func (c *SnapshotLoader) Invalidate(ctx context.Context, cik string) error {
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, c.key(cik)).Err(); err != nil {
			return eris.Wrapf(err, "cache: invalidate %s", cik)
		}
	}
	return c.inner.Invalidate(ctx, cik)
}

func (c *SnapshotLoader) key(cik string) string {
	return fmt.Sprintf("%s:snapshot:%s", c.namespace, cik)
}
