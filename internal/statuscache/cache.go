// Package statuscache keeps truck status projections in Redis so the public
// board does not hit the database on every poll.
package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	logrus "github.com/sirupsen/logrus"

	"radhiant_ops/internal/occupancy"
)

const (
	keyPrefix  = "radops:truck-status:"
	allKey     = keyPrefix + "all"
	defaultTTL = 5 * time.Minute
)

// Source computes statuses from the ledger.
type Source interface {
	TruckStatus(ctx context.Context, truckID string) (*occupancy.TruckStatus, error)
	TruckStatuses(ctx context.Context) ([]occupancy.TruckStatus, error)
}

type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Cache reads through Redis to Source. With no Redis client every call goes
// straight to Source. Redis errors are logged and fall back to Source.
type Cache struct {
	src Source
	rdb store
	ttl time.Duration
	log logrus.FieldLogger
}

func New(src Source, rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *Cache {
	c := &Cache{src: src, ttl: ttl, log: log}
	if rdb != nil {
		c.rdb = rdb
	}
	return c.init()
}

func (c *Cache) init() *Cache {
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

func (c *Cache) Truck(ctx context.Context, truckID string) (*occupancy.TruckStatus, error) {
	var cached occupancy.TruckStatus
	if c.read(ctx, keyPrefix+truckID, &cached) {
		return &cached, nil
	}
	status, err := c.src.TruckStatus(ctx, truckID)
	if err != nil {
		return nil, err
	}
	c.write(ctx, keyPrefix+truckID, status)
	return status, nil
}

func (c *Cache) All(ctx context.Context) ([]occupancy.TruckStatus, error) {
	var cached []occupancy.TruckStatus
	if c.read(ctx, allKey, &cached) {
		return cached, nil
	}
	statuses, err := c.src.TruckStatuses(ctx)
	if err != nil {
		return nil, err
	}
	c.write(ctx, allKey, statuses)
	return statuses, nil
}

// Invalidate drops the cached status of truckID and the fleet list.
func (c *Cache) Invalidate(ctx context.Context, truckID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, keyPrefix+truckID, allKey).Err(); err != nil {
		c.log.WithError(err).WithField("truck_id", truckID).Warn("could not invalidate truck status cache")
	}
}

// TruckChanged lets the cache observe occupancy changes.
func (c *Cache) TruckChanged(ctx context.Context, truckID string) {
	c.Invalidate(ctx, truckID)
}

func (c *Cache) read(ctx context.Context, key string, dst any) bool {
	if c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("truck status cache read failed")
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("discarding unreadable cached status")
		return false
	}
	return true
}

func (c *Cache) write(ctx context.Context, key string, v any) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("truck status cache write failed")
	}
}
