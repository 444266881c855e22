package statuscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radhiant_ops/internal/occupancy"
)

type memoryRedis struct {
	data map[string]string
	fail bool
}

func (m *memoryRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if m.fail {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	if m.fail {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	m.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type countingSource struct {
	one, all int
	name     string
}

func (s *countingSource) TruckStatus(_ context.Context, id string) (*occupancy.TruckStatus, error) {
	s.one++
	if id == "RAD-404" {
		return nil, occupancy.ErrTruckNotFound
	}
	return &occupancy.TruckStatus{ID: id, Name: s.name}, nil
}

func (s *countingSource) TruckStatuses(context.Context) ([]occupancy.TruckStatus, error) {
	s.all++
	return []occupancy.TruckStatus{{ID: "RAD-1", Name: s.name}}, nil
}

func newCache(src Source, rdb store) *Cache {
	log, _ := test.NewNullLogger()
	return (&Cache{src: src, rdb: rdb, log: log}).init()
}

func TestCache_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{name: "first"}
	rdb := &memoryRedis{data: map[string]string{}}
	c := newCache(src, rdb)

	s, err := c.Truck(ctx, "RAD-1")
	require.NoError(t, err)
	assert.Equal(t, "first", s.Name)

	src.name = "second"
	s, err = c.Truck(ctx, "RAD-1")
	require.NoError(t, err)
	assert.Equal(t, "first", s.Name, "served from cache")
	assert.Equal(t, 1, src.one)

	all, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	_, err = c.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.all)

	c.TruckChanged(ctx, "RAD-1")
	s, err = c.Truck(ctx, "RAD-1")
	require.NoError(t, err)
	assert.Equal(t, "second", s.Name)
	_, err = c.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.all)
}

func TestCache_RedisFailureFallsBack(t *testing.T) {
	src := &countingSource{name: "db"}
	c := newCache(src, &memoryRedis{data: map[string]string{}, fail: true})

	s, err := c.Truck(context.Background(), "RAD-2")
	require.NoError(t, err)
	assert.Equal(t, "db", s.Name)
}

func TestCache_WithoutRedis(t *testing.T) {
	src := &countingSource{}
	c := New(src, nil, 0, nil)

	_, err := c.Truck(context.Background(), "RAD-1")
	require.NoError(t, err)
	_, err = c.Truck(context.Background(), "RAD-1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.one)

	_, err = c.Truck(context.Background(), "RAD-404")
	assert.ErrorIs(t, err, occupancy.ErrTruckNotFound)
	c.Invalidate(context.Background(), "RAD-1")
}
