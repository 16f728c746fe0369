package caching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	values map[string]float64
	getErr error
}

func (m *memoryCache) Get(_ context.Context, key string, target any) error {
	if m.getErr != nil {
		return m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	*(target.(*float64)) = v
	return nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(float64)
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func TestUseCache(t *testing.T) {
	ctx := context.Background()
	store := &memoryCache{values: map[string]float64{}}
	calls := 0
	callback := func() (float64, error) {
		calls++
		return 150.25, nil
	}

	v, err := UseCache(ctx, store, "price", time.Minute, callback)
	require.NoError(t, err)
	require.Equal(t, 150.25, v)

	v, err = UseCache(ctx, store, "price", time.Minute, callback)
	require.NoError(t, err)
	require.Equal(t, 150.25, v)
	require.Equal(t, 1, calls)
}

func TestUseCacheDoesNotStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := &memoryCache{values: map[string]float64{}}

	_, err := UseCache(ctx, store, "price", time.Minute, func() (float64, error) {
		return 0, errors.New("source down")
	})
	require.Error(t, err)
	require.Empty(t, store.values)
}

func TestUseCacheUnreachable(t *testing.T) {
	store := &memoryCache{values: map[string]float64{}, getErr: errors.New("connection refused")}

	v, err := UseCache(context.Background(), store, "price", time.Minute, func() (float64, error) {
		return 99, nil
	})
	require.NoError(t, err)
	require.Equal(t, float64(99), v)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	store := &memoryCache{values: map[string]float64{"price": 1}}

	v, err := Refresh(ctx, store, "price", time.Minute, func() (float64, error) {
		return 2, nil
	})
	require.NoError(t, err)
	require.Equal(t, float64(2), v)
	require.Equal(t, float64(2), store.values["price"])
}
