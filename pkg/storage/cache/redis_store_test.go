package cache

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docvault/pkg/core"
	"docvault/pkg/storage"
	"docvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// SpyStore counts backend calls so we can tell whether a request went through the cache.
// -----------------------------------------------------------------------------
type SpyStore struct {
	hasCount int32
	putCount int32
	mu       sync.Mutex
	objects  map[types.Hash][]byte
}

func NewSpyStore() *SpyStore {
	return &SpyStore{
		objects: make(map[types.Hash][]byte),
	}
}

func (s *SpyStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	atomic.AddInt32(&s.hasCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[hash]
	return ok, nil
}

func (s *SpyStore) Put(ctx context.Context, obj core.Object) error {
	atomic.AddInt32(&s.putCount, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.ID()] = obj.Bytes()
	return nil
}

func (s *SpyStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	return nil, storage.ErrNotFound
}

func TestNewCachedStore_BadURL(t *testing.T) {
	_, err := NewCachedStore(NewSpyStore(), Config{RedisURL: "not a url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}

func TestCachedStore_Integration(t *testing.T) {
	redisAddr := "localhost:6379"
	conn, err := net.DialTimeout("tcp", redisAddr, 1*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	conn.Close()

	ctx := context.Background()
	spy := NewSpyStore()
	cachedStore, err := NewCachedStore(spy, Config{
		RedisURL: fmt.Sprintf("redis://%s/0", redisAddr),
		TTL:      1 * time.Hour,
	})
	require.NoError(t, err)
	defer cachedStore.Close()

	cachedStore.client.FlushDB(ctx)

	obj := core.NewBlob([]byte("cached blob"))

	// 1. Miss goes to the backend.
	exists, err := cachedStore.Has(ctx, obj.ID())
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.hasCount), "Backend Has() should be called on miss")

	// 2. Put writes through and fills the cache.
	require.NoError(t, cachedStore.Put(ctx, obj))
	assert.Equal(t, int32(1), atomic.LoadInt32(&spy.putCount), "Backend Put() should be called")

	redisVal, err := cachedStore.client.Exists(ctx, cachedStore.cacheKey(obj.ID())).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), redisVal, "Redis key should be set after Put")

	// 3. Hit never reaches the backend. Put itself called Has once, hence 2.
	exists, err = cachedStore.Has(ctx, obj.ID())
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int32(2), atomic.LoadInt32(&spy.hasCount), "Backend Has() should NOT be called on hit")
}
