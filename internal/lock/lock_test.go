package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	return client, mr
}

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{"email:b@x.com", "", "discord:1", "email:b@x.com"})
	assert.Equal(t, []string{"discord:1", "email:b@x.com"}, got)
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, 10*time.Second, time.Second)

	release, err := locker.Acquire(context.Background(), "discord:1", "email:a@x.com")
	require.NoError(t, err)

	assert.True(t, mr.Exists(redisKeyPrefix+"discord:1"))
	assert.True(t, mr.Exists(redisKeyPrefix+"email:a@x.com"))
	assert.Equal(t, 10*time.Second, mr.TTL(redisKeyPrefix+"discord:1"))

	release()
	release()

	assert.False(t, mr.Exists(redisKeyPrefix+"discord:1"))
	assert.False(t, mr.Exists(redisKeyPrefix+"email:a@x.com"))
}

func TestRedisLocker_TimesOutWhileHeld(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := NewRedisLocker(client, 10*time.Second, 100*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "discord:1")
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(context.Background(), "google:9", "discord:1")
	require.ErrorIs(t, err, ErrLockTimeout)

	// The partially acquired key must have been given back.
	release2, err := locker.Acquire(context.Background(), "google:9")
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, 10*time.Second, time.Second)

	release, err := locker.Acquire(context.Background(), "discord:1")
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, mr.Set(redisKeyPrefix+"discord:1", "someone-else"))

	release()

	value, err := mr.Get(redisKeyPrefix + "discord:1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	locker := NewLocalLocker(2 * time.Second)

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "discord:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_TimesOut(t *testing.T) {
	locker := NewLocalLocker(50 * time.Millisecond)

	release, err := locker.Acquire(context.Background(), "email:a@x.com")
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(context.Background(), "email:a@x.com")
	require.ErrorIs(t, err, ErrLockTimeout)
}
