package rate

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	base := time.Date(2024, 1, 1, 10, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, res.Allowed, "hit %d", i)
		require.Equal(t, int64(3-i), res.Remaining)
	}

	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, int64(0), res.Remaining)
	require.Equal(t, 50*time.Second, res.RetryAfter)

	// otra clave no comparte contador
	res, err = l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	// ventana siguiente
	l.now = func() time.Time { return base.Add(time.Minute) }
	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.Equal(t, int64(1), res.CurrentHits)
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(50, time.Minute)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(context.Background(), "k")
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	// puede cruzar un borde de ventana, nunca permite más de 2x
	require.GreaterOrEqual(t, allowed, 50)
	require.LessOrEqual(t, allowed, 100)
}

func TestBuildResult_RetryAfterFallback(t *testing.T) {
	res := buildResult(5, 3, -1, 30*time.Second)
	require.False(t, res.Allowed)
	require.Equal(t, 30*time.Second, res.RetryAfter)
}

// Requiere un Redis real: REDIS_ADDR=localhost:6379 go test ./internal/rate/
func TestRedisLimiter_FixedWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := rdb.NewClient(&rdb.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	prefix := fmt.Sprintf("bizgate:test:%d:", time.Now().UnixNano())
	l := NewRedisLimiter(client, prefix, 2, time.Minute)

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "10.0.0.1 /auth/token")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "10.0.0.1 /auth/token")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Positive(t, res.RetryAfter)

	// otra key, otro contador
	res, err = l.Allow(ctx, "10.0.0.2 /auth/token")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestRedisLimiter_Unreachable(t *testing.T) {
	client := rdb.NewClient(&rdb.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisLimiter(client, "", 1, time.Minute).Allow(context.Background(), "k")
	require.Error(t, err)
}
