package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es el mismo fixed window que RedisLimiter sobre go-cache.
// Los contadores expiran solos al terminar la ventana.
type MemoryLimiter struct {
	mu     sync.Mutex
	c      *gocache.Cache
	Max    int64
	Window time.Duration
	now    func() time.Time
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, window),
		Max:    int64(max),
		Window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now().UTC()
	winStart := now.Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())
	ttl := winStart.Add(l.Window).Sub(now)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.c.Add(k, int64(1), ttl); err == nil {
		return buildResult(1, l.Max, ttl, l.Window), nil
	}
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		// el item expiró entre Add e Increment
		l.c.Set(k, int64(1), ttl)
		hits = 1
	}
	return buildResult(hits, l.Max, ttl, l.Window), nil
}
