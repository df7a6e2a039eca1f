package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter replica el fixed-window de RedisLimiter en proceso.
// Para desarrollo y tests: con varias instancias cada una cuenta lo suyo.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu    sync.Mutex
	store *gocache.Cache
}

// NewMemoryLimiter crea un limiter en memoria.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:    int64(max),
		Window: window,
		store:  gocache.New(window, 2*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	l.mu.Lock()
	var hits int64 = 1
	if v, ok := l.store.Get(k); ok {
		hits = v.(int64) + 1
	}
	l.store.Set(k, hits, l.Window)
	l.mu.Unlock()

	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits <= l.Max,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   winStart.Add(l.Window).Sub(now),
	}
	if !res.Allowed {
		res.RetryAfter = winStart.Add(l.Window).Sub(now)
	}
	return res, nil
}
