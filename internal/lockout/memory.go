package lockout

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryTracker implementa Tracker en memoria para desarrollo y tests.
// Mismo contrato de atomicidad que RedisTracker, garantizado por mutex.
// No sirve para producción multi-instancia.
type MemoryTracker struct {
	mu     sync.Mutex
	store  *gocache.Cache
	limits Limits
	now    func() time.Time
}

type memEntry struct {
	count     int
	lockUntil time.Time
}

// NewMemoryTracker crea un tracker en memoria con los defaults del
// paquete. El idle TTL lo aplica go-cache como expiración por entrada.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		store:  gocache.New(IdleTTL, 10*time.Minute),
		limits: Limits{}.normalized(),
		now:    time.Now,
	}
}

// WithLimits aplica los límites de la config.
func (t *MemoryTracker) WithLimits(l Limits) *MemoryTracker {
	t.limits = l.normalized()
	return t
}

// WithClock reemplaza el reloj. Solo para tests.
func (t *MemoryTracker) WithClock(now func() time.Time) *MemoryTracker {
	t.now = now
	return t
}

func key(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

func (t *MemoryTracker) RecordFailure(_ context.Context, identifier string) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e := t.get(identifier)

	if now.Before(e.lockUntil) {
		return State{Count: e.count, Locked: true, RetryAfter: e.lockUntil.Sub(now)}, nil
	}

	e.count++
	st := State{Count: e.count}
	if e.count >= t.limits.Threshold {
		e.lockUntil = now.Add(t.limits.LockWindow)
		st.Locked = true
		st.JustLocked = true
		st.RetryAfter = t.limits.LockWindow
		// El contador arranca de cero cuando venza este bloqueo.
		e.count = 0
	}
	t.store.Set(key(identifier), e, t.limits.IdleTTL)
	return st, nil
}

func (t *MemoryTracker) Status(_ context.Context, identifier string) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e := t.get(identifier)
	if now.Before(e.lockUntil) {
		return Status{Locked: true, RetryAfter: e.lockUntil.Sub(now)}, nil
	}
	return Status{}, nil
}

func (t *MemoryTracker) Reset(_ context.Context, identifier string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Delete(key(identifier))
	return nil
}

func (t *MemoryTracker) get(identifier string) *memEntry {
	if v, ok := t.store.Get(key(identifier)); ok {
		if e, ok := v.(*memEntry); ok {
			return e
		}
	}
	return &memEntry{}
}
