package lockout

import (
	"context"
	"strings"

	rdb "github.com/redis/go-redis/v9"
)

// RedisTracker implementa Tracker sobre Redis: INCR atómico para el
// contador y SET NX para el sello de bloqueo, así dos instancias del
// servicio nunca pierden incrementos ni estampan dos bloqueos.
type RedisTracker struct {
	Client *rdb.Client
	Prefix string
	limits Limits
}

// NewRedisTracker crea un tracker con prefix (default "la:").
func NewRedisTracker(client *rdb.Client, prefix string) *RedisTracker {
	if prefix == "" {
		prefix = "la:"
	}
	return &RedisTracker{Client: client, Prefix: prefix, limits: Limits{}.normalized()}
}

// WithLimits aplica los límites de la config.
func (t *RedisTracker) WithLimits(l Limits) *RedisTracker {
	t.limits = l.normalized()
	return t
}

func (t *RedisTracker) countKey(id string) string {
	return t.Prefix + "count:" + strings.ToLower(strings.TrimSpace(id))
}

func (t *RedisTracker) lockKey(id string) string {
	return t.Prefix + "lock:" + strings.ToLower(strings.TrimSpace(id))
}

func (t *RedisTracker) RecordFailure(ctx context.Context, identifier string) (State, error) {
	// Bloqueo activo: no incrementar ni re-estampar.
	ttl, err := t.Client.PTTL(ctx, t.lockKey(identifier)).Result()
	if err != nil {
		return State{}, err
	}
	if ttl > 0 {
		return State{Count: t.limits.Threshold, Locked: true, RetryAfter: ttl}, nil
	}

	count, err := t.Client.Incr(ctx, t.countKey(identifier)).Result()
	if err != nil {
		return State{}, err
	}
	if count == 1 {
		_ = t.Client.Expire(ctx, t.countKey(identifier), t.limits.IdleTTL).Err()
	}

	st := State{Count: int(count)}
	if count >= int64(t.limits.Threshold) {
		// SET NX: solo un request concurrente gana el sello.
		ok, err := t.Client.SetNX(ctx, t.lockKey(identifier), "1", t.limits.LockWindow).Result()
		if err != nil {
			return State{}, err
		}
		st.Locked = true
		st.JustLocked = ok
		st.RetryAfter = t.limits.LockWindow
		if ok {
			// El contador arranca de cero cuando venza este bloqueo.
			_ = t.Client.Del(ctx, t.countKey(identifier)).Err()
		} else if ttl, err := t.Client.PTTL(ctx, t.lockKey(identifier)).Result(); err == nil && ttl > 0 {
			st.RetryAfter = ttl
		}
	}
	return st, nil
}

func (t *RedisTracker) Status(ctx context.Context, identifier string) (Status, error) {
	ttl, err := t.Client.PTTL(ctx, t.lockKey(identifier)).Result()
	if err != nil {
		return Status{}, err
	}
	if ttl > 0 {
		return Status{Locked: true, RetryAfter: ttl}, nil
	}
	return Status{}, nil
}

func (t *RedisTracker) Reset(ctx context.Context, identifier string) error {
	return t.Client.Del(ctx, t.countKey(identifier), t.lockKey(identifier)).Err()
}
