// Package redislock implements keylock.Locker on Redis with SET NX PX and a
// token-checked release.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/tripstate/internal/keylock"
)

// ErrNotHeld is returned by an UnlockFunc when the lock expired or was taken
// over before release.
var ErrNotHeld = errors.New("distributed lock no longer held")

// DefaultPollInterval is how often a blocked Lock retries.
const DefaultPollInterval = 50 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var _ keylock.Locker = (*Locker)(nil)

// Locker is a Redis-backed keylock.Locker.
type Locker struct {
	client redis.UniversalClient
	prefix string
	poll   time.Duration
}

// New returns a Locker that namespaces its keys under prefix.
func New(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{client: client, prefix: prefix, poll: DefaultPollInterval}
}

// WithPollInterval returns l with a different retry interval.
func (l *Locker) WithPollInterval(d time.Duration) *Locker {
	if d > 0 {
		l.poll = d
	}
	return l
}

// Key returns the Redis key used for a lock name.
func (l *Locker) Key(name string) string {
	return l.prefix + "lock:" + name
}

// Lock polls SET NX until the key is free or ctx is done. The stored value
// is a random token so only the holder can release it.
func (l *Locker) Lock(ctx context.Context, name string, ttl time.Duration) (keylock.UnlockFunc, error) {
	key := l.Key(name)
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("redis SETNX %s: %w", key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
				if err != nil {
					return fmt.Errorf("redis release %s: %w", key, err)
				}
				if n == 0 {
					return ErrNotHeld
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
