// Package keylock serializes work per string key. Each key gets its own
// mutex, created on first use and dropped once no goroutine holds or waits
// for it. An optional Locker extends the critical section across processes.
package keylock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultTTL = 30 * time.Second

// UnlockFunc releases a lock obtained from a Locker.
type UnlockFunc func(ctx context.Context) error

// Locker acquires a lock shared between processes. Lock blocks until the
// lock is held or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out per-key mutexes with reference counting.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry

	locker Locker
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Keyed.
type Option func(*Keyed)

// WithLocker layers a distributed locker under the in-process mutex.
func WithLocker(l Locker) Option {
	return func(k *Keyed) { k.locker = l }
}

// WithTTL sets the distributed lock TTL.
func WithTTL(ttl time.Duration) Option {
	return func(k *Keyed) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for release failures.
func WithLogger(l *zap.Logger) Option {
	return func(k *Keyed) {
		if l != nil {
			k.logger = l
		}
	}
}

// New returns an empty Keyed.
func New(opts ...Option) *Keyed {
	k := &Keyed{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// acquire returns the entry for key with its reference count raised. The
// caller must lock entry.mu and call release after unlocking it.
func (k *Keyed) acquire(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.entries, key)
	}
}

// Len reports how many keys currently have a holder or waiter.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// WithLock runs fn while holding the lock for key. Different keys never
// block each other.
func (k *Keyed) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	e := k.acquire(key)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		k.release(key)
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	if k.locker != nil {
		unlock, err := k.locker.Lock(ctx, key, k.ttl)
		if err != nil {
			return fmt.Errorf("acquiring distributed lock %s: %w", key, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				k.logger.Warn("distributed lock release failed, will expire via TTL",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}()
	}

	return fn(ctx)
}

// WithLocks runs fn while holding every key in order. Callers that take
// more than one key must pass them in a consistent order.
func (k *Keyed) WithLocks(ctx context.Context, keys []string, fn func(context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	return k.WithLock(ctx, keys[0], func(ctx context.Context) error {
		return k.WithLocks(ctx, keys[1:], fn)
	})
}
