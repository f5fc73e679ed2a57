package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLocked means another run currently holds the lock.
var ErrLocked = errors.New("lock is held by another run")

// Lease is a held lock.
type Lease interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// Locker guards single-flight sync runs.
type Locker interface {
	Obtain(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// NewLocker returns a redislock-backed Locker, or a process-local one when rdb is nil.
func NewLocker(rdb *redis.Client) Locker {
	if rdb == nil {
		return NewLocalLocker()
	}
	return &redisLocker{client: redislock.New(rdb)}
}

func lockKey(name string) string {
	return fmt.Sprintf("lock:sync:%s", name)
}

type redisLocker struct {
	client *redislock.Client
}

func (l *redisLocker) Obtain(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	lock, err := l.client.Obtain(ctx, lockKey(name), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, fmt.Errorf("obtaining %s: %w", lockKey(name), err)
	}
	return &redisLease{lock: lock, ttl: ttl}, nil
}

type redisLease struct {
	lock *redislock.Lock
	ttl  time.Duration
}

func (l *redisLease) Refresh(ctx context.Context) error {
	return l.lock.Refresh(ctx, l.ttl, nil)
}

func (l *redisLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

// NewLocalLocker guards runs within this process only. Leases expire after
// their ttl like the Redis ones.
func NewLocalLocker() Locker {
	return &localLocker{held: map[string]time.Time{}}
}

func (l *localLocker) Obtain(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := lockKey(name)
	if until, ok := l.held[key]; ok && time.Now().Before(until) {
		return nil, ErrLocked
	}
	l.held[key] = time.Now().Add(ttl)
	return &localLease{owner: l, key: key, ttl: ttl}, nil
}

type localLease struct {
	owner *localLocker
	key   string
	ttl   time.Duration
}

func (l *localLease) Refresh(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	l.owner.held[l.key] = time.Now().Add(l.ttl)
	return nil
}

func (l *localLease) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	delete(l.owner.held, l.key)
	return nil
}
