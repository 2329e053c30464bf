package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ProjectLocker serializes cascade execution per project id. Two documents
// saved near-simultaneously must not run overlapping cascades that
// double-apply actions.
type ProjectLocker interface {
	Lock(ctx context.Context, projectID uuid.UUID) (func(), error)
}

type localLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewLocalLocker locks within the process. Suitable for single-instance
// deployments and tests.
func NewLocalLocker() ProjectLocker {
	return &localLocker{locks: map[uuid.UUID]*sync.Mutex{}}
}

func (l *localLocker) Lock(ctx context.Context, projectID uuid.UUID) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[projectID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

type redisLocker struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisLocker locks across instances with SETNX and a TTL guard against
// crashed holders.
func NewRedisLocker(rdb *goredis.Client, ttl time.Duration) ProjectLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &redisLocker{rdb: rdb, ttl: ttl}
}

func (l *redisLocker) Lock(ctx context.Context, projectID uuid.UUID) (func(), error) {
	key := fmt.Sprintf("cascade:lock:%s", projectID)
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("cascade lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	unlock := func() {
		// Only the holder's token may release the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		_ = l.rdb.Eval(releaseCtx, script, []string{key}, token).Err()
	}
	return unlock, nil
}
