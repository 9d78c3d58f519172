package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
)

const (
	orderLockPrefix   = "lock:order:"
	lockRetryInterval = 50 * time.Millisecond
	lockMaxBackoff    = 500 * time.Millisecond
)

// unlockScript deletes the key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOrderLocker is a per-order lock shared by every instance of the service.
type RedisOrderLocker struct {
	client redisLockClient
	ttl    time.Duration
	logger *logging.LoggerV2
}

type redisLockClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// NewRedisOrderLocker creates a locker whose keys expire after ttl.
func NewRedisOrderLocker(client redisLockClient, ttl time.Duration, logger *logging.LoggerV2) *RedisOrderLocker {
	return &RedisOrderLocker{client: client, ttl: ttl, logger: logger}
}

// Lock blocks until the lock is acquired or ctx is done.
func (l *RedisOrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	key := orderLockPrefix + orderID
	token := uuid.NewString()
	backoff := lockRetryInterval

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if backoff *= 2; backoff > lockMaxBackoff {
			backoff = lockMaxBackoff
		}
	}

	return func() {
		// Release even if the request context is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release order lock", logging.Fields{
				"order_id": orderID,
				"error":    err.Error(),
			})
		}
	}, nil
}

// LocalOrderLocker is an in-process keyed mutex.
type LocalOrderLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalOrderLocker() *LocalOrderLocker {
	return &LocalOrderLocker{locks: make(map[string]*localLock)}
}

func (l *LocalOrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[orderID]
	if !ok {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[orderID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(orderID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(orderID, lk)
		})
	}, nil
}

func (l *LocalOrderLocker) release(orderID string, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, orderID)
	}
}
