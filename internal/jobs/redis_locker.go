package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"frontdesk/internal/services"

	"github.com/go-co-op/gocron/v2"
)

var errLockHeld = errors.New("job lock held by another instance")

// RedisLocker lets one instance per time bucket run a job. Keys carry the
// bucket so a crashed holder only blocks its own tick.
type RedisLocker struct {
	redis      *services.RedisService
	instanceID string
	ttl        time.Duration
	now        func() time.Time
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder can
// keep the lock and sizes the time bucket.
func NewRedisLocker(redis *services.RedisService, instanceID string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLocker{redis: redis, instanceID: instanceID, ttl: ttl, now: time.Now}
}

func (l *RedisLocker) lockKey(key string) string {
	secs := int64(l.ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	bucket := l.now().Unix() / secs
	return fmt.Sprintf("frontdesk:job-lock:%s:%d", key, bucket)
}

// Lock implements gocron.Locker
func (l *RedisLocker) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	lockKey := l.lockKey(key)
	acquired, err := l.redis.AcquireLock(ctx, lockKey, l.instanceID, l.ttl)
	if err != nil {
		log.Printf("⚠️  [SCHEDULER] Failed to acquire lock for %s: %v", key, err)
		return nil, err
	}
	if !acquired {
		return nil, errLockHeld
	}
	return &redisLock{locker: l, key: lockKey}, nil
}

type redisLock struct {
	locker *RedisLocker
	key    string
}

// Unlock implements gocron.Lock
func (l *redisLock) Unlock(ctx context.Context) error {
	if _, err := l.locker.redis.ReleaseLock(ctx, l.key, l.locker.instanceID); err != nil {
		return fmt.Errorf("failed to release %s: %w", l.key, err)
	}
	return nil
}
