package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisService is the shared Redis connection. Front desk instances use it for
// two things only: mirroring bus events and guarding background jobs.
type RedisService struct {
	client *redis.Client
}

// NewRedisService connects to redisURL and fails fast if Redis does not answer
func NewRedisService(redisURL string) (*RedisService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	// Traffic is a handful of events per call plus one lock per job tick.
	opts.PoolSize = 4
	opts.MinIdleConns = 1
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	svc := &RedisService{client: redis.NewClient(opts)}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		svc.client.Close()
		return nil, fmt.Errorf("redis did not answer at %s: %w", opts.Addr, err)
	}

	log.Printf("✅ [REDIS] Connected to %s (db %d)", opts.Addr, opts.DB)
	return svc, nil
}

// Ping satisfies the health handler's dependency check
func (r *RedisService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *RedisService) Close() error {
	return r.client.Close()
}

// Publish sends an encoded event to channel
func (r *RedisService) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a subscription; the caller owns closing it
func (r *RedisService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.client.Subscribe(ctx, channel)
}

// AcquireLock takes lockKey for owner unless someone else holds it
func (r *RedisService) AcquireLock(ctx context.Context, lockKey, owner string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, lockKey, owner, ttl).Result()
}

// ReleaseLock deletes lockKey only while owner still holds it, so an expired
// lock taken over by another instance is left alone.
func (r *RedisService) ReleaseLock(ctx context.Context, lockKey, owner string) (bool, error) {
	released, err := releaseIfOwner.Run(ctx, r.client, []string{lockKey}, owner).Int64()
	if err != nil {
		return false, err
	}
	return released == 1, nil
}

var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
