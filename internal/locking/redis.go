package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/health-screening-server/internal/domain"
)

// ErrNotOwner is returned when releasing a lock held under a different token
var ErrNotOwner = errors.New("lock not owned by this client")

const keyPrefix = "health-screening:lock:"

// unlockScript deletes the key only if it still holds the caller's token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements domain.Locker on Redis SET NX PX.
// Calls go through a circuit breaker so an unavailable Redis fails fast.
type RedisLocker struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewRedisLocker creates a locker from the cache configuration
func NewRedisLocker(config domain.CacheConfig, logger *logrus.Logger) (*RedisLocker, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLockerWithClient(client, logger), nil
}

// NewRedisLockerWithClient wraps an existing client
func NewRedisLockerWithClient(client redis.UniversalClient, logger *logrus.Logger) *RedisLocker {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-locker",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisLocker{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// TryLock sets the key to a fresh token if it does not exist
func (r *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", false, fmt.Errorf("%w: redis circuit open", domain.ErrLockUnavailable)
		}
		return "", false, fmt.Errorf("redis SETNX %s: %w", key, err)
	}

	acquired := result.(bool)
	r.logger.WithFields(logrus.Fields{
		"lock_key": key,
		"acquired": acquired,
	}).Debug("Redis lock attempt")

	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock deletes the key only while it still holds token
func (r *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return unlockScript.Run(ctx, r.client, []string{keyPrefix + key}, token).Int64()
	})
	if err != nil {
		return fmt.Errorf("redis unlock %s: %w", key, err)
	}

	if result.(int64) == 0 {
		exists, err := r.client.Exists(ctx, keyPrefix+key).Result()
		if err != nil {
			return fmt.Errorf("redis unlock %s: %w", key, err)
		}
		if exists > 0 {
			return ErrNotOwner
		}
	}
	return nil
}

// Ping checks the Redis connection
func (r *RedisLocker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
