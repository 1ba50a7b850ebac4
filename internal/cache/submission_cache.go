// Package cache provides the submission read cache and the evaluation memo.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
)

const (
	submissionKeyPrefix  = "health-screening:submission:"
	generationKeyPrefix  = "health-screening:submission-gen:"
	generationKeyTTLMult = 4
)

// fillScript writes KEYS[1] only while KEYS[2] still holds the generation the reader saw
var fillScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[3] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// SubmissionCacheConfig represents configuration for the submission cache
type SubmissionCacheConfig struct {
	MemoryTTL     time.Duration
	RedisTTL      time.Duration
	MaxMemorySize int
	// RedisClient replaces the in-process tier with a Redis tier shared by every instance
	RedisClient *redis.Client
}

// Stats represents cache performance statistics
type Stats struct {
	MemoryHits   int64 `json:"memory_hits"`
	MemoryMisses int64 `json:"memory_misses"`
	RedisHits    int64 `json:"redis_hits"`
	RedisMisses  int64 `json:"redis_misses"`
	StaleFills   int64 `json:"stale_fills"`
	Errors       int64 `json:"errors"`
}

type cacheEntry struct {
	submission *domain.Submission
	expiry     time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiry)
}

// SubmissionCache is a read-through cache for submissions. It keeps an
// in-process LRU, or only Redis when a client is configured so that an
// invalidation on one instance is seen by all of them.
//
// Fills are guarded by a generation: Invalidate bumps it, and Fill drops a
// submission read before the latest invalidation.
type SubmissionCache struct {
	memory    *lru.Cache
	redis     *redis.Client
	memoryTTL time.Duration
	redisTTL  time.Duration
	logger    *logrus.Logger

	// generation of the memory tier; guards fill against invalidate
	mu         sync.Mutex
	generation int64

	stats   Stats
	statsMu sync.Mutex
}

// NewSubmissionCache creates a new submission cache
func NewSubmissionCache(config SubmissionCacheConfig, logger *logrus.Logger) (*SubmissionCache, error) {
	if config.MemoryTTL == 0 {
		config.MemoryTTL = 5 * time.Minute
	}
	if config.RedisTTL == 0 {
		config.RedisTTL = 30 * time.Minute
	}
	if config.MaxMemorySize == 0 {
		config.MaxMemorySize = 1000
	}

	memory, err := lru.New(config.MaxMemorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &SubmissionCache{
		memory:    memory,
		redis:     config.RedisClient,
		memoryTTL: config.MemoryTTL,
		redisTTL:  config.RedisTTL,
		logger:    logger,
	}, nil
}

// NewRedisClient opens the client used by the shared cache tier
func NewRedisClient(ctx context.Context, config domain.CacheConfig) (*redis.Client, error) {
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
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Get returns a cached submission
func (c *SubmissionCache) Get(ctx context.Context, id uuid.UUID) (*domain.Submission, bool) {
	if c.redis != nil {
		return c.getRedis(ctx, id)
	}

	if value, ok := c.memory.Get(id); ok {
		if entry, ok := value.(*cacheEntry); ok && !entry.isExpired() {
			c.count(func(s *Stats) { s.MemoryHits++ })
			return entry.submission, true
		}
		c.memory.Remove(id)
	}
	c.count(func(s *Stats) { s.MemoryMisses++ })
	return nil, false
}

// Generation returns the invalidation generation for id. Read it before
// loading the submission from storage and pass it to Fill.
func (c *SubmissionCache) Generation(ctx context.Context, id uuid.UUID) int64 {
	if c.redis == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.generation
	}

	generation, err := c.redis.Get(ctx, generationKeyPrefix+id.String()).Int64()
	if err == redis.Nil {
		return 0
	}
	if err != nil {
		c.count(func(s *Stats) { s.Errors++ })
		c.logger.WithError(err).WithField("submission_id", id).Debug("Redis generation read failed")
		return -1
	}
	return generation
}

// Fill stores a submission unless it was invalidated after generation was read.
// It reports whether the submission was cached.
func (c *SubmissionCache) Fill(ctx context.Context, submission *domain.Submission, generation int64) bool {
	if submission == nil || generation < 0 {
		return false
	}

	if c.redis == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if generation != c.generation {
			c.count(func(s *Stats) { s.StaleFills++ })
			return false
		}
		c.memory.Add(submission.ID, &cacheEntry{
			submission: submission,
			expiry:     time.Now().Add(c.memoryTTL),
		})
		return true
	}

	data, err := json.Marshal(submission)
	if err != nil {
		c.count(func(s *Stats) { s.Errors++ })
		return false
	}
	keys := []string{submissionKeyPrefix + submission.ID.String(), generationKeyPrefix + submission.ID.String()}
	stored, err := fillScript.Run(ctx, c.redis, keys, data, c.redisTTL.Milliseconds(), generation).Int()
	if err != nil {
		c.count(func(s *Stats) { s.Errors++ })
		c.logger.WithError(err).WithField("submission_id", submission.ID).Debug("Redis cache write failed")
		return false
	}
	if stored == 0 {
		c.count(func(s *Stats) { s.StaleFills++ })
		return false
	}
	return true
}

// Invalidate drops a submission and bumps its generation so in-flight fills are discarded
func (c *SubmissionCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if c.redis == nil {
		c.mu.Lock()
		c.generation++
		c.memory.Remove(id)
		c.mu.Unlock()
		return
	}

	genKey := generationKeyPrefix + id.String()
	pipe := c.redis.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationKeyTTLMult*c.redisTTL)
	pipe.Del(ctx, submissionKeyPrefix+id.String())
	if _, err := pipe.Exec(ctx); err != nil {
		c.count(func(s *Stats) { s.Errors++ })
		c.logger.WithError(err).WithField("submission_id", id).Warn("Redis cache invalidation failed")
	}
}

// Stats returns a snapshot of the cache counters
func (c *SubmissionCache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *SubmissionCache) getRedis(ctx context.Context, id uuid.UUID) (*domain.Submission, bool) {
	data, err := c.redis.Get(ctx, submissionKeyPrefix+id.String()).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.count(func(s *Stats) { s.Errors++ })
			c.logger.WithError(err).WithField("submission_id", id).Debug("Redis cache read failed")
		}
		c.count(func(s *Stats) { s.RedisMisses++ })
		return nil, false
	}

	var submission domain.Submission
	if err := json.Unmarshal(data, &submission); err != nil {
		c.count(func(s *Stats) { s.Errors++ })
		c.redis.Del(ctx, submissionKeyPrefix+id.String())
		return nil, false
	}

	c.count(func(s *Stats) { s.RedisHits++ })
	return &submission, true
}

func (c *SubmissionCache) count(update func(s *Stats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}
