package reputation

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache stores resolved reputation scores across batches.
type Cache interface {
	Get(ip string) (float64, bool)
	Set(ip string, score float64, ttl time.Duration)
	Close() error
}

type memoryEntry struct {
	score  float64
	expiry time.Time
}

// MemoryCache is an in-process TTL cache with simple oldest-expiry eviction.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]memoryEntry
	maxSize int
	done    chan struct{}
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	mc := &MemoryCache{
		data:    make(map[string]memoryEntry),
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go mc.cleanup()
	return mc
}

func (mc *MemoryCache) Get(ip string) (float64, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	entry, ok := mc.data[ip]
	if !ok || time.Now().After(entry.expiry) {
		return 0, false
	}
	return entry.score, true
}

func (mc *MemoryCache) Set(ip string, score float64, ttl time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if len(mc.data) >= mc.maxSize {
		mc.evictOldest()
	}
	mc.data[ip] = memoryEntry{score: score, expiry: time.Now().Add(ttl)}
}

func (mc *MemoryCache) Close() error {
	close(mc.done)
	mc.mu.Lock()
	mc.data = make(map[string]memoryEntry)
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, v := range mc.data {
		if first || v.expiry.Before(oldest) {
			oldestKey = k
			oldest = v.expiry
			first = false
		}
	}
	if oldestKey != "" {
		delete(mc.data, oldestKey)
	}
}

func (mc *MemoryCache) cleanup() {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-mc.done:
			return
		case <-t.C:
			mc.mu.Lock()
			now := time.Now()
			for k, v := range mc.data {
				if now.After(v.expiry) {
					delete(mc.data, k)
				}
			}
			mc.mu.Unlock()
		}
	}
}

// RedisCache shares reputation scores between instances via Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *log.Logger
}

// NewRedisCache opens a Redis-backed cache, verifying connectivity up front.
func NewRedisCache(redisURL, prefix string, logger *log.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, err
	}
	if prefix == "" {
		prefix = "triage:reputation:"
	}
	return &RedisCache{client: c, prefix: prefix, logger: logger}, nil
}

func (rc *RedisCache) Get(ip string) (float64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := rc.client.Get(ctx, rc.prefix+ip).Result()
	if err != nil {
		if err != redis.Nil {
			rc.logger.Printf("redis get %s: %v", ip, err)
		}
		return 0, false
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		_ = rc.client.Del(ctx, rc.prefix+ip).Err()
		return 0, false
	}
	return score, true
}

func (rc *RedisCache) Set(ip string, score float64, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.client.Set(ctx, rc.prefix+ip, strconv.FormatFloat(score, 'f', -1, 64), ttl).Err(); err != nil {
		rc.logger.Printf("redis set %s: %v", ip, err)
	}
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// NewCache returns a Redis cache when a URL is configured and reachable,
// otherwise an in-memory cache.
func NewCache(redisURL string, size int, logger *log.Logger) Cache {
	if redisURL != "" {
		rc, err := NewRedisCache(redisURL, "", logger)
		if err == nil {
			return rc
		}
		logger.Printf("redis reputation cache unavailable, using memory: %v", err)
	}
	return NewMemoryCache(size)
}
