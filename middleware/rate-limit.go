package middleware

import (
	"container/list"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	"github.com/skybridge-ai/bedrock-gateway/monitor"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// tokenBucket is one key's admission state: capacity tokens refilling
// linearly over the window. Guarded by its own mutex so refill arithmetic
// never holds a shard lock.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time

	// LRU bookkeeping, guarded by the owning shard's lock.
	key      string
	element  *list.Element
	lastSeen time.Time
}

// admission is one limiter decision plus the header material derived from it.
type admission struct {
	allowed    bool
	limit      int
	remaining  int
	retryAfter time.Duration
	resetAt    time.Time
}

// take refills the bucket for elapsed wall time and consumes one token when
// available. Adopts a changed per-key limit in place.
func (b *tokenBucket) take(now time.Time, capacity float64, refillRate float64) admission {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity != capacity || b.refillRate != refillRate {
		b.capacity = capacity
		b.refillRate = refillRate
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
		b.lastRefill = now
	}

	verdict := admission{limit: int(b.capacity)}
	if b.tokens >= 1 {
		b.tokens--
		verdict.allowed = true
	} else {
		verdict.retryAfter = time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
	}
	verdict.remaining = int(b.tokens)
	missing := b.capacity - b.tokens
	verdict.resetAt = now.Add(time.Duration(missing / b.refillRate * float64(time.Second)))
	return verdict
}

// bucketShard owns a slice of the key space: its own map, LRU list, and
// bound. Striping keeps unrelated keys off each other's lock.
type bucketShard struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
	lru     *list.List // front = most recently used
	max     int
	ttl     time.Duration
}

const bucketShardCount = 32

type bucketRegistry struct {
	shards [bucketShardCount]*bucketShard
}

func newBucketRegistry(maxBuckets int, ttl time.Duration) *bucketRegistry {
	perShard := maxBuckets / bucketShardCount
	if perShard < 1 {
		perShard = 1
	}
	r := &bucketRegistry{}
	for i := range r.shards {
		r.shards[i] = &bucketShard{
			buckets: make(map[string]*tokenBucket),
			lru:     list.New(),
			max:     perShard,
			ttl:     ttl,
		}
	}
	return r
}

func (r *bucketRegistry) shard(key string) *bucketShard {
	// FNV-1a, inlined to avoid allocating a hasher per decision.
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return r.shards[h%bucketShardCount]
}

// admit charges one request against the key's bucket, creating it on first
// sight and evicting idle or surplus buckets from the shard.
func (r *bucketRegistry) admit(key string, limit int, window time.Duration) admission {
	now := helper.Now()
	capacity := float64(limit)
	refillRate := capacity / window.Seconds()

	s := r.shard(key)
	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &tokenBucket{
			key:        key,
			capacity:   capacity,
			refillRate: refillRate,
			tokens:     capacity,
			lastRefill: now,
		}
		b.element = s.lru.PushFront(b)
		s.buckets[key] = b
	} else {
		s.lru.MoveToFront(b.element)
	}
	b.lastSeen = now
	s.evict(now)
	s.mu.Unlock()

	return b.take(now, capacity, refillRate)
}

// evict drops buckets from the cold end of the LRU: everything idle past the
// TTL, then the oldest entries while the shard is over its bound. Caller
// holds the shard lock.
func (s *bucketShard) evict(now time.Time) {
	for e := s.lru.Back(); e != nil; {
		b := e.Value.(*tokenBucket)
		if now.Sub(b.lastSeen) < s.ttl && s.lru.Len() <= s.max {
			return
		}
		prev := e.Prev()
		s.lru.Remove(e)
		delete(s.buckets, b.key)
		e = prev
	}
}

// RateLimit enforces the per-key token bucket. Capacity comes from the key's
// rate_limit attribute, falling back to the configured default; refill is
// linear over RATE_LIMIT_WINDOW_SECONDS. Decisions are non-blocking: a
// request either takes a token or is rejected with 429, Retry-After, and the
// X-RateLimit-* headers. Synthetic identities (master, ephemeral, open mode)
// bypass the limiter.
func RateLimit() gin.HandlerFunc {
	registry := newBucketRegistry(config.RateLimitMaxBuckets, config.RateLimitBucketTTL)
	window := time.Duration(config.RateLimitWindowSeconds) * time.Second

	return func(c *gin.Context) {
		if !config.RateLimitEnabled {
			c.Next()
			return
		}
		key := GetKeyContext(c)
		if key == nil || key.Synthetic {
			c.Next()
			return
		}
		limit := key.RateLimit
		if limit <= 0 {
			limit = config.RateLimitRequestsPerWindow
		}
		if limit <= 0 {
			c.Next()
			return
		}

		verdict := registry.admit(key.APIKey, limit, window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(verdict.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(verdict.remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(verdict.resetAt.Unix(), 10))

		if !verdict.allowed {
			retryAfter := int(math.Ceil(verdict.retryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			monitor.RateLimited.Inc()
			AbortWithError(c, relaymodel.NewRateLimitError(fmt.Sprintf(
				"rate limit exceeded: %d requests per %s window", verdict.limit, window)))
			return
		}
		c.Next()
	}
}
