package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/skybridge-ai/bedrock-gateway/common"
	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
)

// Model metadata changes rarely; a short in-process TTL keeps the resolver
// and the models listing off DynamoDB on the hot path. Key contexts go
// through Redis instead so invalidation works across replicas.
var (
	metaCache = gocache.New(5*time.Minute, 10*time.Minute)
	metaGroup singleflight.Group
)

func keyCacheKey(apiKey string) string { return "key:" + apiKey }

// CacheGetKey is the auth guard's key lookup: Redis read-through when
// enabled, straight store read otherwise. Cache corruption or staleness must
// never lock a caller out, so decode failures fall back to the store.
func CacheGetKey(ctx context.Context, apiKey string) (*KeyContext, error) {
	if !common.IsRedisEnabled() {
		return GetKey(ctx, apiKey)
	}

	if raw, err := common.RedisGet(ctx, keyCacheKey(apiKey)); err == nil {
		var key KeyContext
		if err := json.Unmarshal([]byte(raw), &key); err == nil {
			return &key, nil
		}
		if err := CacheInvalidateKey(ctx, apiKey); err != nil {
			logger.Logger.Warn("failed to drop undecodable key cache entry", zap.Error(err))
		}
	}

	key, err := GetKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(key); err == nil {
		ttl := time.Duration(config.KeyCacheSeconds) * time.Second
		if err := common.RedisSet(ctx, keyCacheKey(apiKey), string(raw), ttl); err != nil {
			logger.Logger.Warn("failed to cache key context", zap.Error(err))
		}
	}
	return key, nil
}

// CacheInvalidateKey drops a key's cache entry after any write that changes
// its policy (budget counters, deactivation, reactivation).
func CacheInvalidateKey(ctx context.Context, apiKey string) error {
	if !common.IsRedisEnabled() {
		return nil
	}
	return common.RedisDel(ctx, keyCacheKey(apiKey))
}

// CacheGetModelMapping looks up a persisted override with a five-minute
// in-process cache. Misses are cached too: the resolver asks on every
// request, and most ids have no override row.
func CacheGetModelMapping(ctx context.Context, anthropicModelID string) (*ModelMapping, error) {
	cacheKey := "mapping:" + anthropicModelID
	if v, ok := metaCache.Get(cacheKey); ok {
		if m, ok := v.(*ModelMapping); ok && m != nil {
			return m, nil
		}
		return nil, ErrMappingNotFound
	}

	v, err, _ := metaGroup.Do(cacheKey, func() (any, error) {
		m, err := GetModelMapping(ctx, anthropicModelID)
		if err != nil {
			if errors.Is(err, ErrMappingNotFound) {
				metaCache.SetDefault(cacheKey, (*ModelMapping)(nil))
			}
			return nil, err
		}
		metaCache.SetDefault(cacheKey, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ModelMapping), nil
}

// CacheListModelPricing returns every pricing row with the same TTL cache.
func CacheListModelPricing(ctx context.Context) ([]ModelPricing, error) {
	const cacheKey = "pricing:all"
	if v, ok := metaCache.Get(cacheKey); ok {
		return v.([]ModelPricing), nil
	}

	v, err, _ := metaGroup.Do(cacheKey, func() (any, error) {
		rows, err := ListModelPricing(ctx)
		if err != nil {
			return nil, err
		}
		metaCache.SetDefault(cacheKey, rows)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ModelPricing), nil
}

// CacheGetModelPricing looks up one pricing row against the cached listing,
// falling back to a point read when the listing has not been warmed.
func CacheGetModelPricing(ctx context.Context, modelID string) (*ModelPricing, error) {
	if v, ok := metaCache.Get("pricing:all"); ok {
		rows := v.([]ModelPricing)
		for i := range rows {
			if rows[i].ModelID == modelID {
				return &rows[i], nil
			}
		}
		return nil, ErrPricingNotFound
	}
	return GetModelPricing(ctx, modelID)
}

// FlushMetaCache clears the in-process model metadata cache. Tests use it;
// operators get fresh rows after five minutes anyway.
func FlushMetaCache() {
	metaCache.Flush()
}
