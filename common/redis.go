package common

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/go-redis/redis/v8"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/logger"
)

// RDB backs the optional key-context cache. Nil when Redis is disabled; every
// caller must go through the helpers below, which degrade to errors instead
// of panicking.
var RDB redis.Cmdable

var redisEnabled atomic.Bool

func IsRedisEnabled() bool {
	return redisEnabled.Load()
}

func SetRedisEnabled(enabled bool) {
	redisEnabled.Store(enabled)
}

// InitRedisClient connects to Redis when REDIS_CONN_STRING is set. The
// gateway is fully functional without it; the cache only shaves a DynamoDB
// read off the auth path.
func InitRedisClient() (err error) {
	if config.RedisConnString == "" {
		SetRedisEnabled(false)
		logger.Logger.Info("REDIS_CONN_STRING not set, Redis is not enabled")
		return nil
	}

	if config.RedisMasterName == "" {
		logger.Logger.Info("Redis is enabled")
		opt, err := redis.ParseURL(config.RedisConnString)
		if err != nil {
			return errors.Wrap(err, "failed to parse Redis connection string")
		}
		RDB = redis.NewClient(opt)
	} else {
		// sentinel / cluster mode
		logger.Logger.Info("Redis cluster mode enabled")
		RDB = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:      strings.Split(config.RedisConnString, ","),
			Password:   config.RedisPassword,
			MasterName: config.RedisMasterName,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err = RDB.Ping(ctx).Result(); err != nil {
		logger.Logger.Fatal("Redis ping test failed", zap.Error(err))
	}
	SetRedisEnabled(true)
	return nil
}

func RedisSet(ctx context.Context, key string, value string, expiration time.Duration) error {
	if RDB == nil {
		return errors.New("redis not initialized")
	}
	if err := RDB.Set(ctx, key, value, expiration).Err(); err != nil {
		return errors.Wrapf(err, "failed to set redis key: %s", key)
	}
	return nil
}

func RedisGet(ctx context.Context, key string) (string, error) {
	if RDB == nil {
		return "", errors.New("redis not initialized")
	}
	val, err := RDB.Get(ctx, key).Result()
	if err != nil {
		return "", errors.Wrapf(err, "failed to get redis key: %s", key)
	}
	return val, nil
}

func RedisDel(ctx context.Context, key string) error {
	if RDB == nil {
		return errors.New("redis not initialized")
	}
	if err := RDB.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete redis key: %s", key)
	}
	return nil
}
