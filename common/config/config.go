package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skybridge-ai/bedrock-gateway/common/env"
)

var (
	// Host is the listen address for the HTTP server; empty binds all interfaces.
	Host = strings.TrimSpace(env.String("HOST", ""))
	// ServerPort overrides the --port flag when running inside container or PaaS environments.
	ServerPort = strings.TrimSpace(env.String("PORT", ""))
	// GinMode allows forcing Gin into release mode (or other modes) without recompiling.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", ""))

	// Environment labels the deployment (development, staging, production) and
	// only changes what gets warned about at startup, never behavior.
	Environment = func() string {
		v := strings.ToLower(strings.TrimSpace(env.String("ENVIRONMENT", "development")))
		if !ValidEnvironments[v] {
			panic(fmt.Sprintf("invalid ENVIRONMENT: %q", v))
		}
		return v
	}()

	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)
	// OnlyOneLogFile merges all file logs into a single file instead of one per day.
	OnlyOneLogFile = env.Bool("ONLY_ONE_LOG_FILE", false)

	// RequireAPIKey gates authentication. When false every request runs under a
	// synthetic open identity; a warning is logged at startup.
	RequireAPIKey = env.Bool("REQUIRE_API_KEY", true)
	// MasterAPIKey is the static admin credential. It bypasses the key store and
	// the rate limiter. Empty disables the master credential entirely.
	MasterAPIKey = strings.TrimSpace(env.String("MASTER_API_KEY", ""))

	// RateLimitEnabled toggles the per-key token bucket limiter.
	RateLimitEnabled = env.Bool("RATE_LIMIT_ENABLED", true)
	// RateLimitRequestsPerWindow is the default bucket capacity for keys that do
	// not carry their own rate_limit attribute.
	RateLimitRequestsPerWindow = func() int {
		v := env.Int("RATE_LIMIT_REQUESTS_PER_WINDOW", 60)
		if v <= 0 {
			panic("RATE_LIMIT_REQUESTS_PER_WINDOW must be positive")
		}
		return v
	}()
	// RateLimitWindowSeconds is the refill window for every token bucket.
	RateLimitWindowSeconds = func() int {
		v := env.Int("RATE_LIMIT_WINDOW_SECONDS", 60)
		if v <= 0 {
			panic("RATE_LIMIT_WINDOW_SECONDS must be positive")
		}
		return v
	}()
	// RateLimitMaxBuckets bounds the limiter's LRU bucket cache.
	RateLimitMaxBuckets = env.Int("RATE_LIMIT_MAX_BUCKETS", 10000)

	// AnthropicDefaultModel overrides every model resolution when set.
	AnthropicDefaultModel = strings.TrimSpace(env.String("ANTHROPIC_DEFAULT_MODEL", ""))
	// AnthropicDefaultSonnetModel overrides resolution for the sonnet family.
	AnthropicDefaultSonnetModel = strings.TrimSpace(env.String("ANTHROPIC_DEFAULT_SONNET_MODEL", ""))
	// AnthropicDefaultHaikuModel overrides resolution for the haiku family.
	AnthropicDefaultHaikuModel = strings.TrimSpace(env.String("ANTHROPIC_DEFAULT_HAIKU_MODEL", ""))
	// AnthropicDefaultOpusModel overrides resolution for the opus family.
	AnthropicDefaultOpusModel = strings.TrimSpace(env.String("ANTHROPIC_DEFAULT_OPUS_MODEL", ""))

	// AWSRegion selects the region for both Bedrock and DynamoDB clients.
	AWSRegion = strings.TrimSpace(env.String("AWS_REGION", "us-east-1"))
	// AWSAccessKeyID / AWSSecretAccessKey force static credentials; when empty
	// the SDK's default credential chain (env, shared config, IMDS) applies.
	AWSAccessKeyID     = strings.TrimSpace(env.String("AWS_ACCESS_KEY_ID", ""))
	AWSSecretAccessKey = strings.TrimSpace(env.String("AWS_SECRET_ACCESS_KEY", ""))
	// BedrockEndpointURL overrides the Bedrock runtime endpoint (integration tests).
	BedrockEndpointURL = strings.TrimSpace(env.String("BEDROCK_ENDPOINT_URL", ""))
	// DynamoDBEndpointURL overrides the DynamoDB endpoint (local development).
	DynamoDBEndpointURL = strings.TrimSpace(env.String("DYNAMODB_ENDPOINT_URL", ""))
	// DynamoDBTablePrefix is prepended to every table name so several
	// deployments can share one account.
	DynamoDBTablePrefix = strings.TrimSpace(env.String("DYNAMODB_TABLE_PREFIX", ""))

	// RedisConnString enables the optional key-context cache; empty disables Redis.
	RedisConnString = strings.TrimSpace(env.String("REDIS_CONN_STRING", ""))
	// RedisMasterName enables Redis sentinel/cluster discovery when provided.
	RedisMasterName = strings.TrimSpace(env.String("REDIS_MASTER_NAME", ""))
	// RedisPassword supplies the Redis authentication password when required.
	RedisPassword = env.String("REDIS_PASSWORD", "")
	// KeyCacheSeconds is the TTL for cached key contexts; writes invalidate early.
	KeyCacheSeconds = env.Int("KEY_CACHE_SECONDS", 60)

	// UpstreamTimeoutSeconds bounds unary upstream calls.
	UpstreamTimeoutSeconds = env.Int("UPSTREAM_TIMEOUT_SECONDS", 120)
	// StreamingTimeoutSeconds bounds the total wall clock of a streamed response.
	StreamingTimeoutSeconds = env.Int("STREAMING_TIMEOUT_SECONDS", 300)
	// StreamIdleTimeoutSeconds aborts a stream when the upstream goes silent.
	StreamIdleTimeoutSeconds = env.Int("STREAM_IDLE_TIMEOUT_SECONDS", 30)
	// PersistenceTimeoutSeconds bounds every DynamoDB operation including retries.
	PersistenceTimeoutSeconds = env.Int("PERSISTENCE_TIMEOUT_SECONDS", 5)

	// ShutdownTimeoutSec specifies the graceful shutdown timeout (seconds) for
	// the HTTP server and background accounting workers.
	ShutdownTimeoutSec = env.Int("SHUTDOWN_TIMEOUT", 30)

	// EnablePrometheusMetrics exposes the /metrics endpoint for Prometheus scrapers when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)

	// ApproximateTokenEnabled estimates token counts from character length
	// instead of tiktoken, for offline deployments without encoder files.
	ApproximateTokenEnabled = env.Bool("APPROXIMATE_TOKEN_ENABLED", false)

	// PTCEnabled turns on the programmatic tool-calling subsystem; the stock
	// build ships only the disabled executor.
	PTCEnabled = env.Bool("PTC_ENABLED", false)
	// PTCExecutor names the registered executor requests should run under
	// when PTC is enabled.
	PTCExecutor = env.String("PTC_EXECUTOR", "disabled")

	// MaxInlineImageSizeMB limits the size (MB) of images that can be inlined as
	// base64 to prevent oversized payloads from overwhelming the upstream.
	MaxInlineImageSizeMB = func() int {
		v := env.Int("MAX_INLINE_IMAGE_SIZE_MB", 30)
		if v < 0 {
			panic("MAX_INLINE_IMAGE_SIZE_MB must not be negative")
		}
		return v
	}()

	// SmokeAPIBase configures the base URL probed by the cmd/smoketest sweeper.
	SmokeAPIBase = strings.TrimSpace(env.String("SMOKE_API_BASE", ""))
	// SmokeAPIKey is the credential cmd/smoketest presents on every request.
	SmokeAPIKey = strings.TrimSpace(env.String("SMOKE_API_KEY", ""))
	// SmokeModels lists comma-separated model aliases swept by cmd/smoketest.
	SmokeModels = strings.TrimSpace(env.String("SMOKE_MODELS", ""))
	// SmokeVariants limits cmd/smoketest to specific request variants.
	SmokeVariants = strings.TrimSpace(env.String("SMOKE_VARIANTS", ""))
)

// EphemeralAPIKey is minted once per process at startup. It authenticates
// in-process tooling (smoke tests, the PTC runner) without touching the key
// store and is never persisted.
var EphemeralAPIKey string

// ValidEnvironments enumerates the accepted ENVIRONMENT values.
var ValidEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

// Rate-limiter internals that are deliberately not environment-tunable.
var (
	// RateLimitBucketTTL evicts buckets idle for this long.
	RateLimitBucketTTL = time.Hour
)

// Streaming keepalive; Anthropic clients expect a ping roughly every 15s.
var StreamPingInterval = 15 * time.Second

// Persistence retry policy (transient classes only).
var (
	PersistenceRetryBase  = 50 * time.Millisecond
	PersistenceRetryMax   = time.Second
	PersistenceMaxRetries = 3
)

func init() {
	EphemeralAPIKey = "sk-" + uuid.NewString()
}
