package ctxkey

import "github.com/gin-gonic/gin"

const (
	// KeyContext holds the resolved *model.KeyContext for the current request.
	// Set in: middleware/auth.APIKeyAuth.
	// Read in: middleware/rate-limit, relay controllers, and the accountant.
	KeyContext = "key_context"

	// RequestModel is the model name exactly as the client sent it.
	// Set in: relay controllers right after the body is parsed.
	// Invariant: never mutate this value; response payloads echo it back, so it
	// must always reflect the caller's original input. The resolved upstream id
	// lives under ResolvedModel instead.
	RequestModel = "request_model"

	// ResolvedModel is the upstream model id produced by the resolver ladder.
	// Set in: relay controllers after resolver.Resolve.
	// Read in: the tracing middleware's request log.
	ResolvedModel = "resolved_model"

	// Dialect records which client protocol the request arrived in
	// ("anthropic" or "openai"). Set in: relay controllers. Read in: error
	// rendering (envelope shape) and metrics labels.
	Dialect = "client_dialect"

	// KeyRequestBody caches the raw request body bytes for reuse (avoid double read).
	// Set in: common/gin.go GetRequestBody and UnmarshalBodyReusable.
	// Read in: middleware and controllers that need the body after binding.
	KeyRequestBody = gin.BodyBytesKey
)
