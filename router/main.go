package router

import (
	"github.com/gin-gonic/gin"
)

// SetRouter attaches every HTTP surface to the engine: the protocol relay
// under /v1 and the operational endpoints (probes plus the telemetry sink).
func SetRouter(server *gin.Engine) {
	SetRelayRouter(server)
	SetApiRouter(server)
}
