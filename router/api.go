package router

import (
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/controller"
)

// SetApiRouter wires the operational endpoints. None of them take a key:
// the probes are called by the orchestrator, and the telemetry sink has to
// keep accepting batches even from callers whose key was deactivated.
func SetApiRouter(server *gin.Engine) {
	server.GET("/health", controller.Health)
	server.GET("/ready", controller.Ready)
	server.GET("/liveness", controller.Liveness)
	server.GET("/health/ptc", controller.PTCHealth)

	apiRouter := server.Group("/api")
	{
		apiRouter.POST("/event_logging/batch", controller.EventLoggingBatch)
	}
}
