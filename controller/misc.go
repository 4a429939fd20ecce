// Package controller hosts the operational endpoints that live outside the
// relay surface: health and readiness probes plus the client telemetry sink.
package controller

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common"
	"github.com/skybridge-ai/bedrock-gateway/common/config"
	"github.com/skybridge-ai/bedrock-gateway/common/graceful"
	"github.com/skybridge-ai/bedrock-gateway/relay/ptc"
)

// Health handles GET /health: process-level health, always 200 while the
// process can serve.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"version":    common.Version,
		"start_time": common.StartTime,
	})
}

// Ready handles GET /ready. It reports 503 once shutdown has begun so the
// load balancer drains traffic away while in-flight requests finish.
func Ready(c *gin.Context) {
	if graceful.IsDraining() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "draining"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Liveness handles GET /liveness: a restart signal for the orchestrator,
// distinct from readiness so a draining pod is not killed mid-drain.
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// PTCHealth handles GET /health/ptc, reporting every registered tool-calling
// executor. With PTC disabled the listing still shows what is registered.
func PTCHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":   config.PTCEnabled,
		"executors": ptc.HealthSnapshot(gmw.Ctx(c)),
	})
}
