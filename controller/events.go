package controller

import (
	"net/http"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common"
	"github.com/skybridge-ai/bedrock-gateway/monitor"
)

// eventBatch is the client telemetry payload. Events are free-form objects;
// only the type field is looked at, for the debug log.
type eventBatch struct {
	Events []map[string]any `json:"events"`
}

// EventLoggingBatch handles POST /api/event_logging/batch. The gateway is a
// sink for this telemetry: it acknowledges receipt and drops the payload.
// Malformed batches are acknowledged too; client logging must never fail a
// caller.
func EventLoggingBatch(c *gin.Context) {
	var batch eventBatch
	if err := common.UnmarshalBodyReusable(c, &batch); err != nil {
		gmw.GetLogger(c).Debug("undecodable event batch", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": true, "events_received": 0})
		return
	}

	n := len(batch.Events)
	monitor.EventsReceived.Add(float64(n))
	if n > 0 {
		types := make([]string, 0, n)
		for _, ev := range batch.Events {
			if t, ok := ev["type"].(string); ok && t != "" {
				types = append(types, t)
			}
		}
		gmw.GetLogger(c).Debug("client event batch received",
			zap.Int("count", n),
			zap.Strings("types", types))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "events_received": n})
}
