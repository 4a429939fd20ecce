// Package render flushes SSE frames in the two dialect framings: bare
// "data:" lines for OpenAI-style streams and named events for Anthropic-style
// streams.
package render

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common"
)

// StringData writes one unnamed SSE frame carrying str and flushes it.
func StringData(c *gin.Context, str string) {
	str = strings.TrimPrefix(str, "data: ")
	str = strings.TrimSuffix(str, "\r")
	c.Render(-1, common.CustomEvent{Data: "data: " + str})
	c.Writer.Flush()
}

// ObjectData marshals object into one unnamed SSE frame.
func ObjectData(c *gin.Context, object any) error {
	jsonData, err := json.Marshal(object)
	if err != nil {
		return errors.Wrap(err, "marshal sse payload")
	}
	StringData(c, string(jsonData))
	return nil
}

// EventData marshals object into a named SSE event frame
// ("event: <name>\ndata: <json>\n\n").
func EventData(c *gin.Context, event string, object any) error {
	jsonData, err := json.Marshal(object)
	if err != nil {
		return errors.Wrapf(err, "marshal sse payload for event %s", event)
	}
	c.Render(-1, common.CustomEvent{Event: event, Data: "data: " + string(jsonData)})
	c.Writer.Flush()
	return nil
}

// Done terminates an OpenAI-style stream.
func Done(c *gin.Context) {
	StringData(c, "[DONE]")
}
