package anthropic

import (
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/render"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// StreamWriter renders canonical stream events as Anthropic named SSE frames
// (`event: <name>` + `data: <json>`). One writer serves one stream; it owns
// the message id echoed in message_start.
type StreamWriter struct {
	c         *gin.Context
	messageID string
	model     string
}

// NewStreamWriter binds a writer to one response stream. model is the name
// the client asked for.
func NewStreamWriter(c *gin.Context, model string) *StreamWriter {
	return &StreamWriter{
		c:         c,
		messageID: relaymodel.NewMessageID(),
		model:     model,
	}
}

// MessageID reports the identifier minted for this stream's message.
func (w *StreamWriter) MessageID() string { return w.messageID }

// Write renders one canonical event and flushes it.
func (w *StreamWriter) Write(ev relaymodel.StreamEvent) error {
	name := string(ev.Type)
	switch ev.Type {
	case relaymodel.EventMessageStart:
		return render.EventData(w.c, name, relaymodel.ClaudeStreamEvent{
			Type: name,
			Message: &relaymodel.ClaudeResponse{
				ID:      w.messageID,
				Type:    "message",
				Role:    relaymodel.RoleAssistant,
				Content: []relaymodel.ClaudeContentBlock{},
				Model:   w.model,
			},
		})

	case relaymodel.EventContentBlockStart:
		index := ev.Index
		return render.EventData(w.c, name, relaymodel.ClaudeStreamEvent{
			Type:         name,
			Index:        &index,
			ContentBlock: openedBlock(ev.Block),
		})

	case relaymodel.EventContentBlockDelta:
		index := ev.Index
		return render.EventData(w.c, name, relaymodel.ClaudeStreamEvent{
			Type:  name,
			Index: &index,
			Delta: deltaPayload(ev.Delta),
		})

	case relaymodel.EventContentBlockStop:
		index := ev.Index
		return render.EventData(w.c, name, relaymodel.ClaudeStreamEvent{
			Type:  name,
			Index: &index,
		})

	case relaymodel.EventMessageDelta:
		delta := &relaymodel.ClaudeDelta{}
		if ev.StopReason != "" {
			reason := ev.StopReason.Anthropic()
			delta.StopReason = &reason
		}
		if ev.StopSequence != "" {
			seq := ev.StopSequence
			delta.StopSequence = &seq
		}
		return render.EventData(w.c, name, relaymodel.ClaudeStreamEvent{
			Type:  name,
			Delta: delta,
			Usage: ev.Usage,
		})

	case relaymodel.EventMessageStop:
		return render.EventData(w.c, name, relaymodel.ClaudeStreamEvent{Type: name})

	case relaymodel.EventError:
		return render.EventData(w.c, name, relaymodel.ClaudeErrorResponse{
			Type: "error",
			Error: relaymodel.ClaudeError{
				Type:    ev.Err.Type,
				Message: ev.Err.Message,
			},
		})

	case relaymodel.EventPing:
		return render.EventData(w.c, name, relaymodel.ClaudeStreamEvent{Type: name})
	}
	return nil
}

// openedBlock shapes the content_block carried by content_block_start: text
// and thinking blocks open empty, tool_use opens with its id, de-aliased name
// and an empty input object.
func openedBlock(block *relaymodel.ContentBlock) *relaymodel.ClaudeContentBlock {
	if block == nil {
		empty := ""
		return &relaymodel.ClaudeContentBlock{Type: "text", Text: &empty}
	}
	switch block.Kind {
	case relaymodel.BlockToolUse:
		input := block.InputJSON
		if len(input) == 0 {
			input = []byte("{}")
		}
		return &relaymodel.ClaudeContentBlock{
			Type:  "tool_use",
			ID:    block.ToolUseID,
			Name:  block.ToolName,
			Input: input,
		}
	case relaymodel.BlockThinking:
		empty := ""
		return &relaymodel.ClaudeContentBlock{Type: "thinking", Thinking: &empty}
	default:
		empty := ""
		return &relaymodel.ClaudeContentBlock{Type: "text", Text: &empty}
	}
}

func deltaPayload(delta *relaymodel.StreamDelta) *relaymodel.ClaudeDelta {
	if delta == nil {
		return nil
	}
	out := &relaymodel.ClaudeDelta{Type: delta.Kind}
	switch delta.Kind {
	case relaymodel.DeltaText:
		out.Text = delta.Text
	case relaymodel.DeltaInputJSON:
		out.PartialJSON = delta.PartialJSON
	case relaymodel.DeltaThinking:
		out.Thinking = delta.Text
	}
	return out
}
