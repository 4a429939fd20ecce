package openai

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/render"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
)

// ChunkWriter serializes canonical stream events as Chat Completions chunks.
// One writer serves one stream: the chunk id and creation time are fixed at
// construction and repeat on every frame.
type ChunkWriter struct {
	c       *gin.Context
	id      string
	model   string
	created int64

	roleSent bool
	// callIndex maps upstream block indices to tool_calls indices, assigned
	// in order of first appearance.
	callIndex map[int]int
}

func NewChunkWriter(c *gin.Context, model string) *ChunkWriter {
	return &ChunkWriter{
		c:         c,
		id:        relaymodel.NewChatCompletionID(),
		model:     model,
		created:   time.Now().Unix(),
		callIndex: make(map[int]int),
	}
}

// ChunkID returns the identifier shared by every chunk of this stream.
func (w *ChunkWriter) ChunkID() string {
	return w.id
}

// Write renders one canonical event. Events without a Chat Completions
// equivalent (message_start, content_block_stop, thinking deltas, pings)
// emit nothing; the first content-bearing chunk carries the assistant role.
func (w *ChunkWriter) Write(ev relaymodel.StreamEvent) error {
	switch ev.Type {
	case relaymodel.EventContentBlockStart:
		if ev.Block == nil || ev.Block.Kind != relaymodel.BlockToolUse {
			return nil
		}
		idx := w.toolCallIndex(ev.Index)
		return w.send(relaymodel.ChatDelta{
			Role: w.pendingRole(),
			ToolCalls: []relaymodel.Tool{{
				Index:    &idx,
				Id:       ev.Block.ToolUseID,
				Type:     "function",
				Function: &relaymodel.Function{Name: ev.Block.ToolName},
			}},
		}, nil, nil)
	case relaymodel.EventContentBlockDelta:
		if ev.Delta == nil {
			return nil
		}
		switch ev.Delta.Kind {
		case relaymodel.DeltaText:
			return w.send(relaymodel.ChatDelta{
				Role:    w.pendingRole(),
				Content: ev.Delta.Text,
			}, nil, nil)
		case relaymodel.DeltaInputJSON:
			idx := w.toolCallIndex(ev.Index)
			return w.send(relaymodel.ChatDelta{
				Role: w.pendingRole(),
				ToolCalls: []relaymodel.Tool{{
					Index:    &idx,
					Function: &relaymodel.Function{Arguments: ev.Delta.PartialJSON},
				}},
			}, nil, nil)
		default:
			return nil
		}
	case relaymodel.EventMessageDelta:
		reason := ev.StopReason.OpenAI()
		var usage *relaymodel.OpenAIUsage
		if ev.Usage != nil {
			usage = ev.Usage.OpenAI()
		}
		return w.send(relaymodel.ChatDelta{}, &reason, usage)
	case relaymodel.EventMessageStop:
		render.Done(w.c)
		return nil
	case relaymodel.EventError:
		if ev.Err == nil {
			return nil
		}
		return render.ObjectData(w.c, relaymodel.OpenAIErrorResponse{Error: *ev.Err})
	default:
		return nil
	}
}

func (w *ChunkWriter) pendingRole() string {
	if w.roleSent {
		return ""
	}
	w.roleSent = true
	return relaymodel.RoleAssistant
}

func (w *ChunkWriter) toolCallIndex(upstreamIndex int) int {
	if idx, ok := w.callIndex[upstreamIndex]; ok {
		return idx
	}
	idx := len(w.callIndex)
	w.callIndex[upstreamIndex] = idx
	return idx
}

func (w *ChunkWriter) send(delta relaymodel.ChatDelta, finishReason *string, usage *relaymodel.OpenAIUsage) error {
	return render.ObjectData(w.c, relaymodel.ChatChunk{
		Id:      w.id,
		Object:  "chat.completion.chunk",
		Created: w.created,
		Model:   w.model,
		Choices: []relaymodel.ChatChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
		Usage: usage,
	})
}
