package model

// StreamEventType enumerates the provider-neutral stream vocabulary. The
// upstream transcoder emits these; each dialect serializer renders them onto
// its own wire format.
type StreamEventType string

const (
	EventMessageStart      StreamEventType = "message_start"
	EventContentBlockStart StreamEventType = "content_block_start"
	EventContentBlockDelta StreamEventType = "content_block_delta"
	EventContentBlockStop  StreamEventType = "content_block_stop"
	EventMessageDelta      StreamEventType = "message_delta"
	EventMessageStop       StreamEventType = "message_stop"
	EventError             StreamEventType = "error"
	EventPing              StreamEventType = "ping"
)

// Delta kinds carried by content_block_delta events.
const (
	DeltaText      = "text_delta"
	DeltaInputJSON = "input_json_delta"
	DeltaThinking  = "thinking_delta"
)

// StreamEvent is one provider-neutral stream frame. Only the fields relevant
// to Type are set.
type StreamEvent struct {
	Type StreamEventType

	// Index addresses the content block of content_block_* events. Indices
	// never decrease within a stream and each index opens at most once.
	Index int

	// Block describes the freshly opened block on content_block_start. For
	// tool_use blocks it carries the id and the client-visible name with an
	// empty input; arguments arrive via input_json_delta frames.
	Block *ContentBlock

	// Delta carries the increment on content_block_delta.
	Delta *StreamDelta

	// StopReason, StopSequence and Usage are set on message_delta.
	StopReason   StopReason
	StopSequence string
	Usage        *Usage

	// Err is set on error events. The stream still terminates with
	// message_stop afterwards.
	Err *Error
}

// StreamDelta is the payload increment of one content_block_delta.
type StreamDelta struct {
	Kind string // DeltaText, DeltaInputJSON or DeltaThinking
	// Text carries text_delta and thinking_delta payloads.
	Text string
	// PartialJSON carries input_json_delta fragments, forwarded verbatim and
	// never re-chunked.
	PartialJSON string
}
