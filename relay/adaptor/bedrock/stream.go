package bedrock

import (
	"encoding/json"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
	"github.com/skybridge-ai/bedrock-gateway/relay/toolmap"
)

// StreamState transcodes the upstream event stream into canonical stream
// events while enforcing the framing contract: one message_start first, one
// message_stop last, per-index start before deltas before stop, and indices
// opened at most once. The upstream is well behaved in practice, but the
// invariants hold here so the dialect serializers never have to care.
type StreamState struct {
	names *toolmap.Map

	started  bool
	finished bool

	// open tracks blocks announced but not yet stopped, closed the ones
	// already stopped. Both are keyed by upstream block index.
	open   map[int]relaymodel.BlockKind
	closed map[int]bool

	usage      relaymodel.Usage
	sawUsage   bool
	stopReason relaymodel.StopReason
}

// NewStreamState returns a transcoder bound to one request's tool name map.
func NewStreamState(names *toolmap.Map) *StreamState {
	return &StreamState{
		names:  names,
		open:   make(map[int]relaymodel.BlockKind),
		closed: make(map[int]bool),
	}
}

// Usage reports the accumulated usage for accounting.
func (s *StreamState) Usage() relaymodel.Usage { return s.usage }

// SawUsage reports whether the upstream delivered its metadata frame. A
// cancelled stream without it writes no usage record.
func (s *StreamState) SawUsage() bool { return s.sawUsage }

// StopReason reports the recorded terminal reason, empty until messageStop.
func (s *StreamState) StopReason() relaymodel.StopReason { return s.stopReason }

// Finished reports whether message_stop has been emitted.
func (s *StreamState) Finished() bool { return s.finished }

// Handle transcodes one upstream event into zero or more canonical events.
func (s *StreamState) Handle(event types.ConverseStreamOutput) []relaymodel.StreamEvent {
	if s.finished {
		// Late frames can still carry usage worth accounting.
		if meta, ok := event.(*types.ConverseStreamOutputMemberMetadata); ok {
			s.mergeUsage(meta.Value.Usage)
			s.sawUsage = true
		}
		return nil
	}

	switch v := event.(type) {
	case *types.ConverseStreamOutputMemberMessageStart:
		return s.ensureStarted(nil)

	case *types.ConverseStreamOutputMemberContentBlockStart:
		return s.handleBlockStart(&v.Value)

	case *types.ConverseStreamOutputMemberContentBlockDelta:
		return s.handleBlockDelta(&v.Value)

	case *types.ConverseStreamOutputMemberContentBlockStop:
		idx := indexOf(v.Value.ContentBlockIndex)
		if _, isOpen := s.open[idx]; !isOpen {
			return nil
		}
		delete(s.open, idx)
		s.closed[idx] = true
		return s.ensureStarted([]relaymodel.StreamEvent{{
			Type:  relaymodel.EventContentBlockStop,
			Index: idx,
		}})

	case *types.ConverseStreamOutputMemberMessageStop:
		s.stopReason = convertStopReason(v.Value.StopReason)
		return nil

	case *types.ConverseStreamOutputMemberMetadata:
		s.mergeUsage(v.Value.Usage)
		s.sawUsage = true
		return s.finish()
	}

	return nil
}

// Finish closes the stream when the upstream ended without a metadata frame.
// It is idempotent.
func (s *StreamState) Finish() []relaymodel.StreamEvent {
	return s.finish()
}

// Fail terminates the stream with an in-band error: the error event, then
// message_stop. Open blocks stay open per the framing contract for aborted
// streams.
func (s *StreamState) Fail(streamErr *relaymodel.Error) []relaymodel.StreamEvent {
	if s.finished {
		return nil
	}
	s.finished = true
	events := []relaymodel.StreamEvent{
		{Type: relaymodel.EventError, Err: streamErr},
		{Type: relaymodel.EventMessageStop},
	}
	if !s.started {
		s.started = true
		return append([]relaymodel.StreamEvent{{Type: relaymodel.EventMessageStart}}, events...)
	}
	return events
}

func (s *StreamState) handleBlockStart(ev *types.ContentBlockStartEvent) []relaymodel.StreamEvent {
	idx := indexOf(ev.ContentBlockIndex)
	if _, isOpen := s.open[idx]; isOpen || s.closed[idx] {
		return s.ensureStarted(nil)
	}

	block := relaymodel.ContentBlock{Kind: relaymodel.BlockText}
	if toolUse, ok := ev.Start.(*types.ContentBlockStartMemberToolUse); ok {
		block = relaymodel.ContentBlock{
			Kind:      relaymodel.BlockToolUse,
			ToolUseID: deref(toolUse.Value.ToolUseId),
			ToolName:  s.names.Restore(deref(toolUse.Value.Name)),
			InputJSON: json.RawMessage("{}"),
		}
	}
	s.open[idx] = block.Kind

	return s.ensureStarted([]relaymodel.StreamEvent{{
		Type:  relaymodel.EventContentBlockStart,
		Index: idx,
		Block: &block,
	}})
}

func (s *StreamState) handleBlockDelta(ev *types.ContentBlockDeltaEvent) []relaymodel.StreamEvent {
	idx := indexOf(ev.ContentBlockIndex)

	var delta relaymodel.StreamDelta
	var kind relaymodel.BlockKind
	switch d := ev.Delta.(type) {
	case *types.ContentBlockDeltaMemberText:
		kind = relaymodel.BlockText
		delta = relaymodel.StreamDelta{Kind: relaymodel.DeltaText, Text: d.Value}
	case *types.ContentBlockDeltaMemberToolUse:
		kind = relaymodel.BlockToolUse
		delta = relaymodel.StreamDelta{Kind: relaymodel.DeltaInputJSON, PartialJSON: deref(d.Value.Input)}
	case *types.ContentBlockDeltaMemberReasoningContent:
		text, ok := d.Value.(*types.ReasoningContentBlockDeltaMemberText)
		if !ok {
			// Signature and redacted-content deltas have no client shape.
			return s.ensureStarted(nil)
		}
		kind = relaymodel.BlockThinking
		delta = relaymodel.StreamDelta{Kind: relaymodel.DeltaThinking, Text: text.Value}
	default:
		return s.ensureStarted(nil)
	}

	var events []relaymodel.StreamEvent
	if _, isOpen := s.open[idx]; !isOpen {
		if s.closed[idx] {
			return s.ensureStarted(nil)
		}
		// The upstream omits contentBlockStart for plain blocks; synthesize
		// one so starts always precede deltas.
		s.open[idx] = kind
		block := relaymodel.ContentBlock{Kind: kind}
		events = append(events, relaymodel.StreamEvent{
			Type:  relaymodel.EventContentBlockStart,
			Index: idx,
			Block: &block,
		})
	}

	events = append(events, relaymodel.StreamEvent{
		Type:  relaymodel.EventContentBlockDelta,
		Index: idx,
		Delta: &delta,
	})
	return s.ensureStarted(events)
}

// finish emits the terminal frames: stops for blocks the upstream left open,
// one message_delta with the stop reason and usage, then message_stop.
func (s *StreamState) finish() []relaymodel.StreamEvent {
	if s.finished {
		return nil
	}
	s.finished = true

	var events []relaymodel.StreamEvent
	for _, idx := range sortedKeys(s.open) {
		events = append(events, relaymodel.StreamEvent{
			Type:  relaymodel.EventContentBlockStop,
			Index: idx,
		})
		delete(s.open, idx)
		s.closed[idx] = true
	}

	stopReason := s.stopReason
	if stopReason == "" {
		stopReason = relaymodel.StopEndTurn
	}
	usage := s.usage
	events = append(events,
		relaymodel.StreamEvent{
			Type:       relaymodel.EventMessageDelta,
			StopReason: stopReason,
			Usage:      &usage,
		},
		relaymodel.StreamEvent{Type: relaymodel.EventMessageStop},
	)
	return s.ensureStarted(events)
}

// ensureStarted prefixes message_start exactly once, before whatever the
// current event produced.
func (s *StreamState) ensureStarted(events []relaymodel.StreamEvent) []relaymodel.StreamEvent {
	if s.started {
		return events
	}
	s.started = true
	return append([]relaymodel.StreamEvent{{Type: relaymodel.EventMessageStart}}, events...)
}

func (s *StreamState) mergeUsage(usage *types.TokenUsage) {
	if usage == nil {
		return
	}
	s.usage.Merge(convertUsage(usage))
}

func indexOf(idx *int32) int {
	if idx == nil {
		return 0
	}
	return int(*idx)
}

func sortedKeys(m map[int]relaymodel.BlockKind) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
