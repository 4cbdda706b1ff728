package openrouter

import (
	"strings"
)

// StreamAccumulator assembles a full assistant message from streaming
// deltas. It lives for exactly one streamed HTTP round and is discarded
// once the round's messages are committed.
type StreamAccumulator struct {
	// contentBuilder accumulates streamed text content.
	contentBuilder strings.Builder
	// toolStates stores tool call data keyed by wire index.
	toolStates map[int]*toolCallState
	// toolOrder preserves the order tool call indices first appeared.
	toolOrder []int
	// finishReason stores the latest finish reason.
	finishReason string
	// usage sums token counts across payloads. Some transports emit usage
	// incrementally, so counters add rather than overwrite.
	usage Usage
	// hasUsage reports whether any usage payload arrived.
	hasUsage bool
	// model records the model identifier.
	model string
	// id captures the request id.
	id string
	// onContent, when set, receives the cumulative text after every
	// content delta. This backs live "typing" rendering.
	onContent func(cumulative string)
}

// toolCallState accumulates a single tool call delta sequence.
type toolCallState struct {
	// id is the tool call id.
	id string
	// callType is the tool call type.
	callType string
	// name is the tool function name.
	name string
	// argumentsBuilder concatenates argument substrings in arrival order.
	argumentsBuilder strings.Builder
}

// NewStreamAccumulator creates an accumulator for one streaming response.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{
		toolStates: map[int]*toolCallState{},
	}
}

// OnContent registers a callback invoked with the cumulative assistant
// text after each content delta.
func (acc *StreamAccumulator) OnContent(callback func(cumulative string)) {
	acc.onContent = callback
}

// Apply ingests a streaming payload and updates the accumulator state.
func (acc *StreamAccumulator) Apply(event StreamResponse) error {
	if acc.id == "" && event.ID != "" {
		acc.id = event.ID
	}
	if acc.model == "" && event.Model != "" {
		acc.model = event.Model
	}
	if event.Usage != nil {
		acc.usage.PromptTokens += event.Usage.PromptTokens
		acc.usage.CompletionTokens += event.Usage.CompletionTokens
		acc.usage.TotalTokens += event.Usage.TotalTokens
		acc.hasUsage = true
	}
	for _, choice := range event.Choices {
		if choice.Index != 0 {
			continue
		}
		delta := choice.Delta
		if delta.Content != "" {
			acc.contentBuilder.WriteString(delta.Content)
			if acc.onContent != nil {
				acc.onContent(acc.contentBuilder.String())
			}
		}
		for _, toolDelta := range delta.ToolCalls {
			acc.applyToolDelta(toolDelta)
		}
		if choice.FinishReason != nil {
			acc.finishReason = *choice.FinishReason
		}
	}
	return nil
}

// applyToolDelta merges one tool call fragment. An unseen index allocates
// a new record in first-seen order; id and name overwrite while argument
// substrings concatenate, never reorder.
func (acc *StreamAccumulator) applyToolDelta(toolDelta StreamToolCallDelta) {
	state := acc.toolStates[toolDelta.Index]
	if state == nil {
		state = &toolCallState{}
		acc.toolStates[toolDelta.Index] = state
		acc.toolOrder = append(acc.toolOrder, toolDelta.Index)
	}
	if toolDelta.ID != "" {
		state.id = toolDelta.ID
	}
	if toolDelta.Type != "" {
		state.callType = toolDelta.Type
	}
	if toolDelta.Function.Name != "" {
		state.name = toolDelta.Function.Name
	}
	if toolDelta.Function.Arguments != "" {
		state.argumentsBuilder.WriteString(toolDelta.Function.Arguments)
	}
}

// Message returns the aggregated assistant message. When tool calls are
// present the content is null, matching the wire contract.
func (acc *StreamAccumulator) Message() Message {
	message := Message{
		Role:      "assistant",
		ToolCalls: acc.ToolCalls(),
	}
	if len(message.ToolCalls) == 0 {
		message.Content = acc.contentBuilder.String()
	}
	return message
}

// Content returns the assembled assistant text so far.
func (acc *StreamAccumulator) Content() string {
	return acc.contentBuilder.String()
}

// ToolCalls returns completed tool call records in first-seen order.
func (acc *StreamAccumulator) ToolCalls() []ToolCall {
	if len(acc.toolOrder) == 0 {
		return nil
	}
	calls := make([]ToolCall, 0, len(acc.toolOrder))
	for _, index := range acc.toolOrder {
		state := acc.toolStates[index]
		if state == nil {
			continue
		}
		callType := state.callType
		if callType == "" {
			callType = "function"
		}
		calls = append(calls, ToolCall{
			ID:   state.id,
			Type: callType,
			Function: ToolCallFunction{
				Name:      state.name,
				Arguments: state.argumentsBuilder.String(),
			},
		})
	}
	return calls
}

// FinishReason returns the most recent finish reason.
func (acc *StreamAccumulator) FinishReason() string {
	return acc.finishReason
}

// Usage returns the summed usage and whether any was provided.
func (acc *StreamAccumulator) Usage() (Usage, bool) {
	return acc.usage, acc.hasUsage
}

// Model returns the model identifier, if present.
func (acc *StreamAccumulator) Model() string {
	return acc.model
}

// ID returns the stream request id, if present.
func (acc *StreamAccumulator) ID() string {
	return acc.id
}
