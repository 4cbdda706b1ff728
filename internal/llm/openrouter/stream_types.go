package openrouter

// StreamOptions configures OpenRouter stream behavior.
type StreamOptions struct {
	// IncludeUsage requests token usage in stream payloads.
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// StreamResponse is the SSE payload shape emitted by OpenRouter.
type StreamResponse struct {
	// ID is the provider request id.
	ID string `json:"id,omitempty"`
	// Model is the model identifier for the stream.
	Model string `json:"model,omitempty"`
	// Choices carries incremental delta updates.
	Choices []StreamChoice `json:"choices,omitempty"`
	// Usage reports tokens for this payload. Some providers emit usage
	// incrementally across chunks rather than once at the end.
	Usage *Usage `json:"usage,omitempty"`
}

// StreamChoice represents a streaming choice delta.
type StreamChoice struct {
	// Index is the choice index.
	Index int `json:"index"`
	// Delta holds the incremental message update.
	Delta StreamDelta `json:"delta"`
	// FinishReason signals why generation stopped.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// StreamDelta represents incremental message content.
type StreamDelta struct {
	// Role sets the assistant role on the first delta.
	Role string `json:"role,omitempty"`
	// Content holds streamed text.
	Content string `json:"content,omitempty"`
	// ToolCalls streams tool call metadata and argument fragments.
	ToolCalls []StreamToolCallDelta `json:"tool_calls,omitempty"`
}

// StreamToolCallDelta represents incremental tool call data.
type StreamToolCallDelta struct {
	// Index identifies the tool call position in the eventual array.
	Index int `json:"index"`
	// ID is the tool call id, normally sent once in the first fragment.
	ID string `json:"id,omitempty"`
	// Type is the tool call type (typically "function").
	Type string `json:"type,omitempty"`
	// Function contains tool function deltas.
	Function StreamToolCallFunctionDelta `json:"function,omitempty"`
}

// StreamToolCallFunctionDelta contains incremental tool function fields.
type StreamToolCallFunctionDelta struct {
	// Name identifies the tool name.
	Name string `json:"name,omitempty"`
	// Arguments contains a partial JSON argument substring to append.
	Arguments string `json:"arguments,omitempty"`
}

// StreamHandler consumes parsed SSE stream payloads in arrival order.
type StreamHandler func(event StreamResponse) error

// StreamSummary captures metadata from a completed streaming response.
type StreamSummary struct {
	// ID is the stream request id.
	ID string
	// Model is the model identifier.
	Model string
	// Usage reports summed token usage if available.
	Usage Usage
	// HasUsage reports whether Usage is populated.
	HasUsage bool
}
