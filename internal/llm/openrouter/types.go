package openrouter

import "encoding/json"

// ChatRequest matches the OpenRouter chat/completions request.
type ChatRequest struct {
	// Model is the provider model identifier, e.g. "openai/gpt-4o-mini".
	Model string `json:"model"`
	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`
	// Tools advertises available tool functions.
	Tools []Tool `json:"tools,omitempty"`
	// ToolChoice directs tool usage (e.g., "auto").
	ToolChoice any `json:"tool_choice,omitempty"`
	// Stream toggles server-sent events in the response.
	Stream bool `json:"stream,omitempty"`
	// StreamOptions configures streaming extras such as usage reporting.
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
	// Temperature controls randomness, if supported by the model.
	Temperature *float64 `json:"temperature,omitempty"`
	// MaxTokens limits the model output, if supported by the model.
	MaxTokens *int `json:"max_tokens,omitempty"`
}

// Message represents a chat message on the wire.
type Message struct {
	// Role is one of system, user, assistant, or tool.
	Role string `json:"role"`
	// Content carries message text, a content-part array, or null when the
	// assistant message carries tool calls instead.
	Content any `json:"content"`
	// ToolCalls lists tool invocations requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID associates a tool response to a prior call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Name optionally identifies the tool that produced a tool message.
	Name string `json:"name,omitempty"`
}

// ContentPart is one element of a multi-part user message.
type ContentPart struct {
	// Type is "text" or "image_url".
	Type string `json:"type"`
	// Text holds the text payload for text parts.
	Text string `json:"text,omitempty"`
	// ImageURL references an image for image parts.
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URI.
type ImageURL struct {
	// URL is the image location.
	URL string `json:"url"`
}

// Tool describes a callable function for the model.
type Tool struct {
	// Type must be "function".
	Type string `json:"type"`
	// Function describes the callable function contract.
	Function ToolFunction `json:"function"`
}

// ToolFunction defines a function for tool calling.
type ToolFunction struct {
	// Name is the unique identifier for the function.
	Name string `json:"name"`
	// Description provides a natural language summary.
	Description string `json:"description,omitempty"`
	// Parameters is a JSON Schema object describing inputs.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	// ID is the unique tool call id within the assistant message.
	ID string `json:"id"`
	// Type is the tool type, currently always "function".
	Type string `json:"type"`
	// Function includes the name and serialized arguments.
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction is the function call payload.
type ToolCallFunction struct {
	// Name identifies which tool to invoke.
	Name string `json:"name"`
	// Arguments contains a JSON string to be parsed by the tool. While a
	// stream is in flight the string may hold an incomplete JSON prefix.
	Arguments string `json:"arguments"`
}

// ChatResponse matches the non-streaming chat/completions response.
type ChatResponse struct {
	// ID is the request id from the provider.
	ID string `json:"id"`
	// Choices contains the assistant messages.
	Choices []ChatChoice `json:"choices"`
	// Usage reports token counts.
	Usage Usage `json:"usage"`
}

// ChatChoice represents a single completion choice.
type ChatChoice struct {
	// Index is the choice index.
	Index int `json:"index"`
	// Message is the assistant response.
	Message Message `json:"message"`
	// FinishReason indicates why generation stopped.
	FinishReason string `json:"finish_reason"`
}

// Usage represents token usage info.
type Usage struct {
	// PromptTokens counts input tokens.
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens counts output tokens.
	CompletionTokens int `json:"completion_tokens"`
	// TotalTokens is the sum of prompt and completion tokens.
	TotalTokens int `json:"total_tokens"`
}

// TextContent extracts plain text from a wire message content value.
// Multi-part content concatenates its text parts.
func TextContent(content any) string {
	switch value := content.(type) {
	case string:
		return value
	case []any:
		var out string
		for _, part := range value {
			object, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := object["text"].(string); ok {
				out += text
			}
		}
		return out
	case json.RawMessage:
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			return text
		}
		return ""
	default:
		return ""
	}
}
