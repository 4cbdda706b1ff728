// Package chat defines the persisted conversation model and its
// structural invariants.
package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docpal/docpal/internal/llm/openrouter"
	"github.com/docpal/docpal/internal/pricing"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one element of a multi-part user message.
type ContentPart struct {
	// Type is "text" or "image_url".
	Type string `json:"type"`
	// Text holds the text payload for text parts.
	Text string `json:"text,omitempty"`
	// ImageURL references an image for image parts.
	ImageURL string `json:"image_url,omitempty"`
}

// Message is one unit of conversation history.
//
// Content is an explicit union: exactly one of Text and Parts is set for
// user messages; assistant messages carrying ToolCalls have neither.
type Message struct {
	// Role tags the message variant.
	Role Role `json:"role"`
	// Text holds plain text content. Nil means null content, which is
	// required exactly when an assistant message carries ToolCalls.
	Text *string `json:"text"`
	// Parts holds ordered content parts for multi-part user messages.
	Parts []ContentPart `json:"parts,omitempty"`
	// ToolCalls lists tool invocations requested by the assistant.
	ToolCalls []openrouter.ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID references the assistant tool call a tool message answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolName optionally names the tool that produced a tool message.
	ToolName string `json:"tool_name,omitempty"`
	// Usage carries per-round usage on the final assistant message of a
	// round, when known.
	Usage *pricing.Usage `json:"usage,omitempty"`
	// Feedback stores optional user feedback ("up", "down", or empty).
	Feedback string `json:"feedback,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Text: &text}
}

// ToolMessage builds a tool result message answering callID.
func ToolMessage(callID string, toolName string, content string) Message {
	return Message{
		Role:       RoleTool,
		Text:       &content,
		ToolCallID: callID,
		ToolName:   toolName,
	}
}

// AssistantToolCalls builds an assistant message carrying a tool call
// batch. Content is null by contract.
func AssistantToolCalls(calls []openrouter.ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: calls}
}

// Chat is an ordered conversation plus accumulated usage totals.
type Chat struct {
	// ID uniquely identifies the chat.
	ID string `json:"id"`
	// AppID identifies which assistant configuration owns the chat.
	AppID string `json:"app_id"`
	// Model is the selected completion model.
	Model string `json:"model"`
	// Messages is the ordered history.
	Messages []Message `json:"messages"`
	// Usage accumulates tokens and cost across completed rounds.
	Usage pricing.Usage `json:"usage"`
	// Disabled latches when a content-policy marker tripped; a disabled
	// chat accepts no further input and is not persisted.
	Disabled bool `json:"disabled,omitempty"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the last mutation timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a chat with a single opening user message.
func New(appID string, model string, userText string) *Chat {
	now := time.Now().UTC()
	return &Chat{
		ID:        uuid.NewString(),
		AppID:     appID,
		Model:     model,
		Messages:  []Message{TextMessage(RoleUser, userText)},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds messages to the history and bumps the update timestamp.
func (c *Chat) Append(messages ...Message) {
	c.Messages = append(c.Messages, messages...)
	c.UpdatedAt = time.Now().UTC()
}

// AddUsage accumulates round usage into the chat totals.
func (c *Chat) AddUsage(usage pricing.Usage) {
	c.Usage.Add(usage)
	c.UpdatedAt = time.Now().UTC()
}

// Validate checks the structural invariants of the history:
// every tool message answers a tool call from an earlier assistant
// message, and assistant messages with tool calls have null content.
func (c *Chat) Validate() error {
	seenCalls := map[string]bool{}
	for i, message := range c.Messages {
		switch message.Role {
		case RoleAssistant:
			if len(message.ToolCalls) > 0 && message.Text != nil {
				return fmt.Errorf("message %d: assistant message with tool calls must have null content", i)
			}
			for _, call := range message.ToolCalls {
				seenCalls[call.ID] = true
			}
		case RoleTool:
			if message.ToolCallID == "" {
				return fmt.Errorf("message %d: tool message missing tool_call_id", i)
			}
			if !seenCalls[message.ToolCallID] {
				return fmt.Errorf("message %d: tool_call_id %q does not reference a prior assistant tool call", i, message.ToolCallID)
			}
		case RoleUser, RoleSystem:
			if message.Text == nil && len(message.Parts) == 0 {
				return fmt.Errorf("message %d: %s message has no content", i, message.Role)
			}
		default:
			return fmt.Errorf("message %d: unknown role %q", i, message.Role)
		}
	}
	return nil
}

// WireMessages converts the history into wire messages for a completion
// request.
func (c *Chat) WireMessages() []openrouter.Message {
	wire := make([]openrouter.Message, 0, len(c.Messages))
	for _, message := range c.Messages {
		wire = append(wire, message.Wire())
	}
	return wire
}

// Wire converts one message to its wire representation.
func (m Message) Wire() openrouter.Message {
	out := openrouter.Message{
		Role:       string(m.Role),
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Name:       m.ToolName,
	}
	switch {
	case len(m.Parts) > 0:
		parts := make([]openrouter.ContentPart, 0, len(m.Parts))
		for _, part := range m.Parts {
			wirePart := openrouter.ContentPart{Type: part.Type, Text: part.Text}
			if part.ImageURL != "" {
				wirePart.ImageURL = &openrouter.ImageURL{URL: part.ImageURL}
			}
			parts = append(parts, wirePart)
		}
		out.Content = parts
	case m.Text != nil:
		out.Content = *m.Text
	default:
		// Null content, used by assistant tool-call messages.
		out.Content = nil
	}
	return out
}
