// Package agent drives the multi-round conversation loop: it streams
// completion rounds, executes approved tool calls sequentially, and
// recurses until the model produces a final answer.
package agent

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/docpal/docpal/internal/assistant"
	"github.com/docpal/docpal/internal/chat"
	"github.com/docpal/docpal/internal/llm/openrouter"
	"github.com/docpal/docpal/internal/pricing"
)

// DefaultMaxRounds caps recursion. The protocol itself is unbounded (a
// model could call tools indefinitely), so the cap is a defensive limit.
const DefaultMaxRounds = 25

// DeniedToolContent is the fixed tool message content recorded when the
// user declines a tool invocation.
const DeniedToolContent = "Tool execution was not approved by the user."

var (
	// ErrMaxRounds is returned when the round cap is exhausted.
	ErrMaxRounds = errors.New("maximum completion rounds exceeded")
	// ErrChatDisabled is returned for chats latched by a policy marker.
	ErrChatDisabled = errors.New("chat is disabled")
)

// PermissionFunc is the interactive permission gate. The tool loop blocks
// on it; returning false denies the call and ends the round.
type PermissionFunc func(ctx context.Context, call openrouter.ToolCall) (bool, error)

// Callbacks surface orchestration progress to the host UI. All fields are
// optional.
type Callbacks struct {
	// OnPartialContent receives the cumulative assistant text after each
	// content delta, for live rendering.
	OnPartialContent func(cumulative string)
	// OnAssistantMessage fires when an assistant message is complete. For
	// tool batches it fires before any tool executes, so the host can show
	// the pending calls immediately.
	OnAssistantMessage func(message chat.Message)
	// OnToolStart fires before a tool executes, handing the host the
	// cancellation slot for that invocation.
	OnToolStart func(call openrouter.ToolCall, cancel *assistant.CancelRef)
	// OnToolResult fires after a tool message is recorded.
	OnToolResult func(call openrouter.ToolCall, message chat.Message, result assistant.ToolResult)
	// OnRoundUsage fires with each round's usage and cost.
	OnRoundUsage func(usage pricing.Usage)
}

// RunResult is the outcome of one user turn, possibly spanning several
// completion rounds. Nothing is committed to the chat until the caller
// applies the result, so a failed round leaves the chat untouched.
type RunResult struct {
	// NewMessages are the messages produced by this turn, in order.
	NewMessages []chat.Message
	// Final is the last assistant message of the turn.
	Final chat.Message
	// Usage sums tokens and cost across all rounds of the turn.
	Usage pricing.Usage
	// Rounds counts completed completion rounds.
	Rounds int
	// Denied reports that a permission denial ended the turn early.
	Denied bool
	// PolicyMarker holds the tripped content-policy marker, if any. A
	// tripped turn is surfaced to the user but must not be persisted.
	PolicyMarker string
}

// Commit appends the turn's messages and usage to the chat. Chats that
// tripped a policy marker are latched disabled; the caller must skip
// persistence for them.
func (res *RunResult) Commit(conversation *chat.Chat) {
	conversation.Append(res.NewMessages...)
	conversation.AddUsage(res.Usage)
	if res.PolicyMarker != "" {
		conversation.Disabled = true
	}
}

// Runner orchestrates completion rounds for one assistant. Calls are
// serialized per chat by the host; the runner itself holds no per-chat
// state.
type Runner struct {
	// Client executes OpenRouter requests.
	Client *openrouter.Client
	// Prices maps models to costs for usage accounting.
	Prices pricing.Table
	// AskPermission gates permission-requiring tool calls. When nil, such
	// calls proceed without prompting.
	AskPermission PermissionFunc
	// MaxRounds caps recursion; zero means DefaultMaxRounds.
	MaxRounds int
	// Exec is the capability bag handed to tool executions.
	Exec assistant.ExecContext
	// Logger reports round-level progress.
	Logger zerolog.Logger
}
