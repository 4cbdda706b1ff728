package agent

import (
	"context"
	"fmt"

	"github.com/docpal/docpal/internal/assistant"
	"github.com/docpal/docpal/internal/chat"
	"github.com/docpal/docpal/internal/llm/openrouter"
	"github.com/docpal/docpal/internal/pricing"
)

// Run executes one user turn: it issues a streaming completion round,
// executes any requested tool calls strictly in emission order, and
// recurses with the grown history until the model answers in plain text,
// the round cap trips, or a permission denial ends the turn.
func (r *Runner) Run(ctx context.Context, profile *assistant.Assistant, conversation *chat.Chat, callbacks *Callbacks) (*RunResult, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if conversation.Disabled {
		return nil, ErrChatDisabled
	}
	if callbacks == nil {
		callbacks = &Callbacks{}
	}
	maxRounds := r.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	model := conversation.Model
	if model == "" {
		model = profile.Model
	}

	// The system prompt (including detailed tool descriptions and guard
	// phrases) is identical across rounds, so build it once per turn.
	systemPrompt := profile.BuildSystemPrompt(ctx)
	system := openrouter.Message{Role: "system", Content: systemPrompt}

	result := &RunResult{}

	// An explicit loop with threaded state bounds stack depth; the wire
	// protocol would otherwise allow unbounded recursion.
	for round := 0; round < maxRounds; round++ {
		request := &openrouter.ChatRequest{
			Model:    model,
			Messages: r.buildMessages(system, conversation, result.NewMessages),
		}
		if profile.Tools.Len() > 0 {
			request.Tools = profile.Tools.Specs()
			request.ToolChoice = "auto"
		}

		r.Logger.Debug().Int("round", round).Str("model", model).Msg("starting completion round")

		accumulator := openrouter.NewStreamAccumulator()
		if callbacks.OnPartialContent != nil {
			accumulator.OnContent(callbacks.OnPartialContent)
		}
		_, err := r.Client.ChatCompletionsStream(ctx, request, accumulator.Apply)
		if err != nil {
			// Transport and decode failures fail the whole turn; nothing
			// from this round is recorded.
			return nil, fmt.Errorf("completion round %d: %w", round, err)
		}
		result.Rounds++

		usage, hasUsage := accumulator.Usage()
		roundUsage := pricing.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			EstimatedCost:    r.Prices.EstimateCost(model, usage.PromptTokens, usage.CompletionTokens),
		}
		if hasUsage {
			result.Usage.Add(roundUsage)
			if callbacks.OnRoundUsage != nil {
				callbacks.OnRoundUsage(roundUsage)
			}
		}

		toolCalls := accumulator.ToolCalls()
		if len(toolCalls) == 0 {
			// Plain answer: terminal for this turn.
			final := chat.TextMessage(chat.RoleAssistant, accumulator.Content())
			if hasUsage {
				final.Usage = &roundUsage
			}
			result.NewMessages = append(result.NewMessages, final)
			result.Final = final
			if callbacks.OnAssistantMessage != nil {
				callbacks.OnAssistantMessage(final)
			}
			result.PolicyMarker = ScanPolicyMarkers(accumulator.Content())
			return result, nil
		}

		// Surface the batch before any tool executes so the host shows
		// "calling tool X" immediately.
		batch := chat.AssistantToolCalls(toolCalls)
		if hasUsage {
			batch.Usage = &roundUsage
		}
		result.NewMessages = append(result.NewMessages, batch)
		result.Final = batch
		if callbacks.OnAssistantMessage != nil {
			callbacks.OnAssistantMessage(batch)
		}

		suppressReply, denied, err := r.executeBatch(ctx, profile, toolCalls, result, callbacks)
		if err != nil {
			return nil, err
		}
		if denied {
			result.Denied = true
			return result, nil
		}
		if suppressReply {
			return result, nil
		}
	}

	return result, ErrMaxRounds
}

// buildMessages assembles the outbound history: system message, persisted
// chat history, then the messages produced earlier in this turn.
func (r *Runner) buildMessages(system openrouter.Message, conversation *chat.Chat, pending []chat.Message) []openrouter.Message {
	messages := make([]openrouter.Message, 0, len(conversation.Messages)+len(pending)+1)
	messages = append(messages, system)
	messages = append(messages, conversation.WireMessages()...)
	for _, message := range pending {
		messages = append(messages, message.Wire())
	}
	return messages
}

// executeBatch runs one tool call batch strictly in emission order.
// Sequential execution is an ordering guarantee, not an optimization
// shortfall: tools may share side-effecting state, and the transcript
// must match the model's emission order. A denial appends the fixed
// sentinel tool message and aborts the remaining calls.
func (r *Runner) executeBatch(
	ctx context.Context,
	profile *assistant.Assistant,
	toolCalls []openrouter.ToolCall,
	result *RunResult,
	callbacks *Callbacks,
) (suppressReply bool, denied bool, err error) {
	for _, call := range toolCalls {
		name := call.Function.Name

		if profile.Tools.RequiresPermission(name) && r.AskPermission != nil {
			allowed, err := r.AskPermission(ctx, call)
			if err != nil {
				return false, false, fmt.Errorf("ask permission for %s: %w", name, err)
			}
			if !allowed {
				r.Logger.Info().Str("tool", name).Msg("tool call denied by user")
				message := chat.ToolMessage(call.ID, name, DeniedToolContent)
				result.NewMessages = append(result.NewMessages, message)
				result.Final = message
				if callbacks.OnToolResult != nil {
					callbacks.OnToolResult(call, message, assistant.ToolResult{Content: DeniedToolContent})
				}
				return false, true, nil
			}
		}

		// Each invocation gets a fresh cancellation slot; canceling one
		// tool does not cancel the stream or the enclosing turn.
		execCtx := r.Exec
		execCtx.Cancel = assistant.NewCancelRef()
		if callbacks.OnToolStart != nil {
			callbacks.OnToolStart(call, execCtx.Cancel)
		}

		message, toolResult := profile.Tools.Execute(ctx, call, execCtx)
		result.NewMessages = append(result.NewMessages, message)
		result.Final = message
		if callbacks.OnToolResult != nil {
			callbacks.OnToolResult(call, message, toolResult)
		}
		r.Logger.Debug().Str("tool", name).Bool("error", toolResult.IsError).Msg("tool call finished")

		if name == assistant.NoReplyToolName {
			suppressReply = true
		}
	}
	return suppressReply, false, nil
}
