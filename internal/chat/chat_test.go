package chat

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/docpal/docpal/internal/llm/openrouter"
	"github.com/docpal/docpal/internal/pricing"
	"github.com/docpal/docpal/internal/testutil"
)

func TestNewChat(t *testing.T) {
	conversation := New("support-bot", "openai/gpt-4o-mini", "How do I reset my password?")

	testutil.RequireTrue(t, conversation.ID != "", "chat gets an id")
	testutil.RequireEqual(t, conversation.AppID, "support-bot", "app id")
	testutil.RequireEqual(t, len(conversation.Messages), 1, "opening message present")
	testutil.RequireEqual(t, conversation.Messages[0].Role, RoleUser, "opening role")
	testutil.RequireNoError(t, conversation.Validate(), "fresh chat is valid")
}

func TestValidateAcceptsToolRoundTrip(t *testing.T) {
	conversation := New("support-bot", "openai/gpt-4o-mini", "What does the setup doc say?")
	conversation.Append(
		AssistantToolCalls([]openrouter.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: openrouter.ToolCallFunction{
				Name:      "fetch_documentation",
				Arguments: `{"url":"https://docs.example.com/setup"}`,
			},
		}}),
		ToolMessage("call_1", "fetch_documentation", "# Setup\nRun the installer."),
		TextMessage(RoleAssistant, "The setup doc says to run the installer."),
	)

	testutil.RequireNoError(t, conversation.Validate(), "tool round trip is valid")
}

func TestValidateRejectsOrphanToolMessage(t *testing.T) {
	conversation := New("support-bot", "openai/gpt-4o-mini", "hi")
	conversation.Append(ToolMessage("call_missing", "fetch_documentation", "result"))

	err := conversation.Validate()
	testutil.RequireError(t, err, "orphan tool message")
	testutil.RequireStringContains(t, err.Error(), "call_missing", "error names the dangling id")
}

func TestValidateRejectsToolCallsWithText(t *testing.T) {
	conversation := New("support-bot", "openai/gpt-4o-mini", "hi")
	bad := AssistantToolCalls([]openrouter.ToolCall{{ID: "call_1", Type: "function"}})
	text := "should not be here"
	bad.Text = &text
	conversation.Append(bad)

	testutil.RequireError(t, conversation.Validate(), "assistant tool-call message with text content")
}

func TestValidateRejectsEmptyUserMessage(t *testing.T) {
	conversation := New("support-bot", "openai/gpt-4o-mini", "hi")
	conversation.Append(Message{Role: RoleUser})

	testutil.RequireError(t, conversation.Validate(), "user message with no content")
}

func TestWireMessageShapes(t *testing.T) {
	toolCalls := []openrouter.ToolCall{{
		ID:   "call_1",
		Type: "function",
		Function: openrouter.ToolCallFunction{
			Name:      "run_code",
			Arguments: `{"code":"print(2+2)"}`,
		},
	}}

	assistant := AssistantToolCalls(toolCalls).Wire()
	testutil.RequireEqual(t, assistant.Role, "assistant", "assistant role")
	testutil.RequireTrue(t, assistant.Content == nil, "tool-call message content is null")
	testutil.RequireEqual(t, len(assistant.ToolCalls), 1, "tool calls carried over")

	// Null content must serialize as an explicit JSON null, not be omitted.
	raw, err := json.Marshal(assistant)
	testutil.RequireNoError(t, err, "marshal assistant message")
	testutil.RequireStringContains(t, string(raw), `"content":null`, "explicit null content")

	tool := ToolMessage("call_1", "run_code", "4").Wire()
	testutil.RequireEqual(t, tool.Role, "tool", "tool role")
	testutil.RequireEqual(t, tool.ToolCallID, "call_1", "tool call id")
	testutil.RequireEqual(t, tool.Name, "run_code", "tool name")
	testutil.RequireEqual(t, openrouter.TextContent(tool.Content), "4", "tool content")

	multipart := Message{
		Role: RoleUser,
		Parts: []ContentPart{
			{Type: "text", Text: "What is in this screenshot?"},
			{Type: "image_url", ImageURL: "data:image/png;base64,AAAA"},
		},
	}.Wire()
	parts, ok := multipart.Content.([]openrouter.ContentPart)
	testutil.RequireTrue(t, ok, "multi-part content type")
	testutil.RequireEqual(t, len(parts), 2, "both parts carried")
	testutil.RequireEqual(t, parts[1].ImageURL.URL, "data:image/png;base64,AAAA", "image url")
}

func TestValidateGeneratedConversations(t *testing.T) {
	// Exercise the invariant over many generated histories: random
	// interleavings of plain turns and tool round trips built through the
	// constructors must always validate.
	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 100; run++ {
		conversation := New("support-bot", "openai/gpt-4o-mini", "opening question")
		turns := 1 + rng.Intn(6)
		callSeq := 0
		for turn := 0; turn < turns; turn++ {
			if rng.Intn(2) == 0 {
				conversation.Append(TextMessage(RoleAssistant, "plain answer"))
			} else {
				batchSize := 1 + rng.Intn(3)
				calls := make([]openrouter.ToolCall, 0, batchSize)
				for i := 0; i < batchSize; i++ {
					callSeq++
					calls = append(calls, openrouter.ToolCall{
						ID:       fmt.Sprintf("call_%d", callSeq),
						Type:     "function",
						Function: openrouter.ToolCallFunction{Name: "echo", Arguments: `{}`},
					})
				}
				conversation.Append(AssistantToolCalls(calls))
				for _, call := range calls {
					conversation.Append(ToolMessage(call.ID, "echo", "result"))
				}
				conversation.Append(TextMessage(RoleAssistant, "summary"))
			}
			conversation.Append(TextMessage(RoleUser, "follow-up"))
		}
		testutil.RequireNoError(t, conversation.Validate(), "generated conversation")
	}
}

func TestAddUsageAccumulates(t *testing.T) {
	conversation := New("support-bot", "openai/gpt-4o-mini", "hi")
	conversation.AddUsage(pricing.Usage{PromptTokens: 100, CompletionTokens: 20, EstimatedCost: 0.25})
	conversation.AddUsage(pricing.Usage{PromptTokens: 50, CompletionTokens: 10, EstimatedCost: 0.25})

	testutil.RequireEqual(t, conversation.Usage.PromptTokens, 150, "prompt tokens")
	testutil.RequireEqual(t, conversation.Usage.CompletionTokens, 30, "completion tokens")
	testutil.RequireEqual(t, conversation.Usage.EstimatedCost, 0.5, "cost")
}
