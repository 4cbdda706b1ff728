package assistant

import (
	"context"
	"encoding/json"
)

// NoReplyToolName identifies the reply-suppression escape hatch. When the
// model calls it, the orchestrator skips the follow-up completion round.
const NoReplyToolName = "no_reply_needed"

// NoReplyTool lets the model signal that a tool batch needs no further
// reply, typically after fire-and-forget UI interactions.
type NoReplyTool struct{}

// Name returns the reply-suppression tool identifier.
func (t *NoReplyTool) Name() string {
	return NoReplyToolName
}

// Description summarizes when to use the tool.
func (t *NoReplyTool) Description() string {
	return "Signal that the previous tool results need no further reply."
}

// Schema declares an empty argument object.
func (t *NoReplyTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// DetailedDescription documents the suppression contract.
func (t *NoReplyTool) DetailedDescription(ctx context.Context) string {
	return "Call this after tools whose results are shown directly to the " +
		"user and need no narration from you. No arguments."
}

// RequiresPermission reports that suppression never prompts.
func (t *NoReplyTool) RequiresPermission() bool {
	return false
}

// Cancelable reports that there is nothing to cancel.
func (t *NoReplyTool) Cancelable() bool {
	return false
}

// Run acknowledges the suppression request.
func (t *NoReplyTool) Run(ctx context.Context, args json.RawMessage, execCtx ExecContext) (ToolResult, error) {
	return ToolResult{Content: "ok"}, nil
}
