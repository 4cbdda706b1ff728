package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CodeTool runs a short code snippet in the host-provided remote
// execution session. It is permission-gated and cancelable: a cancel
// request settles the call with a "canceled" result promptly instead of
// waiting out the remote session.
type CodeTool struct{}

// Name returns the tool identifier used in tool calls.
func (t *CodeTool) Name() string {
	return "run_code"
}

// Description summarizes the execution behavior for the model.
func (t *CodeTool) Description() string {
	return "Execute a short code snippet in a sandboxed session and return its output."
}

// Schema describes the supported payload fields.
func (t *CodeTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"language": map[string]any{
				"type":        "string",
				"description": "Language of the snippet, e.g. \"python\" or \"go\".",
			},
			"code": map[string]any{
				"type":        "string",
				"description": "Source code to execute.",
			},
		},
		"required": []string{"language", "code"},
	}
}

// DetailedDescription documents the execution contract without network I/O.
func (t *CodeTool) DetailedDescription(ctx context.Context) string {
	return "Runs code in an isolated remote session. Use it to verify examples " +
		"from the documentation before presenting them. Long-running snippets " +
		"may be canceled by the user; report canceled runs honestly."
}

// RequiresPermission reports that every run needs user approval.
func (t *CodeTool) RequiresPermission() bool {
	return true
}

// Cancelable reports that runs observe the cancellation slot.
func (t *CodeTool) Cancelable() bool {
	return true
}

// Run executes the snippet, racing the remote session against the
// cancellation slot and the context.
func (t *CodeTool) Run(ctx context.Context, args json.RawMessage, execCtx ExecContext) (ToolResult, error) {
	var payload struct {
		Language string `json:"language"`
		Code     string `json:"code"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return ToolResult{IsError: true, Content: fmt.Sprintf("invalid input: %v", err)}, nil
	}
	if strings.TrimSpace(payload.Code) == "" {
		return ToolResult{IsError: true, Content: "code is required"}, nil
	}
	if execCtx.Code == nil {
		return ToolResult{IsError: true, Content: "code execution is not available in this session"}, nil
	}

	// Run the session call in the background so a cancellation request
	// settles this invocation without waiting for the remote side.
	execCtx.Logger.Debug().Str("language", payload.Language).Msg("starting code execution")
	type outcome struct {
		output string
		err    error
	}
	results := make(chan outcome, 1)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		output, err := execCtx.Code.Exec(runCtx, payload.Language, payload.Code)
		results <- outcome{output: output, err: err}
	}()

	select {
	case <-execCtx.Cancel.Done():
		cancel()
		return ToolResult{Content: "Execution canceled by the user."}, nil
	case <-ctx.Done():
		return ToolResult{IsError: true, Content: "execution aborted"}, ctx.Err()
	case result := <-results:
		if result.err != nil {
			return ToolResult{IsError: true, Content: fmt.Sprintf("execution failed: %v", result.err)}, nil
		}
		return ToolResult{Content: result.output}, nil
	}
}
