package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docpal/docpal/internal/chat"
	"github.com/docpal/docpal/internal/llm/openrouter"
)

// Registry is the named tool collection for one assistant, assembled once
// per conversation.
type Registry struct {
	// tools stores implementations keyed by name.
	tools map[string]Tool
	// order preserves registration order for deterministic payloads.
	order []string
}

// NewRegistry constructs a registry, de-duplicating by tool name while
// preserving input order.
func NewRegistry(tools []Tool) *Registry {
	toolMap := make(map[string]Tool, len(tools))
	order := make([]string, 0, len(tools))
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		name := tool.Name()
		if name == "" {
			continue
		}
		if _, exists := toolMap[name]; exists {
			continue
		}
		toolMap[name] = tool
		order = append(order, name)
	}
	return &Registry{tools: toolMap, order: order}
}

// Lookup returns the named tool, if registered.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.order))
	names = append(names, r.order...)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Specs returns wire tool definitions in registration order.
func (r *Registry) Specs() []openrouter.Tool {
	if r == nil || len(r.order) == 0 {
		return nil
	}
	specs := make([]openrouter.Tool, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		specs = append(specs, openrouter.Tool{
			Type: "function",
			Function: openrouter.ToolFunction{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Schema(),
			},
		})
	}
	return specs
}

// RequiresPermission reports whether the named tool needs user approval.
// Unknown tools never prompt; their execution fails instead.
func (r *Registry) RequiresPermission(name string) bool {
	tool, ok := r.Lookup(name)
	return ok && tool.RequiresPermission()
}

// Execute dispatches one tool call and always produces a tool role
// message answering it, so the history invariant holds even on failure.
// Unknown tool names and malformed argument JSON are reported as error
// content fed back to the model, not as transport errors.
func (r *Registry) Execute(ctx context.Context, call openrouter.ToolCall, execCtx ExecContext) (chat.Message, ToolResult) {
	name := call.Function.Name
	tool, ok := r.Lookup(name)
	if !ok {
		result := ToolResult{IsError: true, Content: fmt.Sprintf("Error: unknown tool %q", name)}
		return chat.ToolMessage(call.ID, name, result.Content), result
	}

	// Arguments must be complete JSON by the time execution is attempted.
	var probe any
	if err := json.Unmarshal([]byte(call.Function.Arguments), &probe); err != nil {
		result := ToolResult{IsError: true, Content: fmt.Sprintf("Error: invalid arguments for %s: %v", name, err)}
		return chat.ToolMessage(call.ID, name, result.Content), result
	}

	result, err := tool.Run(ctx, json.RawMessage(call.Function.Arguments), execCtx)
	if err != nil {
		result = ToolResult{IsError: true, Content: fmt.Sprintf("Error: %v", err)}
	}
	return chat.ToolMessage(call.ID, name, result.Content), result
}

// DetailedDescriptions concatenates the rich tool descriptions for the
// system prompt. Individual failures degrade inline inside each tool's
// own DetailedDescription.
func (r *Registry) DetailedDescriptions(ctx context.Context) string {
	if r == nil || len(r.order) == 0 {
		return ""
	}
	sections := make([]string, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		sections = append(sections, fmt.Sprintf("## %s\n%s", name, tool.DetailedDescription(ctx)))
	}
	return strings.Join(sections, "\n\n")
}
