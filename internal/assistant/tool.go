// Package assistant defines assistant profiles and the tools they expose
// to the completion model.
package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	// Content holds the tool output payload, serialized as a string.
	Content string
	// IsError reports whether the tool failed.
	IsError bool
}

// Tool defines a callable capability advertised to the model.
type Tool interface {
	// Name is the function name the model calls.
	Name() string
	// Description is the short schema-level summary.
	Description() string
	// Schema is a JSON Schema object describing the arguments.
	Schema() map[string]any
	// DetailedDescription builds the rich natural-language description
	// used in the system prompt. It may perform network I/O; failures
	// must degrade to an inline error string, never an error.
	DetailedDescription(ctx context.Context) string
	// RequiresPermission reports whether the user must approve each call.
	RequiresPermission() bool
	// Cancelable reports whether a running call observes the exec
	// context's cancellation slot.
	Cancelable() bool
	// Run executes the tool with parsed-but-unvalidated JSON arguments.
	Run(ctx context.Context, args json.RawMessage, execCtx ExecContext) (ToolResult, error)
}

// CodeSession is a remote code-execution capability injected by the host.
type CodeSession interface {
	Exec(ctx context.Context, language string, code string) (string, error)
}

// CancelRef is a mutable cancellation slot for one tool invocation. The
// host may request cancellation asynchronously; a cancelable tool must
// settle promptly after the request rather than hang.
type CancelRef struct {
	once sync.Once
	done chan struct{}
}

// NewCancelRef creates an unset cancellation slot.
func NewCancelRef() *CancelRef {
	return &CancelRef{done: make(chan struct{})}
}

// Cancel requests early termination. Safe to call more than once.
func (r *CancelRef) Cancel() {
	if r == nil {
		return
	}
	r.once.Do(func() { close(r.done) })
}

// Done returns a channel closed once cancellation was requested.
func (r *CancelRef) Done() <-chan struct{} {
	if r == nil {
		return nil
	}
	return r.done
}

// Canceled reports whether cancellation was requested.
func (r *CancelRef) Canceled() bool {
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// ExecContext is the capability bag passed to tool executions. The core
// treats it as an injection point, not owned state.
type ExecContext struct {
	// HTTPClient performs outbound requests for network tools.
	HTTPClient *http.Client
	// Code is the remote code-execution session, when connected.
	Code CodeSession
	// Cancel is the per-invocation cancellation slot.
	Cancel *CancelRef
	// Online reports whether outbound network access is available.
	Online bool
	// Logger attributes tool-level log lines.
	Logger zerolog.Logger
}

// Client returns the configured HTTP client or a default one.
func (c ExecContext) Client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
