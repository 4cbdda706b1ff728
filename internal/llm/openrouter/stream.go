package openrouter

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// streamReadSize bounds each read from the response body. Small enough to
// yield control frequently for partial-content callbacks.
const streamReadSize = 4096

// ChatCompletionsStream executes a streaming chat/completions request and
// forwards each parsed SSE payload to handler in arrival order.
func (c *Client) ChatCompletionsStream(ctx context.Context, req *ChatRequest, handler StreamHandler) (*StreamSummary, error) {
	if handler == nil {
		return nil, errors.New("stream handler is required")
	}
	if req == nil {
		return nil, errors.New("chat request is required")
	}

	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	summary := &StreamSummary{}
	decoder := NewStreamDecoder(func(event StreamResponse) error {
		if summary.ID == "" && event.ID != "" {
			summary.ID = event.ID
		}
		if summary.Model == "" && event.Model != "" {
			summary.Model = event.Model
		}
		if event.Usage != nil {
			summary.Usage.PromptTokens += event.Usage.PromptTokens
			summary.Usage.CompletionTokens += event.Usage.CompletionTokens
			summary.Usage.TotalTokens += event.Usage.TotalTokens
			summary.HasUsage = true
		}
		return handler(event)
	}, c.logger)

	buffer := make([]byte, streamReadSize)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if err := decoder.Feed(buffer[:n]); err != nil {
				return nil, fmt.Errorf("decode stream chunk: %w", err)
			}
			if decoder.Done() {
				return summary, nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				// A final event may not be newline-terminated.
				if err := decoder.Flush(); err != nil {
					return nil, fmt.Errorf("flush stream decoder: %w", err)
				}
				return summary, nil
			}
			return nil, fmt.Errorf("read stream body: %w", readErr)
		}
	}
}
