package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// APIError represents a non-2xx HTTP response from OpenRouter.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter api error: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the OpenRouter chat/completions endpoint.
type Client struct {
	// baseURL points to the OpenRouter API root.
	baseURL string
	// apiKey is sent as a bearer token.
	apiKey string
	// referer and title identify the calling app per OpenRouter convention.
	referer string
	title   string
	// httpClient executes requests with timeouts.
	httpClient *http.Client
	// logger reports protocol-level noise such as skipped events.
	logger zerolog.Logger
}

// NewClient constructs a client with timeout settings.
func NewClient(baseURL string, apiKey string, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetAppInfo sets the HTTP-Referer and X-Title headers OpenRouter uses for
// app attribution. Both are optional.
func (c *Client) SetAppInfo(referer string, title string) {
	c.referer = referer
	c.title = title
}

// ChatCompletions executes a non-streaming chat/completions request.
func (c *Client) ChatCompletions(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	var parsed ChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("empty response choices")
	}
	return &parsed, nil
}

// post marshals and sends a chat request, returning the open response on a
// 2xx status and a structured APIError otherwise.
func (c *Client) post(ctx context.Context, req *ChatRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.completionsURL(),
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("read error body: %w", readErr)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// completionsURL normalizes the base URL to a chat/completions endpoint.
func (c *Client) completionsURL() string {
	if strings.HasSuffix(c.baseURL, "/chat/completions") {
		return c.baseURL
	}
	return c.baseURL + "/chat/completions"
}
